package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tendertrack/internal/access"
	"tendertrack/internal/config"
	"tendertrack/internal/events"
	"tendertrack/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Today is the evaluation date for all deadline math, derived from the
// injected clock so tests and reports stay reproducible.
func (e Engine) Today() time.Time {
	return e.now().UTC()
}

var ErrUnauthenticated = errors.New("authentication required")

// ForbiddenError reports a failed permission or role gate.
type ForbiddenError struct {
	Permission access.Permission
	Role       access.Role
}

func (f ForbiddenError) Error() string {
	if f.Permission != "" {
		return fmt.Sprintf("permission %s required", f.Permission)
	}
	return fmt.Sprintf("role %s required", f.Role)
}

// guard runs the authorization chain for an operation. The denial reason is
// preserved so the transport layer can map it to 401 vs 403.
func (e Engine) guard(p *access.Principal, required ...access.Permission) error {
	switch access.Authorize(p, required, nil) {
	case access.DenyUnauthenticated:
		return ErrUnauthenticated
	case access.DenyForbidden:
		var perm access.Permission
		if len(required) > 0 {
			perm = required[0]
		}
		return ForbiddenError{Permission: perm}
	}
	return nil
}

// guardRole additionally restricts an operation to a role set.
func (e Engine) guardRole(p *access.Principal, roles []access.Role, required ...access.Permission) error {
	switch access.Authorize(p, required, roles) {
	case access.DenyUnauthenticated:
		return ErrUnauthenticated
	case access.DenyForbidden:
		var perm access.Permission
		if len(required) > 0 {
			perm = required[0]
		}
		var role access.Role
		if perm == "" && len(roles) > 0 {
			role = roles[0]
		}
		return ForbiddenError{Permission: perm, Role: role}
	}
	return nil
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func actorID(p *access.Principal) string {
	if p == nil {
		return ""
	}
	return p.UserID
}
