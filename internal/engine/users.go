package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tendertrack/internal/access"
	"tendertrack/internal/domain"
	"tendertrack/internal/events"
	"tendertrack/internal/repo"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserOptions are parameters for creating or updating an account.
type UserOptions struct {
	Username    string
	Password    string
	Name        string
	Email       string
	Role        string
	Permissions []string
	IsActive    *bool
}

func hashPassword(password string) (string, error) {
	if len(password) < 4 {
		return "", fmt.Errorf("invalid password: too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login verifies credentials and returns the account. Inactive accounts and
// unknown usernames both fail with ErrInvalidCredentials so callers cannot
// probe for existing usernames.
func (e Engine) Login(ctx context.Context, username, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Register creates a self-service account with the viewer role. Elevated
// roles are only assignable through CreateUser by an admin.
func (e Engine) Register(ctx context.Context, username, password, name string) (domain.User, error) {
	opts := UserOptions{
		Username: username,
		Password: password,
		Name:     name,
		Role:     string(access.RoleViewer),
	}
	return e.insertUser(ctx, opts, "")
}

// CreateUser is the admin path for provisioning accounts with any role.
func (e Engine) CreateUser(ctx context.Context, p *access.Principal, opts UserOptions) (domain.User, error) {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsEdit); err != nil {
		return domain.User{}, err
	}
	return e.insertUser(ctx, opts, actorID(p))
}

func (e Engine) insertUser(ctx context.Context, opts UserOptions, actor string) (domain.User, error) {
	username := strings.TrimSpace(opts.Username)
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required")
	}
	role, ok := access.ParseRole(opts.Role)
	if !ok {
		return domain.User{}, fmt.Errorf("invalid role %q", opts.Role)
	}
	if _, err := e.Repo.GetUserByUsername(ctx, username); err == nil {
		return domain.User{}, fmt.Errorf("username %s already in use", username)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	hash, err := hashPassword(opts.Password)
	if err != nil {
		return domain.User{}, err
	}
	perms := opts.Permissions
	if len(perms) == 0 {
		perms = access.ToStrings(access.DefaultPermissions(role))
	}
	now := e.timestamp()
	u := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Name:         opts.Name,
		Email:        opts.Email,
		Role:         string(role),
		Permissions:  perms,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.Name == "" {
		u.Name = username
	}
	if actor == "" {
		actor = u.ID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.created", "user", u.ID, actor, events.EventPayload{
		"username": u.Username, "role": u.Role,
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// UpdateUser applies admin changes to an account. An empty password leaves
// the current hash untouched; changing the role resets permissions to the
// role defaults unless an explicit grant list is given.
func (e Engine) UpdateUser(ctx context.Context, p *access.Principal, id string, opts UserOptions) (domain.User, error) {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsEdit); err != nil {
		return domain.User{}, err
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if opts.Username != "" && opts.Username != u.Username {
		if _, err := e.Repo.GetUserByUsername(ctx, opts.Username); err == nil {
			return domain.User{}, fmt.Errorf("username %s already in use", opts.Username)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, err
		}
		u.Username = strings.TrimSpace(opts.Username)
	}
	if opts.Password != "" {
		hash, err := hashPassword(opts.Password)
		if err != nil {
			return domain.User{}, err
		}
		u.PasswordHash = hash
	}
	if opts.Name != "" {
		u.Name = opts.Name
	}
	if opts.Email != "" {
		u.Email = opts.Email
	}
	if opts.Role != "" && opts.Role != u.Role {
		role, ok := access.ParseRole(opts.Role)
		if !ok {
			return domain.User{}, fmt.Errorf("invalid role %q", opts.Role)
		}
		u.Role = string(role)
		if len(opts.Permissions) == 0 {
			u.Permissions = access.ToStrings(access.DefaultPermissions(role))
		}
	}
	if len(opts.Permissions) > 0 {
		u.Permissions = opts.Permissions
	}
	if opts.IsActive != nil {
		u.IsActive = *opts.IsActive
	}
	u.UpdatedAt = e.timestamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.updated", "user", u.ID, actorID(p), events.EventPayload{
		"username": u.Username, "role": u.Role, "is_active": u.IsActive,
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, p *access.Principal, id string) (domain.User, error) {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsView); err != nil {
		return domain.User{}, err
	}
	return e.Repo.GetUser(ctx, id)
}

func (e Engine) ListUsers(ctx context.Context, p *access.Principal) ([]domain.User, error) {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsView); err != nil {
		return nil, err
	}
	return e.Repo.ListUsers(ctx)
}

func (e Engine) DeleteUser(ctx context.Context, p *access.Principal, id string) error {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsEdit); err != nil {
		return err
	}
	if p != nil && p.UserID == id {
		return fmt.Errorf("invalid delete: cannot remove own account")
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteUser(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "user.deleted", "user", id, actorID(p), events.EventPayload{
		"username": u.Username,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Principal builds the authorization context for a stored account.
func Principal(u domain.User) *access.Principal {
	role, _ := access.ParseRole(u.Role)
	return &access.Principal{
		UserID:      u.ID,
		Role:        role,
		Permissions: access.FromStrings(u.Permissions),
	}
}

// CreateAPIKey mints a key for service integrations. The raw key is returned
// once; only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, p *access.Principal, userID, name string) (domain.APIKey, string, error) {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsEdit); err != nil {
		return domain.APIKey{}, "", err
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := "ttk_" + uuid.NewString()
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, raw, nil
}

// ListAPIKeys returns stored keys, optionally scoped to one account. Hashes
// are included; raw keys are unrecoverable.
func (e Engine) ListAPIKeys(ctx context.Context, p *access.Principal, userID string) ([]domain.APIKey, error) {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsView); err != nil {
		return nil, err
	}
	return e.Repo.ListAPIKeys(ctx, userID)
}

// RevokeAPIKey deletes a key so it can no longer authenticate.
func (e Engine) RevokeAPIKey(ctx context.Context, p *access.Principal, id string) error {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin}, access.PermSettingsEdit); err != nil {
		return err
	}
	return e.Repo.DeleteAPIKey(ctx, id)
}
