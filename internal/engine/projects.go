package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tendertrack/internal/access"
	"tendertrack/internal/deadline"
	"tendertrack/internal/domain"
	"tendertrack/internal/events"
	"tendertrack/internal/repo"
)

var projectTypes = map[string]bool{
	"infrastructure": true,
	"technology":     true,
	"energy":         true,
	"healthcare":     true,
	"education":      true,
}

var projectStatuses = map[string]bool{
	"planning":  true,
	"active":    true,
	"completed": true,
	"cancelled": true,
}

// ProjectOptions are parameters for creating or updating a project.
type ProjectOptions struct {
	Code            string
	Name            string
	Investor        string
	Type            string
	Status          string
	TotalBudget     int64
	DisbursedBudget int64
	StartDate       string
	EndDate         string
	Progress        int
	Description     string
}

func (o ProjectOptions) validate() error {
	if strings.TrimSpace(o.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !projectTypes[o.Type] {
		return fmt.Errorf("invalid project type %q", o.Type)
	}
	if !projectStatuses[o.Status] {
		return fmt.Errorf("invalid project status %q", o.Status)
	}
	if o.Progress < 0 || o.Progress > 100 {
		return fmt.Errorf("invalid progress %d: must be between 0 and 100", o.Progress)
	}
	if o.TotalBudget < 0 || o.DisbursedBudget < 0 {
		return fmt.Errorf("invalid budget: must not be negative")
	}
	for _, d := range []string{o.StartDate, o.EndDate} {
		if d == "" {
			continue
		}
		if _, err := deadline.ParseDate(d); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) CreateProject(ctx context.Context, p *access.Principal, opts ProjectOptions) (domain.Project, error) {
	if err := e.guard(p, access.PermProjectsCreate); err != nil {
		return domain.Project{}, err
	}
	if opts.Status == "" {
		opts.Status = "planning"
	}
	if err := opts.validate(); err != nil {
		return domain.Project{}, err
	}
	exists, err := e.Repo.ProjectCodeExists(ctx, opts.Code, "")
	if err != nil {
		return domain.Project{}, err
	}
	if exists {
		return domain.Project{}, fmt.Errorf("project code %s already in use", opts.Code)
	}
	now := e.timestamp()
	proj := domain.Project{
		ID:              uuid.NewString(),
		Code:            opts.Code,
		Name:            opts.Name,
		Investor:        opts.Investor,
		Type:            opts.Type,
		Status:          opts.Status,
		TotalBudget:     opts.TotalBudget,
		DisbursedBudget: opts.DisbursedBudget,
		StartDate:       opts.StartDate,
		EndDate:         opts.EndDate,
		Progress:        opts.Progress,
		Description:     opts.Description,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, proj); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.created", "project", proj.ID, actorID(p), events.EventPayload{
		"code": proj.Code, "name": proj.Name, "status": proj.Status,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return proj, nil
}

func (e Engine) UpdateProject(ctx context.Context, p *access.Principal, id string, opts ProjectOptions) (domain.Project, error) {
	if err := e.guard(p, access.PermProjectsEdit); err != nil {
		return domain.Project{}, err
	}
	proj, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if opts.Status == "" {
		opts.Status = proj.Status
	}
	if err := opts.validate(); err != nil {
		return domain.Project{}, err
	}
	if opts.Code != proj.Code {
		exists, err := e.Repo.ProjectCodeExists(ctx, opts.Code, id)
		if err != nil {
			return domain.Project{}, err
		}
		if exists {
			return domain.Project{}, fmt.Errorf("project code %s already in use", opts.Code)
		}
	}
	prevStatus := proj.Status
	proj.Code = opts.Code
	proj.Name = opts.Name
	proj.Investor = opts.Investor
	proj.Type = opts.Type
	proj.Status = opts.Status
	proj.TotalBudget = opts.TotalBudget
	proj.DisbursedBudget = opts.DisbursedBudget
	proj.StartDate = opts.StartDate
	proj.EndDate = opts.EndDate
	proj.Progress = opts.Progress
	proj.Description = opts.Description
	proj.UpdatedAt = e.timestamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProject(ctx, tx, proj); err != nil {
		return domain.Project{}, err
	}
	payload := events.EventPayload{"code": proj.Code}
	if prevStatus != proj.Status {
		payload["status_from"] = prevStatus
		payload["status_to"] = proj.Status
	}
	if err := e.Events.Append(ctx, tx, "project.updated", "project", proj.ID, actorID(p), payload); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return proj, nil
}

func (e Engine) GetProject(ctx context.Context, p *access.Principal, id string) (domain.Project, error) {
	if err := e.guard(p, access.PermProjectsView); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, id)
}

func (e Engine) ListProjects(ctx context.Context, p *access.Principal, f repo.ProjectFilters) ([]domain.Project, error) {
	if err := e.guard(p, access.PermProjectsView); err != nil {
		return nil, err
	}
	return e.Repo.ListProjects(ctx, f)
}

// DeleteProject removes a project and, through the schema cascade, every
// tender package attached to it.
func (e Engine) DeleteProject(ctx context.Context, p *access.Principal, id string) error {
	if err := e.guard(p, access.PermProjectsDelete); err != nil {
		return err
	}
	proj, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return err
	}
	tenderCount, err := e.Repo.CountTendersForProject(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProject(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "project.deleted", "project", id, actorID(p), events.EventPayload{
		"code": proj.Code, "tenders_removed": tenderCount,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// ProjectDeadline evaluates a single project's schedule against the engine
// clock.
func (e Engine) ProjectDeadline(ctx context.Context, p *access.Principal, id string) (domain.Project, deadline.Verdict, error) {
	if err := e.guard(p, access.PermProjectsView); err != nil {
		return domain.Project{}, deadline.Verdict{}, err
	}
	proj, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, deadline.Verdict{}, err
	}
	v, err := deadline.Evaluate(proj.EndDate, proj.Progress, e.Today())
	if err != nil {
		return proj, deadline.Verdict{}, err
	}
	return proj, v, nil
}
