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

var tenderStatuses = map[string]bool{
	"planning":  true,
	"bidding":   true,
	"awarded":   true,
	"active":    true,
	"completed": true,
	"cancelled": true,
}

// TenderOptions are parameters for creating or updating a tender package.
type TenderOptions struct {
	Code          string
	Name          string
	ProjectID     string
	Contractor    string
	BidValue      int64
	ContractValue int64
	Status        string
	StartDate     string
	EndDate       string
	Progress      int
	Description   string
}

func (o TenderOptions) validate() error {
	if strings.TrimSpace(o.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(o.ProjectID) == "" {
		return fmt.Errorf("project is required")
	}
	if !tenderStatuses[o.Status] {
		return fmt.Errorf("invalid tender status %q", o.Status)
	}
	if o.Progress < 0 || o.Progress > 100 {
		return fmt.Errorf("invalid progress %d: must be between 0 and 100", o.Progress)
	}
	if o.BidValue < 0 || o.ContractValue < 0 {
		return fmt.Errorf("invalid value: must not be negative")
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

func (e Engine) CreateTender(ctx context.Context, p *access.Principal, opts TenderOptions) (domain.TenderPackage, error) {
	if err := e.guard(p, access.PermTendersCreate); err != nil {
		return domain.TenderPackage{}, err
	}
	if opts.Status == "" {
		opts.Status = "planning"
	}
	if err := opts.validate(); err != nil {
		return domain.TenderPackage{}, err
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.TenderPackage{}, fmt.Errorf("project %s: %w", opts.ProjectID, err)
	}
	exists, err := e.Repo.TenderCodeExists(ctx, opts.Code, "")
	if err != nil {
		return domain.TenderPackage{}, err
	}
	if exists {
		return domain.TenderPackage{}, fmt.Errorf("tender code %s already in use", opts.Code)
	}
	now := e.timestamp()
	t := domain.TenderPackage{
		ID:            uuid.NewString(),
		Code:          opts.Code,
		Name:          opts.Name,
		ProjectID:     opts.ProjectID,
		Contractor:    opts.Contractor,
		BidValue:      opts.BidValue,
		ContractValue: opts.ContractValue,
		Status:        opts.Status,
		StartDate:     opts.StartDate,
		EndDate:       opts.EndDate,
		Progress:      opts.Progress,
		Description:   opts.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TenderPackage{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTender(ctx, tx, t); err != nil {
		return domain.TenderPackage{}, err
	}
	if err := e.Events.Append(ctx, tx, "tender.created", "tender", t.ID, actorID(p), events.EventPayload{
		"code": t.Code, "name": t.Name, "project_id": t.ProjectID, "status": t.Status,
	}); err != nil {
		return domain.TenderPackage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TenderPackage{}, err
	}
	return t, nil
}

func (e Engine) UpdateTender(ctx context.Context, p *access.Principal, id string, opts TenderOptions) (domain.TenderPackage, error) {
	if err := e.guard(p, access.PermTendersEdit); err != nil {
		return domain.TenderPackage{}, err
	}
	t, err := e.Repo.GetTender(ctx, id)
	if err != nil {
		return domain.TenderPackage{}, err
	}
	if opts.Status == "" {
		opts.Status = t.Status
	}
	if opts.ProjectID == "" {
		opts.ProjectID = t.ProjectID
	}
	if err := opts.validate(); err != nil {
		return domain.TenderPackage{}, err
	}
	if opts.ProjectID != t.ProjectID {
		if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
			return domain.TenderPackage{}, fmt.Errorf("project %s: %w", opts.ProjectID, err)
		}
	}
	if opts.Code != t.Code {
		exists, err := e.Repo.TenderCodeExists(ctx, opts.Code, id)
		if err != nil {
			return domain.TenderPackage{}, err
		}
		if exists {
			return domain.TenderPackage{}, fmt.Errorf("tender code %s already in use", opts.Code)
		}
	}
	prevStatus := t.Status
	t.Code = opts.Code
	t.Name = opts.Name
	t.ProjectID = opts.ProjectID
	t.Contractor = opts.Contractor
	t.BidValue = opts.BidValue
	t.ContractValue = opts.ContractValue
	t.Status = opts.Status
	t.StartDate = opts.StartDate
	t.EndDate = opts.EndDate
	t.Progress = opts.Progress
	t.Description = opts.Description
	t.UpdatedAt = e.timestamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TenderPackage{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTender(ctx, tx, t); err != nil {
		return domain.TenderPackage{}, err
	}
	payload := events.EventPayload{"code": t.Code}
	if prevStatus != t.Status {
		payload["status_from"] = prevStatus
		payload["status_to"] = t.Status
	}
	if err := e.Events.Append(ctx, tx, "tender.updated", "tender", t.ID, actorID(p), payload); err != nil {
		return domain.TenderPackage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TenderPackage{}, err
	}
	return t, nil
}

func (e Engine) GetTender(ctx context.Context, p *access.Principal, id string) (domain.TenderPackage, error) {
	if err := e.guard(p, access.PermTendersView); err != nil {
		return domain.TenderPackage{}, err
	}
	return e.Repo.GetTender(ctx, id)
}

func (e Engine) ListTenders(ctx context.Context, p *access.Principal, f repo.TenderFilters) ([]domain.TenderPackage, error) {
	if err := e.guard(p, access.PermTendersView); err != nil {
		return nil, err
	}
	return e.Repo.ListTenders(ctx, f)
}

func (e Engine) DeleteTender(ctx context.Context, p *access.Principal, id string) error {
	if err := e.guard(p, access.PermTendersDelete); err != nil {
		return err
	}
	t, err := e.Repo.GetTender(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTender(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "tender.deleted", "tender", id, actorID(p), events.EventPayload{
		"code": t.Code, "project_id": t.ProjectID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// TenderDeadline evaluates a single tender package's schedule.
func (e Engine) TenderDeadline(ctx context.Context, p *access.Principal, id string) (domain.TenderPackage, deadline.Verdict, error) {
	if err := e.guard(p, access.PermTendersView); err != nil {
		return domain.TenderPackage{}, deadline.Verdict{}, err
	}
	t, err := e.Repo.GetTender(ctx, id)
	if err != nil {
		return domain.TenderPackage{}, deadline.Verdict{}, err
	}
	v, err := deadline.Evaluate(t.EndDate, t.Progress, e.Today())
	if err != nil {
		return t, deadline.Verdict{}, err
	}
	return t, v, nil
}
