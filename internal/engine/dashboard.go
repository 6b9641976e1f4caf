package engine

import (
	"context"
	"time"

	"tendertrack/internal/access"
	"tendertrack/internal/deadline"
	"tendertrack/internal/domain"
	"tendertrack/internal/repo"
)

// DashboardStats is the aggregate view backing the landing dashboard.
type DashboardStats struct {
	TotalProjects    int            `json:"total_projects"`
	TotalTenders     int            `json:"total_tenders"`
	ProjectsByStatus map[string]int `json:"projects_by_status"`
	TendersByStatus  map[string]int `json:"tenders_by_status"`
	TotalBudget      int64          `json:"total_budget"`
	DisbursedBudget  int64          `json:"disbursed_budget"`
	ProjectsAtRisk   int            `json:"projects_at_risk"`
	TendersAtRisk    int            `json:"tenders_at_risk"`
	RecentEvents     []domain.Event `json:"recent_events,omitempty"`
}

// Dashboard aggregates counts, budget totals and risk figures in one pass.
// Risk counting reuses the same snapshot reduction as the deadline report, so
// the two surfaces can never disagree.
func (e Engine) Dashboard(ctx context.Context, p *access.Principal) (DashboardStats, error) {
	if err := e.guard(p, access.PermDashboardView); err != nil {
		return DashboardStats{}, err
	}
	var stats DashboardStats

	projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{})
	if err != nil {
		return stats, err
	}
	tenders, err := e.Repo.ListTenders(ctx, repo.TenderFilters{})
	if err != nil {
		return stats, err
	}
	stats.TotalProjects = len(projects)
	stats.TotalTenders = len(tenders)

	stats.ProjectsByStatus, err = e.Repo.CountProjectsByStatus(ctx)
	if err != nil {
		return stats, err
	}
	stats.TendersByStatus, err = e.Repo.CountTendersByStatus(ctx)
	if err != nil {
		return stats, err
	}
	stats.TotalBudget, stats.DisbursedBudget, err = e.Repo.BudgetTotals(ctx)
	if err != nil {
		return stats, err
	}

	today := e.Today()
	stats.ProjectsAtRisk = deadline.CountAtRisk(projectSnapshots(projects), today)
	stats.TendersAtRisk = deadline.CountAtRisk(tenderSnapshots(tenders), today)

	stats.RecentEvents, err = e.Repo.LatestEvents(ctx, 10, "", "", "")
	if err != nil {
		return stats, err
	}
	return stats, nil
}

func projectSnapshots(projects []domain.Project) []deadline.Snapshot {
	out := make([]deadline.Snapshot, 0, len(projects))
	for _, p := range projects {
		out = append(out, deadline.Snapshot{
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
			Progress:  p.Progress,
			Status:    p.Status,
		})
	}
	return out
}

func tenderSnapshots(tenders []domain.TenderPackage) []deadline.Snapshot {
	out := make([]deadline.Snapshot, 0, len(tenders))
	for _, t := range tenders {
		out = append(out, deadline.Snapshot{
			StartDate: t.StartDate,
			EndDate:   t.EndDate,
			Progress:  t.Progress,
			Status:    t.Status,
		})
	}
	return out
}

// DeadlineRow is one entry in the deadline report.
type DeadlineRow struct {
	EntityKind     string                  `json:"entity_kind" enum:"project,tender"`
	EntityID       string                  `json:"entity_id"`
	Code           string                  `json:"code"`
	Name           string                  `json:"name"`
	Status         string                  `json:"status"`
	EndDate        string                  `json:"end_date,omitempty"`
	Progress       int                     `json:"progress"`
	Classification deadline.Classification `json:"classification"`
	DaysRemaining  int                     `json:"days_remaining"`
	DaysOverdue    int                     `json:"days_overdue"`
	AtRisk         bool                    `json:"at_risk"`
}

// DeadlineReport evaluates every non-terminal project and tender against the
// engine clock. Rows with malformed dates are classified unknown rather than
// failing the whole report.
func (e Engine) DeadlineReport(ctx context.Context, p *access.Principal) ([]DeadlineRow, error) {
	if err := e.guard(p, access.PermReportsView); err != nil {
		return nil, err
	}
	projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{})
	if err != nil {
		return nil, err
	}
	tenders, err := e.Repo.ListTenders(ctx, repo.TenderFilters{})
	if err != nil {
		return nil, err
	}
	today := e.Today()
	rows := make([]DeadlineRow, 0, len(projects)+len(tenders))
	for _, proj := range projects {
		if domain.IsTerminalStatus(proj.Status) {
			continue
		}
		rows = append(rows, deadlineRow("project", proj.ID, proj.Code, proj.Name, proj.Status,
			proj.StartDate, proj.EndDate, proj.Progress, today))
	}
	for _, t := range tenders {
		if domain.IsTerminalStatus(t.Status) {
			continue
		}
		rows = append(rows, deadlineRow("tender", t.ID, t.Code, t.Name, t.Status,
			t.StartDate, t.EndDate, t.Progress, today))
	}
	return rows, nil
}

func deadlineRow(kind, id, code, name, status, startDate, endDate string, progress int, today time.Time) DeadlineRow {
	row := DeadlineRow{
		EntityKind: kind,
		EntityID:   id,
		Code:       code,
		Name:       name,
		Status:     status,
		EndDate:    endDate,
		Progress:   progress,
	}
	v, err := deadline.Evaluate(endDate, progress, today)
	if err != nil {
		row.Classification = deadline.Unknown
		return row
	}
	row.Classification = v.Classification
	row.DaysRemaining = v.DaysRemaining
	row.DaysOverdue = v.DaysOverdue
	atRisk, err := deadline.IsAtRisk(endDate, startDate, progress, today)
	if err == nil {
		row.AtRisk = atRisk
	}
	return row
}

// ListEvents returns the audit trail, admin and manager only.
func (e Engine) ListEvents(ctx context.Context, p *access.Principal, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if err := e.guardRole(p, []access.Role{access.RoleAdmin, access.RoleManager}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return e.Repo.LatestEventsFrom(ctx, limit, cursor, evtType, entityKind, entityID)
}
