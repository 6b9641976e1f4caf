package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tendertrack/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const projectCols = `id,code,name,COALESCE(investor,'') AS investor,type,status,total_budget,disbursed_budget,COALESCE(start_date,'') AS start_date,COALESCE(end_date,'') AS end_date,progress,COALESCE(description,'') AS description,created_at,updated_at`

func scanProjectRow(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	err := scan(&p.ID, &p.Code, &p.Name, &p.Investor, &p.Type, &p.Status, &p.TotalBudget, &p.DisbursedBudget,
		&p.StartDate, &p.EndDate, &p.Progress, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,code,name,investor,type,status,total_budget,disbursed_budget,start_date,end_date,progress,description,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Code, p.Name, nullable(p.Investor), p.Type, p.Status, p.TotalBudget, p.DisbursedBudget,
		nullable(p.StartDate), nullable(p.EndDate), p.Progress, nullable(p.Description), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET code=?, name=?, investor=?, type=?, status=?, total_budget=?, disbursed_budget=?, start_date=?, end_date=?, progress=?, description=?, updated_at=? WHERE id=?`,
		p.Code, p.Name, nullable(p.Investor), p.Type, p.Status, p.TotalBudget, p.DisbursedBudget,
		nullable(p.StartDate), nullable(p.EndDate), p.Progress, nullable(p.Description), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProjectRow(row.Scan)
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type ProjectFilters struct {
	Status          string
	Type            string
	Search          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Search != "" {
		clauses = append(clauses, "(name LIKE ? OR code LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + projectCols + ` FROM projects ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProjectRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ProjectCodeExists reports whether another project already uses the code.
func (r Repo) ProjectCodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM projects WHERE code=? AND id!=?`, code, excludeID).Scan(&n)
	return n > 0, err
}

func (r Repo) CountProjectsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countByStatus(ctx, "projects")
}

func (r Repo) CountTendersByStatus(ctx context.Context) (map[string]int, error) {
	return r.countByStatus(ctx, "tenders")
}

func (r Repo) countByStatus(ctx context.Context, table string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT status, count(*) FROM %s GROUP BY status`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// BudgetTotals sums planned and disbursed budget across all projects.
func (r Repo) BudgetTotals(ctx context.Context) (total, disbursed int64, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_budget),0), COALESCE(SUM(disbursed_budget),0) FROM projects`).
		Scan(&total, &disbursed)
	return total, disbursed, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
