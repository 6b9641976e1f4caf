package repo

import (
	"context"
	"database/sql"
	"strings"

	"tendertrack/internal/domain"
)

const tenderCols = `id,code,name,project_id,COALESCE(contractor,'') AS contractor,bid_value,contract_value,status,COALESCE(start_date,'') AS start_date,COALESCE(end_date,'') AS end_date,progress,COALESCE(description,'') AS description,created_at,updated_at`

func scanTenderRow(scan func(dest ...any) error) (domain.TenderPackage, error) {
	var t domain.TenderPackage
	err := scan(&t.ID, &t.Code, &t.Name, &t.ProjectID, &t.Contractor, &t.BidValue, &t.ContractValue,
		&t.Status, &t.StartDate, &t.EndDate, &t.Progress, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertTender(ctx context.Context, tx *sql.Tx, t domain.TenderPackage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tenders(id,code,name,project_id,contractor,bid_value,contract_value,status,start_date,end_date,progress,description,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Code, t.Name, t.ProjectID, nullable(t.Contractor), t.BidValue, t.ContractValue, t.Status,
		nullable(t.StartDate), nullable(t.EndDate), t.Progress, nullable(t.Description), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTender(ctx context.Context, tx *sql.Tx, t domain.TenderPackage) error {
	res, err := tx.ExecContext(ctx, `UPDATE tenders SET code=?, name=?, project_id=?, contractor=?, bid_value=?, contract_value=?, status=?, start_date=?, end_date=?, progress=?, description=?, updated_at=? WHERE id=?`,
		t.Code, t.Name, t.ProjectID, nullable(t.Contractor), t.BidValue, t.ContractValue, t.Status,
		nullable(t.StartDate), nullable(t.EndDate), t.Progress, nullable(t.Description), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTender(ctx context.Context, id string) (domain.TenderPackage, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+tenderCols+` FROM tenders WHERE id=?`, id)
	return scanTenderRow(row.Scan)
}

func (r Repo) DeleteTender(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tenders WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type TenderFilters struct {
	ProjectID       string
	Status          string
	Search          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListTenders(ctx context.Context, f TenderFilters) ([]domain.TenderPackage, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
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
	query := `SELECT ` + tenderCols + ` FROM tenders ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TenderPackage
	for rows.Next() {
		t, err := scanTenderRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) TenderCodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tenders WHERE code=? AND id!=?`, code, excludeID).Scan(&n)
	return n > 0, err
}

func (r Repo) CountTendersForProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tenders WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}
