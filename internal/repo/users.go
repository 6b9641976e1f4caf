package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tendertrack/internal/domain"
)

const userCols = `id,username,password_hash,name,COALESCE(email,'') AS email,role,permissions_json,is_active,created_at,updated_at`

func scanUserRow(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var permsJSON string
	err := scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Email, &u.Role, &permsJSON, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal([]byte(permsJSON), &u.Permissions); err != nil {
		return u, fmt.Errorf("decode permissions for user %s: %w", u.ID, err)
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO users(id,username,password_hash,name,email,role,permissions_json,is_active,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.Name, nullable(u.Email), u.Role, string(perms), u.IsActive, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r Repo) UpdateUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE users SET username=?, password_hash=?, name=?, email=?, role=?, permissions_json=?, is_active=?, updated_at=? WHERE id=?`,
		u.Username, u.PasswordHash, u.Name, nullable(u.Email), u.Role, string(perms), u.IsActive, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	return scanUserRow(row.Scan)
}

func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=?`, username)
	return scanUserRow(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUserRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) DeleteUser(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}
