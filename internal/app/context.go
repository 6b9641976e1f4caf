package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tendertrack/internal/access"
	"tendertrack/internal/config"
	"tendertrack/internal/db"
	"tendertrack/internal/engine"
	"tendertrack/internal/migrate"
	"tendertrack/internal/repo"
)

// Bootstrap opens the workspace database, runs migrations and seeds the
// configured admin account if the user table is empty. Returns a ready
// engine; the caller owns closing the DB.
func Bootstrap(ctx context.Context, workspace string) (engine.Engine, *sql.DB, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if cfg == nil {
		cfg = config.Default("tendertrack")
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	if err := SeedAdmin(ctx, eng); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	return eng, conn, nil
}

// SeedAdmin creates the configured admin account when no users exist yet.
// Without it a fresh install would have no way to log in.
func SeedAdmin(ctx context.Context, eng engine.Engine) error {
	if eng.Config == nil || eng.Config.Seed.Admin.Username == "" {
		return nil
	}
	n, err := eng.Repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	seed := eng.Config.Seed.Admin
	if _, err := eng.Repo.GetUserByUsername(ctx, seed.Username); err == nil {
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	// Synthetic principal for the bootstrap only; no stored account exists yet.
	bootstrap := &access.Principal{
		UserID:      "system",
		Role:        access.RoleAdmin,
		Permissions: []access.Permission{access.PermAll},
	}
	_, err = eng.CreateUser(ctx, bootstrap, engine.UserOptions{
		Username: seed.Username,
		Password: seed.Password,
		Name:     seed.Name,
		Role:     "admin",
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
