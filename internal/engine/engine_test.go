package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tendertrack/internal/access"
	"tendertrack/internal/config"
	"tendertrack/internal/db"
	"tendertrack/internal/engine"
	"tendertrack/internal/migrate"
	"tendertrack/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

// Fixed clock for every test so deadline math is reproducible.
var testToday = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("tendertrack"))
	eng.Now = func() time.Time { return testToday }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func adminPrincipal() *access.Principal {
	return &access.Principal{
		UserID:      "admin-1",
		Role:        access.RoleAdmin,
		Permissions: []access.Permission{access.PermAll},
	}
}

func viewerPrincipal() *access.Principal {
	return &access.Principal{
		UserID:      "viewer-1",
		Role:        access.RoleViewer,
		Permissions: access.DefaultPermissions(access.RoleViewer),
	}
}

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()
	proj, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "PRJ-001", Name: "Ring road", Type: "infrastructure",
		TotalBudget: 5_000_000, EndDate: "2025-12-31",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if proj.Status != "planning" {
		t.Fatalf("expected default status planning, got %s", proj.Status)
	}

	got, err := env.Engine.GetProject(env.Ctx, admin, proj.ID)
	if err != nil || got.Code != "PRJ-001" {
		t.Fatalf("get project: %v", err)
	}

	opts := engine.ProjectOptions{
		Code: proj.Code, Name: proj.Name, Type: proj.Type,
		Status: "active", TotalBudget: proj.TotalBudget,
		EndDate: proj.EndDate, Progress: 25,
	}
	updated, err := env.Engine.UpdateProject(env.Ctx, admin, proj.ID, opts)
	if err != nil {
		t.Fatalf("update project: %v", err)
	}
	if updated.Status != "active" || updated.Progress != 25 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	// status change must land in the audit log
	events, err := env.Engine.ListEvents(env.Ctx, admin, 10, 0, "project.updated", "", "")
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one project.updated event, got %d (%v)", len(events), err)
	}

	if err := env.Engine.DeleteProject(env.Ctx, admin, proj.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := env.Engine.GetProject(env.Ctx, admin, proj.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()

	cases := []engine.ProjectOptions{
		{Name: "no code", Type: "energy"},
		{Code: "X", Name: "bad type", Type: "retail"},
		{Code: "X", Name: "bad progress", Type: "energy", Progress: 120},
		{Code: "X", Name: "bad budget", Type: "energy", TotalBudget: -1},
		{Code: "X", Name: "bad date", Type: "energy", EndDate: "31/12/2025"},
	}
	for _, opts := range cases {
		if _, err := env.Engine.CreateProject(env.Ctx, admin, opts); err == nil {
			t.Fatalf("expected validation error for %+v", opts)
		}
	}

	if _, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "DUP-1", Name: "first", Type: "energy",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "DUP-1", Name: "second", Type: "energy",
	})
	if err == nil || !strings.Contains(err.Error(), "already in use") {
		t.Fatalf("expected duplicate code error, got %v", err)
	}
}

func TestGuardOrdering(t *testing.T) {
	env := newTestEnv(t)

	// unauthenticated beats forbidden
	_, err := env.Engine.CreateProject(env.Ctx, nil, engine.ProjectOptions{
		Code: "P", Name: "p", Type: "energy",
	})
	if !errors.Is(err, engine.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	// viewer can read but not write
	viewer := viewerPrincipal()
	if _, err := env.Engine.ListProjects(env.Ctx, viewer, repo.ProjectFilters{}); err != nil {
		t.Fatalf("viewer list: %v", err)
	}
	_, err = env.Engine.CreateProject(env.Ctx, viewer, engine.ProjectOptions{
		Code: "P", Name: "p", Type: "energy",
	})
	var fe engine.ForbiddenError
	if !errors.As(err, &fe) || fe.Permission != access.PermProjectsCreate {
		t.Fatalf("expected forbidden with projects.create, got %v", err)
	}

	// role gate on the user list
	if _, err := env.Engine.ListUsers(env.Ctx, viewer); !errors.As(err, &fe) {
		t.Fatalf("expected forbidden on user list, got %v", err)
	}
}

func TestTenderLifecycleAndCascade(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()

	_, err := env.Engine.CreateTender(env.Ctx, admin, engine.TenderOptions{
		Code: "T-1", Name: "orphan", ProjectID: "nope",
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for missing project, got %v", err)
	}

	proj, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "PRJ-T", Name: "host", Type: "technology",
	})
	if err != nil {
		t.Fatal(err)
	}
	tender, err := env.Engine.CreateTender(env.Ctx, admin, engine.TenderOptions{
		Code: "T-1", Name: "civil works", ProjectID: proj.ID,
		Contractor: "ACME", BidValue: 1000, Status: "bidding",
	})
	if err != nil {
		t.Fatalf("create tender: %v", err)
	}

	// deleting the project takes its tenders with it
	if err := env.Engine.DeleteProject(env.Ctx, admin, proj.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.GetTender(env.Ctx, admin, tender.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected cascade delete, got %v", err)
	}
}

func TestProjectDeadline(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()

	proj, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "PRJ-D", Name: "due soon", Type: "energy", EndDate: "2025-06-05",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, v, err := env.Engine.ProjectDeadline(env.Ctx, admin, proj.ID)
	if err != nil {
		t.Fatalf("deadline: %v", err)
	}
	if v.Classification != "warning" || v.DaysRemaining != 4 {
		t.Fatalf("expected warning with 4 days, got %+v", v)
	}
}

func TestLoginAndRegister(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.Engine.Register(env.Ctx, "alice", "s3cret", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != "viewer" {
		t.Fatalf("self-service accounts must be viewers, got %s", u.Role)
	}

	if _, err := env.Engine.Login(env.Ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "alice", "wrong"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "nobody", "whatever"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("unknown user must not be distinguishable, got %v", err)
	}

	// deactivated accounts cannot log in
	inactive := false
	admin := adminPrincipal()
	if _, err := env.Engine.UpdateUser(env.Ctx, admin, u.ID, engine.UserOptions{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "alice", "s3cret"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for inactive account, got %v", err)
	}
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()

	u, err := env.Engine.CreateUser(env.Ctx, admin, engine.UserOptions{
		Username: "bob", Password: "hunter2", Role: "editor",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Name != "bob" {
		t.Fatalf("name should default to username, got %q", u.Name)
	}
	want := access.ToStrings(access.DefaultPermissions(access.RoleEditor))
	if len(u.Permissions) != len(want) {
		t.Fatalf("expected editor default grants, got %v", u.Permissions)
	}

	// role change resets grants to the new role's defaults
	u, err = env.Engine.UpdateUser(env.Ctx, admin, u.ID, engine.UserOptions{Role: "viewer"})
	if err != nil {
		t.Fatal(err)
	}
	if len(u.Permissions) != len(access.DefaultPermissions(access.RoleViewer)) {
		t.Fatalf("expected viewer default grants after role change, got %v", u.Permissions)
	}

	// self-delete is blocked even for admins
	self := &access.Principal{
		UserID:      u.ID,
		Role:        access.RoleAdmin,
		Permissions: []access.Permission{access.PermAll},
	}
	err = env.Engine.DeleteUser(env.Ctx, self, u.ID)
	if err == nil || !strings.Contains(err.Error(), "own account") {
		t.Fatalf("expected self-delete block, got %v", err)
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()

	u, err := env.Engine.CreateUser(env.Ctx, admin, engine.UserOptions{
		Username: "svc", Password: "hunter2", Role: "manager",
	})
	if err != nil {
		t.Fatal(err)
	}
	key, raw, err := env.Engine.CreateAPIKey(env.Ctx, admin, u.ID, "ci")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if !strings.HasPrefix(raw, "ttk_") {
		t.Fatalf("unexpected raw key %q", raw)
	}
	stored, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(raw))
	if err != nil || stored.ID != key.ID {
		t.Fatalf("lookup by hash: %v", err)
	}
}

func TestDashboardRiskCounts(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()

	mk := func(code, status, start, end string, progress int) {
		t.Helper()
		if _, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
			Code: code, Name: code, Type: "infrastructure", Status: status,
			StartDate: start, EndDate: end, Progress: progress,
		}); err != nil {
			t.Fatalf("create %s: %v", code, err)
		}
	}
	// overdue and active: at risk
	mk("P-OVER", "active", "2025-01-01", "2025-05-20", 50)
	// warning with progress far behind schedule: at risk
	mk("P-LAG", "active", "2025-01-01", "2025-06-05", 10)
	// warning but on schedule: not at risk
	mk("P-OK", "active", "2025-01-01", "2025-06-05", 95)
	// overdue but completed: excluded
	mk("P-DONE", "completed", "2025-01-01", "2025-05-20", 100)

	stats, err := env.Engine.Dashboard(env.Ctx, admin)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalProjects != 4 {
		t.Fatalf("expected 4 projects, got %d", stats.TotalProjects)
	}
	if stats.ProjectsAtRisk != 2 {
		t.Fatalf("expected 2 projects at risk, got %d", stats.ProjectsAtRisk)
	}
	if stats.ProjectsByStatus["active"] != 3 || stats.ProjectsByStatus["completed"] != 1 {
		t.Fatalf("unexpected status counts: %v", stats.ProjectsByStatus)
	}
}

func TestDeadlineReport(t *testing.T) {
	env := newTestEnv(t)
	admin := adminPrincipal()

	if _, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "P-R", Name: "report me", Type: "education", Status: "active",
		StartDate: "2025-01-01", EndDate: "2025-05-20", Progress: 40,
	}); err != nil {
		t.Fatal(err)
	}
	// no end date: classified unknown, never fails the report
	if _, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "P-U", Name: "undated", Type: "education", Status: "active",
	}); err != nil {
		t.Fatal(err)
	}
	// terminal status: excluded entirely
	if _, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectOptions{
		Code: "P-C", Name: "cancelled", Type: "education", Status: "cancelled",
		EndDate: "2025-05-20",
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := env.Engine.DeadlineReport(env.Ctx, admin)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	byCode := map[string]string{}
	for _, row := range rows {
		byCode[row.Code] = string(row.Classification)
	}
	if byCode["P-R"] != "overdue" {
		t.Fatalf("expected P-R overdue, got %v", byCode)
	}
	if byCode["P-U"] != "unknown" {
		t.Fatalf("expected P-U unknown, got %v", byCode)
	}
}
