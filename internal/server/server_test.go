package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"tendertrack/internal/access"
	"tendertrack/internal/config"
	"tendertrack/internal/db"
	"tendertrack/internal/domain"
	"tendertrack/internal/engine"
	"tendertrack/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("tendertrack"))
	e.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	bootstrap := &access.Principal{
		UserID:      "system",
		Role:        access.RoleAdmin,
		Permissions: []access.Permission{access.PermAll},
	}
	if _, err := e.CreateUser(context.Background(), bootstrap, engine.UserOptions{
		Username: "root", Password: "rootpass", Role: "admin",
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: "test-secret"},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, username, password string) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"username": username,
		"password": password,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var tok TokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	return tok.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestProjectCRUDOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	token := login(t, srv, "root", "rootpass")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"code":         "PRJ-1",
		"name":         "Metro line",
		"type":         "infrastructure",
		"total_budget": 1000000,
		"end_date":     "2025-12-31",
	}, bearer(token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Project
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if created.Status != "planning" {
		t.Fatalf("expected default status planning, got %s", created.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/"+created.ID, nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/projects/"+created.ID, map[string]any{
		"code":     "PRJ-1",
		"name":     "Metro line",
		"type":     "infrastructure",
		"status":   "active",
		"progress": 30,
		"end_date": "2025-12-31",
	}, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update project status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Project
	_ = json.Unmarshal(data, &updated)
	if updated.Status != "active" || updated.Progress != 30 {
		t.Fatalf("unexpected update: %+v", updated)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/projects/"+created.ID, nil, bearer(token))
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("delete project status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/"+created.ID, nil, bearer(token))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects", nil, bearer("garbage"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}

	// health stays public
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected health to be public, got %d", res.StatusCode)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"username": "root",
		"password": "wrong",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d: %s", res.StatusCode, string(data))
	}
}

func TestViewerForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", map[string]any{
		"username": "guest",
		"password": "guestpass",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var tok TokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	if tok.User.Role != "viewer" {
		t.Fatalf("registered accounts must be viewers, got %s", tok.User.Role)
	}

	// viewers can read
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects", nil, bearer(tok.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("viewer list status %d", res.StatusCode)
	}

	// but not write
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"code": "PRJ-X", "name": "nope", "type": "energy",
	}, bearer(tok.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer create, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "forbidden" || envelope.Error.Details["permission"] != "projects.create" {
		t.Fatalf("unexpected error envelope: %s", string(data))
	}

	// user administration is role gated
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/users", nil, bearer(tok.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer user list, got %d", res.StatusCode)
	}
}

func TestDeadlineEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	token := login(t, srv, "root", "rootpass")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"code": "PRJ-D", "name": "due soon", "type": "energy",
		"status": "active", "start_date": "2025-01-01", "end_date": "2025-06-05",
		"progress": 10,
	}, bearer(token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var proj domain.Project
	_ = json.Unmarshal(data, &proj)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/"+proj.ID+"/deadline", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("deadline status %d: %s", res.StatusCode, string(data))
	}
	var dr ProjectDeadlineResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		t.Fatalf("unmarshal deadline: %v", err)
	}
	if string(dr.Deadline.Classification) != "warning" || dr.Deadline.DaysRemaining != 4 {
		t.Fatalf("expected warning in 4 days, got %+v", dr.Deadline)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports/deadlines", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report status %d: %s", res.StatusCode, string(data))
	}
	var rows []engineDeadlineRow
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if len(rows) != 1 || !rows[0].AtRisk {
		t.Fatalf("expected one at-risk row, got %s", string(data))
	}
}

// engineDeadlineRow keeps the report assertions independent of response
// struct changes.
type engineDeadlineRow struct {
	Code           string `json:"code"`
	Classification string `json:"classification"`
	AtRisk         bool   `json:"at_risk"`
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ctx := context.Background()

	admin := &access.Principal{
		UserID:      "system",
		Role:        access.RoleAdmin,
		Permissions: []access.Permission{access.PermAll},
	}
	u, err := srv.Engine.CreateUser(ctx, admin, engine.UserOptions{
		Username: "svc", Password: "svcpass", Role: "manager",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, raw, err := srv.Engine.CreateAPIKey(ctx, admin, u.ID, "ci")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": raw})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me with api key status %d: %s", res.StatusCode, string(data))
	}
	var me UserResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.Username != "svc" {
		t.Fatalf("expected svc, got %s", me.Username)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": "ttk_bogus"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", res.StatusCode)
	}
}
