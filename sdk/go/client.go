package tendertracksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal TenderTrack HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	Investor        string `json:"investor,omitempty"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	TotalBudget     int64  `json:"total_budget"`
	DisbursedBudget int64  `json:"disbursed_budget"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	Progress        int    `json:"progress"`
	Description     string `json:"description,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// Tender represents a tender package attached to a project.
type Tender struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Contractor    string `json:"contractor,omitempty"`
	BidValue      int64  `json:"bid_value"`
	ContractValue int64  `json:"contract_value"`
	Status        string `json:"status"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	Progress      int    `json:"progress"`
	Description   string `json:"description,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// Deadline is the evaluation of an end date against the server's clock.
type Deadline struct {
	Classification string `json:"classification"`
	DaysRemaining  int    `json:"days_remaining"`
	DaysOverdue    int    `json:"days_overdue"`
	IsOverdue      bool   `json:"is_overdue"`
}

// DeadlineRow is one entry of the deadline report.
type DeadlineRow struct {
	EntityKind     string `json:"entity_kind"`
	EntityID       string `json:"entity_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	EndDate        string `json:"end_date,omitempty"`
	Progress       int    `json:"progress"`
	Classification string `json:"classification"`
	DaysRemaining  int    `json:"days_remaining"`
	DaysOverdue    int    `json:"days_overdue"`
	AtRisk         bool   `json:"at_risk"`
}

// DashboardStats mirrors the dashboard aggregate payload.
type DashboardStats struct {
	TotalProjects    int            `json:"total_projects"`
	TotalTenders     int            `json:"total_tenders"`
	ProjectsByStatus map[string]int `json:"projects_by_status"`
	TendersByStatus  map[string]int `json:"tenders_by_status"`
	TotalBudget      int64          `json:"total_budget"`
	DisbursedBudget  int64          `json:"disbursed_budget"`
	ProjectsAtRisk   int            `json:"projects_at_risk"`
	TendersAtRisk    int            `json:"tenders_at_risk"`
}

// User represents an account as returned by the API.
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsActive    bool     `json:"is_active"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedProjects wraps project listings with cursors.
type PaginatedProjects struct {
	Items      []Project `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// PaginatedTenders wraps tender listings with cursors.
type PaginatedTenders struct {
	Items      []Tender `json:"items"`
	NextCursor string   `json:"next_cursor"`
}

// PaginatedEvents wraps event listings with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	body := map[string]any{"username": username, "password": password}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, p Project) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", p, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateProject replaces a project's attributes.
func (c *Client) UpdateProject(ctx context.Context, id string, p Project) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPut, "projects/"+url.PathEscape(id), p, &resp)
	return resp, err
}

// DeleteProject removes a project and its tender packages.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "projects/"+url.PathEscape(id), nil, nil)
}

// Projects returns a page of projects.
func (c *Client) Projects(ctx context.Context, limit int, cursor string) (PaginatedProjects, error) {
	var resp PaginatedProjects
	err := c.do(ctx, http.MethodGet, paged("projects", limit, cursor), nil, &resp)
	return resp, err
}

// ProjectDeadline evaluates a project's end date.
func (c *Client) ProjectDeadline(ctx context.Context, id string) (Deadline, error) {
	var resp struct {
		Deadline Deadline `json:"deadline"`
	}
	endpoint := fmt.Sprintf("projects/%s/deadline", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Deadline, err
}

// CreateTender creates a tender package.
func (c *Client) CreateTender(ctx context.Context, t Tender) (Tender, error) {
	var resp Tender
	err := c.do(ctx, http.MethodPost, "tenders", t, &resp)
	return resp, err
}

// GetTender fetches a tender package by id.
func (c *Client) GetTender(ctx context.Context, id string) (Tender, error) {
	var resp Tender
	err := c.do(ctx, http.MethodGet, "tenders/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateTender replaces a tender package's attributes.
func (c *Client) UpdateTender(ctx context.Context, id string, t Tender) (Tender, error) {
	var resp Tender
	err := c.do(ctx, http.MethodPut, "tenders/"+url.PathEscape(id), t, &resp)
	return resp, err
}

// DeleteTender removes a tender package.
func (c *Client) DeleteTender(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tenders/"+url.PathEscape(id), nil, nil)
}

// Tenders returns a page of tender packages, optionally scoped to a project.
func (c *Client) Tenders(ctx context.Context, projectID string, limit int, cursor string) (PaginatedTenders, error) {
	endpoint := paged("tenders", limit, cursor)
	if projectID != "" {
		endpoint = withQuery(endpoint, "project_id", projectID)
	}
	var resp PaginatedTenders
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TenderDeadline evaluates a tender package's end date.
func (c *Client) TenderDeadline(ctx context.Context, id string) (Deadline, error) {
	var resp struct {
		Deadline Deadline `json:"deadline"`
	}
	endpoint := fmt.Sprintf("tenders/%s/deadline", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Deadline, err
}

// Dashboard returns the aggregate stats.
func (c *Client) Dashboard(ctx context.Context) (DashboardStats, error) {
	var resp DashboardStats
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

// DeadlineReport returns the combined deadline report.
func (c *Client) DeadlineReport(ctx context.Context) ([]DeadlineRow, error) {
	var resp []DeadlineRow
	err := c.do(ctx, http.MethodGet, "reports/deadlines", nil, &resp)
	return resp, err
}

// Events returns recent audit events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, paged("events", limit, cursor), nil, &resp)
	return resp, err
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func paged(endpoint string, limit int, cursor string) string {
	if limit > 0 {
		endpoint = withQuery(endpoint, "limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		endpoint = withQuery(endpoint, "cursor", cursor)
	}
	return endpoint
}

func withQuery(endpoint, key, value string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + key + "=" + url.QueryEscape(value)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
