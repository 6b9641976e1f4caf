package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"tendertrack/internal/deadline"
	"tendertrack/internal/domain"
	"tendertrack/internal/engine"
	"tendertrack/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"permission projects.edit required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the TenderTrack API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("TenderTrack API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerMe(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTenders(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerEvents(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrUnauthenticated) {
		return newAPIError(http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrInvalidCredentials) {
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	}
	var fe engine.ForbiddenError
	if errors.As(err, &fe) {
		details := map[string]any{}
		if fe.Permission != "" {
			details["permission"] = string(fe.Permission)
		}
		if fe.Role != "" {
			details["role"] = string(fe.Role)
		}
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), details)
	}
	var de *deadline.InvalidDateError
	if errors.As(err, &de) {
		return newAPIError(http.StatusBadRequest, "invalid_date", err.Error(), map[string]any{"value": de.Value})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already in use"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in with username and password",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		u, err := e.Login(ctx, input.Body.Username, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := issueToken(u, authCfg, e.Today())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{Token: token, User: userResponse(u)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Create a viewer account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		u, err := e.Register(ctx, input.Body.Username, input.Body.Password, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := issueToken(u, authCfg, e.Today())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{Token: token, User: userResponse(u)}}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current account",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		p := principalFromContext(ctx)
		if p == nil {
			return nil, handleError(engine.ErrUnauthenticated)
		}
		u, err := e.Repo.GetUser(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body ProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.CreateProject(ctx, principalFromContext(ctx), projectOptions(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" required:"false"`
		Type   string `query:"type" required:"false"`
		Search string `query:"search" required:"false"`
		Limit  int    `query:"limit" required:"false"`
		Cursor string `query:"cursor" required:"false"`
	}) (*struct {
		Body paginatedProjects `json:"body"`
	}, error) {
		f := repo.ProjectFilters{
			Status: input.Status,
			Type:   input.Type,
			Search: input.Search,
			Limit:  input.Limit,
		}
		f.CursorCreatedAt, f.CursorID = decodeCursor(input.Cursor)
		items, err := e.ListProjects(ctx, principalFromContext(ctx), f)
		if err != nil {
			return nil, handleError(err)
		}
		out := paginatedProjects{Items: items}
		if f.Limit > 0 && len(items) == f.Limit {
			last := items[len(items)-1]
			out.NextCursor = encodeCursor(last.CreatedAt, last.ID)
		}
		if out.Items == nil {
			out.Items = []domain.Project{}
		}
		return &struct {
			Body paginatedProjects `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.GetProject(ctx, principalFromContext(ctx), input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string         `path:"project_id"`
		Body      ProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.UpdateProject(ctx, principalFromContext(ctx), input.ProjectID, projectOptions(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project and its tender packages",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		if err := e.DeleteProject(ctx, principalFromContext(ctx), input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-deadline",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/deadline",
		Summary:     "Evaluate project deadline",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectDeadlineResponse `json:"body"`
	}, error) {
		p, v, err := e.ProjectDeadline(ctx, principalFromContext(ctx), input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectDeadlineResponse `json:"body"`
		}{Body: ProjectDeadlineResponse{Project: p, Deadline: deadlineResponse(v)}}, nil
	})
}

func registerTenders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tender",
		Method:        http.MethodPost,
		Path:          "/tenders",
		Summary:       "Create tender package",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body TenderRequest `json:"body"`
	}) (*struct {
		Body domain.TenderPackage `json:"body"`
	}, error) {
		t, err := e.CreateTender(ctx, principalFromContext(ctx), tenderOptions(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TenderPackage `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenders",
		Method:      http.MethodGet,
		Path:        "/tenders",
		Summary:     "List tender packages",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id" required:"false"`
		Status    string `query:"status" required:"false"`
		Search    string `query:"search" required:"false"`
		Limit     int    `query:"limit" required:"false"`
		Cursor    string `query:"cursor" required:"false"`
	}) (*struct {
		Body paginatedTenders `json:"body"`
	}, error) {
		f := repo.TenderFilters{
			ProjectID: input.ProjectID,
			Status:    input.Status,
			Search:    input.Search,
			Limit:     input.Limit,
		}
		f.CursorCreatedAt, f.CursorID = decodeCursor(input.Cursor)
		items, err := e.ListTenders(ctx, principalFromContext(ctx), f)
		if err != nil {
			return nil, handleError(err)
		}
		out := paginatedTenders{Items: items}
		if f.Limit > 0 && len(items) == f.Limit {
			last := items[len(items)-1]
			out.NextCursor = encodeCursor(last.CreatedAt, last.ID)
		}
		if out.Items == nil {
			out.Items = []domain.TenderPackage{}
		}
		return &struct {
			Body paginatedTenders `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tender",
		Method:      http.MethodGet,
		Path:        "/tenders/{tender_id}",
		Summary:     "Get tender package",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TenderID string `path:"tender_id"`
	}) (*struct {
		Body domain.TenderPackage `json:"body"`
	}, error) {
		t, err := e.GetTender(ctx, principalFromContext(ctx), input.TenderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TenderPackage `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tender",
		Method:      http.MethodPut,
		Path:        "/tenders/{tender_id}",
		Summary:     "Update tender package",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TenderID string        `path:"tender_id"`
		Body     TenderRequest `json:"body"`
	}) (*struct {
		Body domain.TenderPackage `json:"body"`
	}, error) {
		t, err := e.UpdateTender(ctx, principalFromContext(ctx), input.TenderID, tenderOptions(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TenderPackage `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tender",
		Method:      http.MethodDelete,
		Path:        "/tenders/{tender_id}",
		Summary:     "Delete tender package",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TenderID string `path:"tender_id"`
	}) (*struct{}, error) {
		if err := e.DeleteTender(ctx, principalFromContext(ctx), input.TenderID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tender-deadline",
		Method:      http.MethodGet,
		Path:        "/tenders/{tender_id}/deadline",
		Summary:     "Evaluate tender deadline",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TenderID string `path:"tender_id"`
	}) (*struct {
		Body TenderDeadlineResponse `json:"body"`
	}, error) {
		t, v, err := e.TenderDeadline(ctx, principalFromContext(ctx), input.TenderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TenderDeadlineResponse `json:"body"`
		}{Body: TenderDeadlineResponse{Tender: t, Deadline: deadlineResponse(v)}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create account",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body UserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := e.CreateUser(ctx, principalFromContext(ctx), engine.UserOptions{
			Username:    input.Body.Username,
			Password:    input.Body.Password,
			Name:        input.Body.Name,
			Email:       input.Body.Email,
			Role:        input.Body.Role,
			Permissions: input.Body.Permissions,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List accounts",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		items, err := e.ListUsers(ctx, principalFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Get account",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := e.GetUser(ctx, principalFromContext(ctx), input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPatch,
		Path:        "/users/{user_id}",
		Summary:     "Update account",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		UserID string      `path:"user_id"`
		Body   UserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := e.UpdateUser(ctx, principalFromContext(ctx), input.UserID, engine.UserOptions{
			Username:    input.Body.Username,
			Password:    input.Body.Password,
			Name:        input.Body.Name,
			Email:       input.Body.Email,
			Role:        input.Body.Role,
			Permissions: input.Body.Permissions,
			IsActive:    input.Body.IsActive,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/users/{user_id}",
		Summary:     "Delete account",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct{}, error) {
		if err := e.DeleteUser(ctx, principalFromContext(ctx), input.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Dashboard aggregates",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.DashboardStats `json:"body"`
	}, error) {
		stats, err := e.Dashboard(ctx, principalFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.DashboardStats `json:"body"`
		}{Body: stats}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "deadline-report",
		Method:      http.MethodGet,
		Path:        "/reports/deadlines",
		Summary:     "Deadline report across projects and tenders",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.DeadlineRow `json:"body"`
	}, error) {
		rows, err := e.DeadlineReport(ctx, principalFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.DeadlineRow `json:"body"`
		}{Body: nonNilSlice(rows)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit event log",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" required:"false"`
		Cursor     int64  `query:"cursor" required:"false"`
		Type       string `query:"type" required:"false"`
		EntityKind string `query:"entity_kind" required:"false"`
		EntityID   string `query:"entity_id" required:"false"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		items, err := e.ListEvents(ctx, principalFromContext(ctx), input.Limit, input.Cursor, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		out := paginatedEvents{Items: mapEvents(items)}
		if len(items) > 0 && input.Limit > 0 && len(items) == input.Limit {
			out.NextCursor = strconv.FormatInt(items[len(items)-1].ID, 10)
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: out}, nil
	})
}

// Cursor format is "<created_at>|<id>", matching the keyset ordering used by
// the list queries.
func encodeCursor(createdAt, id string) string {
	return fmt.Sprintf("%s|%s", createdAt, id)
}

func decodeCursor(cursor string) (createdAt, id string) {
	if cursor == "" {
		return "", ""
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
