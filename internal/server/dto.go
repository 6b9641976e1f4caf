package server

import (
	"encoding/json"

	"tendertrack/internal/deadline"
	"tendertrack/internal/domain"
	"tendertrack/internal/engine"
)

// Request payloads

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type ProjectRequest struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Investor        string `json:"investor,omitempty"`
	Type            string `json:"type" enum:"infrastructure,technology,energy,healthcare,education"`
	Status          string `json:"status,omitempty" enum:"planning,active,completed,cancelled"`
	TotalBudget     int64  `json:"total_budget,omitempty"`
	DisbursedBudget int64  `json:"disbursed_budget,omitempty"`
	StartDate       string `json:"start_date,omitempty" format:"date"`
	EndDate         string `json:"end_date,omitempty" format:"date"`
	Progress        int    `json:"progress,omitempty" minimum:"0" maximum:"100"`
	Description     string `json:"description,omitempty"`
}

type TenderRequest struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	ProjectID     string `json:"project_id"`
	Contractor    string `json:"contractor,omitempty"`
	BidValue      int64  `json:"bid_value,omitempty"`
	ContractValue int64  `json:"contract_value,omitempty"`
	Status        string `json:"status,omitempty" enum:"planning,bidding,awarded,active,completed,cancelled"`
	StartDate     string `json:"start_date,omitempty" format:"date"`
	EndDate       string `json:"end_date,omitempty" format:"date"`
	Progress      int    `json:"progress,omitempty" minimum:"0" maximum:"100"`
	Description   string `json:"description,omitempty"`
}

type UserRequest struct {
	Username    string   `json:"username,omitempty"`
	Password    string   `json:"password,omitempty"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty" enum:"admin,manager,editor,viewer"`
	Permissions []string `json:"permissions,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// Response payloads

type UserResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role" enum:"admin,manager,editor,viewer"`
	Permissions []string `json:"permissions"`
	IsActive    bool     `json:"is_active"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type DeadlineResponse struct {
	Classification deadline.Classification `json:"classification" enum:"on-time,warning,overdue,unknown"`
	DaysRemaining  int                     `json:"days_remaining"`
	DaysOverdue    int                     `json:"days_overdue"`
	IsOverdue      bool                    `json:"is_overdue"`
}

type ProjectDeadlineResponse struct {
	Project  domain.Project   `json:"project"`
	Deadline DeadlineResponse `json:"deadline"`
}

type TenderDeadlineResponse struct {
	Tender   domain.TenderPackage `json:"tender"`
	Deadline DeadlineResponse     `json:"deadline"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedProjects struct {
	Items      []domain.Project `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type paginatedTenders struct {
	Items      []domain.TenderPackage `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: nonNilSlice(u.Permissions),
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func mapUsers(in []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(in))
	for _, u := range in {
		out = append(out, userResponse(u))
	}
	return out
}

func deadlineResponse(v deadline.Verdict) DeadlineResponse {
	return DeadlineResponse{
		Classification: v.Classification,
		DaysRemaining:  v.DaysRemaining,
		DaysOverdue:    v.DaysOverdue,
		IsOverdue:      v.IsOverdue,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func mapEvents(in []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(in))
	for _, e := range in {
		out = append(out, eventResponse(e))
	}
	return out
}

func projectOptions(r ProjectRequest) engine.ProjectOptions {
	return engine.ProjectOptions{
		Code:            r.Code,
		Name:            r.Name,
		Investor:        r.Investor,
		Type:            r.Type,
		Status:          r.Status,
		TotalBudget:     r.TotalBudget,
		DisbursedBudget: r.DisbursedBudget,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Progress:        r.Progress,
		Description:     r.Description,
	}
}

func tenderOptions(r TenderRequest) engine.TenderOptions {
	return engine.TenderOptions{
		Code:          r.Code,
		Name:          r.Name,
		ProjectID:     r.ProjectID,
		Contractor:    r.Contractor,
		BidValue:      r.BidValue,
		ContractValue: r.ContractValue,
		Status:        r.Status,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Progress:      r.Progress,
		Description:   r.Description,
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
