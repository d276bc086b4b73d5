/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: CRUD handlers using these types
  - stats.go: Statistics endpoint response shaping
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/stats"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses. The API token is never
// echoed back.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	APIToken   string `json:"api_token,omitempty"`
}

// DeactivateEmployeesRequest is the bulk-deactivation request.
type DeactivateEmployeesRequest struct {
	IDs []string `json:"ids"`
}

// DeactivateEmployeesResponse reports how many rows the statement touched.
type DeactivateEmployeesResponse struct {
	Deactivated int64 `json:"deactivated"`
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveTypeDTO represents a leave type in API responses.
type LeaveTypeDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DefaultDays float64 `json:"default_days"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// CreateLeaveTypeRequest is the request to create a leave type.
type CreateLeaveTypeRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DefaultDays float64 `json:"default_days"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID          string  `json:"id"`
	EmployeeID  string  `json:"employee_id"`
	LeaveTypeID string  `json:"leave_type_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Days        float64 `json:"days"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	ReviewedBy  string  `json:"reviewed_by,omitempty"`
	ReviewedAt  string  `json:"reviewed_at,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// SubmitLeaveRequest is the request to submit a leave request.
type SubmitLeaveRequest struct {
	ID          string  `json:"id"`
	LeaveTypeID string  `json:"leave_type_id"`
	StartDate   string  `json:"start_date"` // YYYY-MM-DD
	EndDate     string  `json:"end_date"`   // YYYY-MM-DD
	Days        float64 `json:"days"`
	Reason      string  `json:"reason,omitempty"`
}

// ReviewRequest carries an optional note for approve/reject.
type ReviewRequest struct {
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// STATISTICS
// =============================================================================

// StatisticsMeta is the request metadata attached to a statistics response.
type StatisticsMeta struct {
	ResponseTimeMS int64  `json:"response_time_ms"`
	User           string `json:"user"`
}

// StatisticsResponse is the full snapshot plus request metadata. The snapshot
// fields are inlined at the top level of the body.
type StatisticsResponse struct {
	stats.Snapshot
	Meta StatisticsMeta `json:"meta"`
}

// RefreshResponse confirms a manual refresh.
type RefreshResponse struct {
	Status        string `json:"status"`
	LastRefreshed string `json:"last_refreshed"`
}

// UpdateNotification is the long-poll response after a snapshot publish.
type UpdateNotification struct {
	LastRefreshed string `json:"last_refreshed"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response (401, 404, 400).
type ErrorResponse struct {
	Error string `json:"error"`
}

// ForbiddenResponse is the 403 response; it names the roles that would have
// been accepted and carries no statistics fields.
type ForbiddenResponse struct {
	Error        string   `json:"error"`
	RequiredRole []string `json:"required_role"`
	CurrentRole  string   `json:"current_role"`
}

// RateLimitedResponse is the 429 response.
type RateLimitedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// InternalErrorResponse is the 500 response for the statistics endpoint.
type InternalErrorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	ResponseTimeMS int64  `json:"response_time_ms"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(p sqlite.Profile) EmployeeDTO {
	return EmployeeDTO{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Role:       p.Role,
		Department: p.Department,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

func toLeaveTypeDTO(lt sqlite.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:          lt.ID,
		Name:        lt.Name,
		DefaultDays: lt.DefaultDays,
		CreatedAt:   lt.CreatedAt.Format(time.RFC3339),
	}
}

func toLeaveRequestDTO(r sqlite.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:          r.ID,
		EmployeeID:  r.EmployeeID,
		LeaveTypeID: r.LeaveTypeID,
		StartDate:   r.StartDate.Format("2006-01-02"),
		EndDate:     r.EndDate.Format("2006-01-02"),
		Days:        r.Days,
		Status:      r.Status,
		Reason:      r.Reason,
		ReviewedBy:  r.ReviewedBy,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.ReviewedAt != nil {
		dto.ReviewedAt = r.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTOs(reqs []sqlite.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}
