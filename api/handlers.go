/*
handlers.go - CRUD handlers for the source tables

PURPOSE:
  Standard create/read/update/delete over employees, leave types, and leave
  requests. These are the write paths that fire the store's change hook and
  keep the statistics snapshot fresh; they hold no statistics logic of their
  own.

OWNERSHIP RULES:
  - Employees submit and cancel only their own requests
  - Approve/reject requires admin, hr, or manager
  - Employee and leave-type management requires admin or hr

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Ownership violations
  - 404: Resource not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/leave-engine/auth"
	"github.com/warp/leave-engine/store/sqlite"
)

// Handler holds dependencies for the CRUD handlers.
type Handler struct {
	Store *sqlite.Store
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{Store: store}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toEmployeeDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.Store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTO(*p))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Invalid role", nil)
		return
	}

	p := sqlite.Profile{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
		Active:     true,
		APIToken:   req.APIToken,
	}

	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(p))
}

// UpdateEmployee replaces an existing employee's record.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.Store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}

	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Invalid role", nil)
		return
	}

	p := sqlite.Profile{
		ID:         id,
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
		Active:     existing.Active,
		APIToken:   existing.APIToken,
	}
	if req.APIToken != "" {
		p.APIToken = req.APIToken
	}

	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update employee", err)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTO(p))
}

// DeleteEmployee removes an employee.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteProfile(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete employee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateEmployees deactivates a batch of employees in one statement.
func (h *Handler) DeactivateEmployees(w http.ResponseWriter, r *http.Request) {
	var req DeactivateEmployeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required", nil)
		return
	}

	affected, err := h.Store.DeactivateProfiles(r.Context(), req.IDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to deactivate employees", err)
		return
	}

	writeJSON(w, http.StatusOK, DeactivateEmployeesResponse{Deactivated: affected})
}

func validRole(role string) bool {
	switch role {
	case sqlite.RoleAdmin, sqlite.RoleHR, sqlite.RoleManager, sqlite.RoleEmployee:
		return true
	}
	return false
}

// =============================================================================
// LEAVE TYPE HANDLERS
// =============================================================================

// ListLeaveTypes returns all leave types.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListLeaveTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave types", err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeaveType creates a leave type.
func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	lt := sqlite.LeaveType{ID: req.ID, Name: req.Name, DefaultDays: req.DefaultDays}
	if err := h.Store.SaveLeaveType(r.Context(), lt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create leave type", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(lt))
}

// DeleteLeaveType removes a leave type.
func (h *Handler) DeleteLeaveType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteLeaveType(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete leave type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// ListLeaveRequests returns leave requests. Employees see their own; admin,
// hr, and managers see everything.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	var (
		reqs []sqlite.LeaveRequest
		err  error
	)
	if ident.Role == auth.RoleEmployee {
		reqs, err = h.Store.ListLeaveRequestsByEmployee(r.Context(), ident.ID)
	} else {
		reqs, err = h.Store.ListLeaveRequests(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave requests", err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// GetLeaveRequest returns a single leave request with an ownership check.
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ident, _ := IdentityFrom(r.Context())

	req, err := h.Store.GetLeaveRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave request", err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Leave request not found", nil)
		return
	}
	if ident.Role == auth.RoleEmployee && req.EmployeeID != ident.ID {
		writeError(w, http.StatusForbidden, "Not your request", nil)
		return
	}

	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*req))
}

// SubmitLeaveRequest creates a pending leave request owned by the caller.
func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date before start_date", nil)
		return
	}
	if req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = fmt.Sprintf("req-%d", time.Now().UnixNano())
	}

	lr := sqlite.LeaveRequest{
		ID:          id,
		EmployeeID:  ident.ID,
		LeaveTypeID: req.LeaveTypeID,
		StartDate:   start,
		EndDate:     end,
		Days:        req.Days,
		Status:      sqlite.StatusPending,
		Reason:      req.Reason,
	}

	if err := h.Store.SaveLeaveRequest(r.Context(), lr); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to submit leave request", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(lr))
}

// ApproveLeaveRequest approves a pending request.
func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, sqlite.StatusApproved)
}

// RejectLeaveRequest rejects a pending request.
func (h *Handler) RejectLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, sqlite.StatusRejected)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, status string) {
	id := chi.URLParam(r, "id")
	ident, _ := IdentityFrom(r.Context())

	req, err := h.Store.GetLeaveRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave request", err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Leave request not found", nil)
		return
	}
	if req.Status != sqlite.StatusPending {
		writeError(w, http.StatusConflict, "Leave request already reviewed", nil)
		return
	}

	ok, err := h.Store.UpdateLeaveRequestStatus(r.Context(), id, status, ident.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update leave request", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Leave request not found", nil)
		return
	}

	updated, err := h.Store.GetLeaveRequest(r.Context(), id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// CancelLeaveRequest cancels a pending request. Owners can cancel their own;
// admin/hr can cancel any.
func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ident, _ := IdentityFrom(r.Context())

	req, err := h.Store.GetLeaveRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave request", err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Leave request not found", nil)
		return
	}
	if req.EmployeeID != ident.ID && ident.Role != auth.RoleAdmin && ident.Role != auth.RoleHR {
		writeError(w, http.StatusForbidden, "Not your request", nil)
		return
	}
	if req.Status != sqlite.StatusPending {
		writeError(w, http.StatusConflict, "Only pending requests can be cancelled", nil)
		return
	}

	if _, err := h.Store.UpdateLeaveRequestStatus(r.Context(), id, sqlite.StatusCancelled, ""); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to cancel leave request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		log.Printf("[API] %s: %v", msg, err)
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}
