/*
handlers.go - HTTP API handlers for the leave credit ledger

PURPOSE:
  Exposes the ledger and accrual engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    GET    /api/users                       List all users
    POST   /api/users                       Create user
    GET    /api/users/{id}                  Get user details
    PUT    /api/users/{id}                  Update user (hire-date warnings)
    GET    /api/users/{id}/balance          Usable balance for a year
    GET    /api/users/{id}/summary          Month-by-month breakdown
    GET    /api/users/{id}/projection       Projected balance at a date
    GET    /api/users/{id}/ledger           Raw ledger rows
    GET    /api/users/{id}/carryovers       Carryover records
    GET    /api/users/{id}/requests         Leave requests
    POST   /api/users/{id}/validate         Dry-run request validation

  Leave requests:
    POST   /api/leave-requests              File a request (validates)
    GET    /api/leave-requests/{id}         Get request
    POST   /api/leave-requests/{id}/deduct  Approve and deduct credits
    POST   /api/leave-requests/{id}/restore Cancel and restore credits
    POST   /api/leave-requests/{id}/restore-partial  Shorten a leave

  Attendance:
    POST   /api/attendance                  Ingest one shift record

  Admin:
    POST   /api/admin/accruals/run          Run the monthly accrual sweep
    POST   /api/admin/carryovers/run        Run the year-end batch
    POST   /api/admin/carryovers/convert    Convert carryover to cash
    POST   /api/admin/reset                 Wipe all data (dev only)

  Scenarios (scenarios.go):
    GET    /api/scenarios                   List demo scenarios
    GET    /api/scenarios/current           Currently loaded scenario
    POST   /api/scenarios/load              Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access for entity CRUD
  - Service: Domain operations (accrual, deduction, carryover, validation)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency, duplicate)
  - 422: Request failed business validation
  - 500: Internal errors
  Business outcomes (insufficient credits, rejected conversions) are
  200 responses with success=false; the message says what happened.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/leave-ledger/credit"
	"github.com/warp/leave-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *credit.Service

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler backed by the given store and service.
func NewHandler(store *sqlite.Store, service *credit.Service) *Handler {
	return &Handler{Store: store, Service: service}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// CreateUser creates a new user. The hire date may be omitted for
// employees whose start date is not yet known.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Role == "" {
		req.Role = string(credit.RoleEmployee)
	}

	user := &credit.User{
		ID:    credit.UserID(req.ID),
		Name:  req.Name,
		Email: req.Email,
		Role:  credit.Role(req.Role),
	}
	if req.HiredDate != "" {
		hired, err := credit.ParseDate(req.HiredDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hired_date format (use YYYY-MM-DD)", err)
			return
		}
		user.HiredDate = &hired
	}

	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if credit.IsConflict(err) {
			writeError(w, http.StatusConflict, "User already exists", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// UpdateUser updates a user. Changing the hire date does not rewrite
// ledger history; the response carries warnings about records computed
// under the old date.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	user, err := h.Store.GetUser(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	var warnings []string
	if req.HiredDate != nil {
		var newDate *credit.Date
		if *req.HiredDate != "" {
			parsed, err := credit.ParseDate(*req.HiredDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid hired_date format (use YYYY-MM-DD)", err)
				return
			}
			newDate = &parsed
		}
		warnings, err = h.Service.HireDateChangeWarnings(ctx, id, newDate)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check hire-date change", err)
			return
		}
		user.HiredDate = newDate
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = credit.Role(*req.Role)
	}

	if err := h.Store.SaveUser(ctx, user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateUserResponse{User: toUserDTO(user), Warnings: warnings})
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the user's usable credit total for a year.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))
	year, err := yearParam(r, time.Now().UTC().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	balance, err := h.Service.Balance(r.Context(), id, year)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:  string(id),
		Year:    year,
		Balance: balance.Float64(),
		AsOf:    time.Now().UTC().Format("2006-01-02"),
	})
}

// GetSummary returns the month-by-month breakdown for a user-year.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))
	year, err := yearParam(r, time.Now().UTC().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	summary, err := h.Service.Summary(r.Context(), id, year)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceSummaryDTO(summary))
}

// GetProjection returns the balance the user would have on a target date,
// assuming every scheduled accrual between now and then posts.
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))

	raw := r.URL.Query().Get("target")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "target query parameter is required (YYYY-MM-DD)", nil)
		return
	}
	target, err := credit.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target date (use YYYY-MM-DD)", err)
		return
	}
	year, err := yearParam(r, target.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	projected, err := h.Service.ProjectedBalance(r.Context(), id, target, year)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to project balance", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectionDTO{
		UserID:    string(id),
		Year:      year,
		Target:    target.String(),
		Projected: projected.Float64(),
	})
}

// GetLedger returns the raw ledger rows for a user-year.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))
	year, err := yearParam(r, time.Now().UTC().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	ctx := r.Context()
	if ok := h.requireUser(ctx, w, id); !ok {
		return
	}
	entries, err := h.Store.ListLedgerEntries(ctx, id, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ledger entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerEntryDTOs(entries))
}

// ListUserCarryovers returns every carryover record for a user.
func (h *Handler) ListUserCarryovers(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))

	ctx := r.Context()
	if ok := h.requireUser(ctx, w, id); !ok {
		return
	}
	recs, err := h.Store.ListCarryovers(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list carryovers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCarryoverDTOs(recs))
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// ListUserRequests returns a user's leave requests, newest first.
func (h *Handler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))

	ctx := r.Context()
	if ok := h.requireUser(ctx, w, id); !ok {
		return
	}
	reqs, err := h.Store.ListLeaveRequests(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ValidateRequest dry-runs the eligibility rules against a prospective
// request without storing anything.
func (h *Handler) ValidateRequest(w http.ResponseWriter, r *http.Request) {
	id := credit.UserID(chi.URLParam(r, "id"))

	var body SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body.UserID = string(id)

	req, err := leaveRequestFromSubmit(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.Service.ValidateLeaveRequest(r.Context(), id, req)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate request", err)
		return
	}
	writeJSON(w, http.StatusOK, toValidationResultDTO(result))
}

// CreateLeaveRequest validates and files a new leave request. Invalid
// requests are rejected with the full list of violations.
func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	req, err := leaveRequestFromSubmit(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx := r.Context()
	result, err := h.Service.ValidateLeaveRequest(ctx, req.UserID, req)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate request", err)
		return
	}
	if !result.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Leave request failed validation",
			Code:    "validation_failed",
			Details: result.Errors,
		})
		return
	}

	if err := h.Store.CreateLeaveRequest(ctx, req); err != nil {
		if credit.IsConflict(err) {
			writeError(w, http.StatusConflict, "Leave request already exists", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create leave request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(req))
}

// GetLeaveRequest returns a single leave request.
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.Store.GetLeaveRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave request", err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Leave request not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// DeductLeaveRequest approves a request and deducts its days from the
// ledger. The year defaults to the current year when the body omits it.
func (h *Handler) DeductLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body DeductRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	year := body.Year
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	ctx := r.Context()
	result, err := h.Service.Deduct(ctx, id, year)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Leave request not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to deduct credits", err)
		return
	}
	if result.Success {
		h.setRequestStatus(ctx, id, credit.LeaveApproved)
	}
	writeJSON(w, http.StatusOK, DeductionResultDTO{
		Success:         result.Success,
		Message:         result.Message,
		CreditsDeducted: result.CreditsDeducted.Float64(),
		UnpaidDays:      result.UnpaidDays.Float64(),
	})
}

// RestoreLeaveRequest cancels a request and returns everything it
// deducted to the ledger.
func (h *Handler) RestoreLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	result, err := h.Service.Restore(ctx, id)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Leave request not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to restore credits", err)
		return
	}
	h.setRequestStatus(ctx, id, credit.LeaveCancelled)
	writeJSON(w, http.StatusOK, RestoreResultDTO{
		Success:         result.Success,
		Message:         result.Message,
		CreditsRestored: result.CreditsRestored.Float64(),
	})
}

// RestorePartialLeaveRequest returns part of a deduction after a leave
// was shortened. The request stays approved.
func (h *Handler) RestorePartialLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body RestorePartialRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive", nil)
		return
	}

	result, err := h.Service.RestorePartial(r.Context(), id, credit.NewCredits(body.Days), body.Reason)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Leave request not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to restore credits", err)
		return
	}
	writeJSON(w, http.StatusOK, RestoreResultDTO{
		Success:         result.Success,
		Message:         result.Message,
		CreditsRestored: result.CreditsRestored.Float64(),
	})
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// RecordAttendance ingests one shift record from the attendance pipeline.
// Qualifying absences feed the 30-day window check on leave validation.
func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	var body RecordAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	shiftDate, err := credit.ParseDate(body.ShiftDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift_date format (use YYYY-MM-DD)", err)
		return
	}
	status := credit.AttendanceStatus(body.Status)
	switch status {
	case credit.AttendanceOnTime, credit.AttendanceTardy, credit.AttendanceUndertime,
		credit.AttendanceHalfDayAbsence, credit.AttendanceNCNS, credit.AttendanceAdvisedAbsence:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown attendance status %q", body.Status), nil)
		return
	}

	ctx := r.Context()
	if ok := h.requireUser(ctx, w, credit.UserID(body.UserID)); !ok {
		return
	}

	att := &credit.Attendance{
		ID:               uuid.NewString(),
		UserID:           credit.UserID(body.UserID),
		ShiftDate:        shiftDate,
		Status:           status,
		TardyMinutes:     body.TardyMinutes,
		UndertimeMinutes: body.UndertimeMinutes,
	}
	if err := h.Store.CreateAttendance(ctx, att); err != nil {
		if credit.IsConflict(err) {
			writeError(w, http.StatusConflict, "Attendance already recorded for this shift date", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record attendance", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(att))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunAccruals runs the monthly accrual sweep for every user, now.
func (h *Handler) RunAccruals(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.AccrueAllUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to run accrual sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualSweepResultDTO{
		Year:         result.Year,
		Month:        result.Month,
		Processed:    result.Processed,
		Skipped:      result.Skipped,
		TotalCredits: result.TotalCredits.Float64(),
	})
}

// RunCarryovers runs the year-end batch for one source year.
func (h *Handler) RunCarryovers(w http.ResponseWriter, r *http.Request) {
	var body CarryoverRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	fromYear := body.FromYear
	if fromYear == 0 {
		fromYear = time.Now().UTC().Year() - 1
	}
	processedBy := body.ProcessedBy
	if processedBy == "" {
		processedBy = "admin"
	}

	result, err := h.Service.ProcessAllCarryovers(r.Context(), fromYear, processedBy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to run carryover batch", err)
		return
	}
	writeJSON(w, http.StatusOK, CarryoverSweepResultDTO{
		FromYear:       result.FromYear,
		Processed:      result.Processed,
		Skipped:        result.Skipped,
		TotalCarryover: result.TotalCarryover.Float64(),
		TotalForfeited: result.TotalForfeited.Float64(),
	})
}

// ConvertCash converts one user's carryover to cash instead of leaving
// it spendable through March.
func (h *Handler) ConvertCash(w http.ResponseWriter, r *http.Request) {
	var body ConvertCashRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	fromYear := body.FromYear
	if fromYear == 0 {
		fromYear = time.Now().UTC().Year() - 1
	}

	result, err := h.Service.ConvertCarryoverToCash(r.Context(), credit.UserID(body.UserID), fromYear)
	if err != nil {
		if credit.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to convert carryover", err)
		return
	}
	writeJSON(w, http.StatusOK, ConversionResultDTO{
		Success:          result.Success,
		Message:          result.Message,
		CreditsConverted: result.CreditsConverted.Float64(),
	})
}

// ResetDatabase wipes all data. Used by tests and demo scenarios.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// requireUser writes a 404 or 500 and returns false when the user does
// not exist or the lookup fails.
func (h *Handler) requireUser(ctx context.Context, w http.ResponseWriter, id credit.UserID) bool {
	user, err := h.Store.GetUser(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return false
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return false
	}
	return true
}

// setRequestStatus records the workflow outcome on the request. Status
// is presentation glue; failures here never undo the ledger operation.
func (h *Handler) setRequestStatus(ctx context.Context, id string, status credit.LeaveStatus) {
	req, err := h.Store.GetLeaveRequest(ctx, id)
	if err != nil || req == nil {
		return
	}
	req.Status = status
	_ = h.Store.SaveLeaveRequest(ctx, req)
}

func yearParam(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return fallback, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return year, nil
}

// leaveRequestFromSubmit builds a domain request from the submit body.
// FiledAt defaults to today so backdated filings must be explicit.
func leaveRequestFromSubmit(body SubmitLeaveRequest) (*credit.LeaveRequest, error) {
	leaveType := credit.LeaveType(body.Type)
	switch leaveType {
	case credit.LeaveVacation, credit.LeaveSick, credit.LeaveBereavement, credit.LeaveOther:
	default:
		return nil, fmt.Errorf("unknown leave type %q", body.Type)
	}
	start, err := credit.ParseDate(body.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date (use YYYY-MM-DD)")
	}
	end, err := credit.ParseDate(body.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end_date (use YYYY-MM-DD)")
	}
	filed := credit.DateOf(time.Now().UTC())
	if body.FiledAt != "" {
		filed, err = credit.ParseDate(body.FiledAt)
		if err != nil {
			return nil, fmt.Errorf("invalid filed_at (use YYYY-MM-DD)")
		}
	}

	return &credit.LeaveRequest{
		ID:              uuid.NewString(),
		UserID:          credit.UserID(body.UserID),
		Type:            leaveType,
		StartDate:       start,
		EndDate:         end,
		FiledAt:         filed,
		DaysRequested:   credit.NewCredits(body.DaysRequested),
		Status:          credit.LeavePending,
		Reason:          body.Reason,
		CreditsDeducted: credit.ZeroCredits(),
	}, nil
}

func toValidationResultDTO(result credit.ValidationResult) ValidationResultDTO {
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	return ValidationResultDTO{Valid: result.Valid, Errors: errs}
}
