/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  User:
    UserDTO, CreateUserRequest, UpdateUserRequest, UpdateUserResponse

  Ledger & balance:
    LedgerEntryDTO, BalanceDTO, BalanceSummaryDTO, ProjectionDTO

  Leave requests:
    LeaveRequestDTO, SubmitLeaveRequest, DeductRequest, RestorePartialRequest

  Carryover:
    CarryoverRecordDTO, CarryoverRunRequest, ConvertCashRequest

  Attendance:
    AttendanceDTO, RecordAttendanceRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

NUMBERS AND DATES:
  Credits cross the wire as JSON numbers (float64); the exact decimal
  stays inside the credit package. Dates are ISO "2006-01-02" strings,
  timestamps RFC3339.

SEE ALSO:
  - handlers.go: Uses these types
  - credit/types.go: Domain entities
*/
package api

import (
	"time"

	"github.com/warp/leave-ledger/credit"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// UserDTO represents an employee in API responses.
type UserDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	Role               string  `json:"role"`
	HiredDate          *string `json:"hired_date,omitempty"`
	RegularizationDate *string `json:"regularization_date,omitempty"`
	CreatedAt          string  `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to create a user. ID is optional; the
// server assigns one when empty.
type CreateUserRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	HiredDate string `json:"hired_date"`
}

// UpdateUserRequest is the request to update a user. Nil fields are left
// unchanged; an empty hired_date clears the hire date.
type UpdateUserRequest struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Role      *string `json:"role,omitempty"`
	HiredDate *string `json:"hired_date,omitempty"`
}

// UpdateUserResponse carries the updated user plus any warnings about
// ledger history invalidated by a hire-date change.
type UpdateUserResponse struct {
	User     UserDTO  `json:"user"`
	Warnings []string `json:"warnings,omitempty"`
}

// LedgerEntryDTO represents one (user, year, month) credit bucket.
// Month 0 is the carryover bucket.
type LedgerEntryDTO struct {
	ID             int64   `json:"id"`
	UserID         string  `json:"user_id"`
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	CreditsEarned  float64 `json:"credits_earned"`
	CreditsUsed    float64 `json:"credits_used"`
	CreditsBalance float64 `json:"credits_balance"`
	AccruedAt      string  `json:"accrued_at"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// BalanceDTO is the single-number balance response.
type BalanceDTO struct {
	UserID  string  `json:"user_id"`
	Year    int     `json:"year"`
	Balance float64 `json:"balance"`
	AsOf    string  `json:"as_of"`
}

// BalanceSummaryDTO is the month-by-month breakdown for one user-year.
type BalanceSummaryDTO struct {
	UserID              string           `json:"user_id"`
	Year                int              `json:"year"`
	TotalEarned         float64          `json:"total_earned"`
	TotalUsed           float64          `json:"total_used"`
	Balance             float64          `json:"balance"`
	CarryoverIn         float64          `json:"carryover_in"`
	CarryoverUsable     bool             `json:"carryover_usable"`
	CarryoverForfeited  float64          `json:"carryover_forfeited"`
	CashConverted       bool             `json:"cash_converted"`
	FirstRegularization bool             `json:"first_regularization"`
	Entries             []LedgerEntryDTO `json:"entries"`
}

// ProjectionDTO is the forward-looking balance response.
type ProjectionDTO struct {
	UserID    string  `json:"user_id"`
	Year      int     `json:"year"`
	Target    string  `json:"target"`
	Projected float64 `json:"projected"`
}

// LeaveRequestDTO represents a leave request with its ledger stamps.
type LeaveRequestDTO struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Type            string  `json:"type"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	FiledAt         string  `json:"filed_at"`
	DaysRequested   float64 `json:"days_requested"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason,omitempty"`
	CreditsDeducted float64 `json:"credits_deducted"`
	CreditsYear     int     `json:"credits_year,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// SubmitLeaveRequest is the request to file a leave request. It doubles
// as the dry-run validation body, where user_id comes from the URL path.
type SubmitLeaveRequest struct {
	UserID        string  `json:"user_id"`
	Type          string  `json:"type"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	FiledAt       string  `json:"filed_at,omitempty"` // defaults to today
	DaysRequested float64 `json:"days_requested"`
	Reason        string  `json:"reason,omitempty"`
}

// DeductRequest selects the ledger year to deduct from.
type DeductRequest struct {
	Year int `json:"year"`
}

// RestorePartialRequest returns part of an approved request's credits.
type RestorePartialRequest struct {
	Days   float64 `json:"days"`
	Reason string  `json:"reason,omitempty"`
}

// DeductionResultDTO is the outcome of a deduction.
type DeductionResultDTO struct {
	Success         bool    `json:"success"`
	Message         string  `json:"message"`
	CreditsDeducted float64 `json:"credits_deducted"`
	UnpaidDays      float64 `json:"unpaid_days"`
}

// RestoreResultDTO is the outcome of a restoration.
type RestoreResultDTO struct {
	Success         bool    `json:"success"`
	Message         string  `json:"message"`
	CreditsRestored float64 `json:"credits_restored"`
}

// ValidationResultDTO collects every rule violation for a prospective
// leave request.
type ValidationResultDTO struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// CarryoverRecordDTO represents one year-end reconciliation.
type CarryoverRecordDTO struct {
	ID                      int64   `json:"id"`
	UserID                  string  `json:"user_id"`
	FromYear                int     `json:"from_year"`
	ToYear                  int     `json:"to_year"`
	CreditsFromPreviousYear float64 `json:"credits_from_previous_year"`
	CarryoverCredits        float64 `json:"carryover_credits"`
	ForfeitedCredits        float64 `json:"forfeited_credits"`
	IsFirstRegularization   bool    `json:"is_first_regularization"`
	CashConverted           bool    `json:"cash_converted"`
	CashConvertedAt         *string `json:"cash_converted_at,omitempty"`
	ProcessedBy             string  `json:"processed_by,omitempty"`
	CreatedAt               string  `json:"created_at,omitempty"`
}

// CarryoverRunRequest triggers the year-end batch for one source year.
type CarryoverRunRequest struct {
	FromYear    int    `json:"from_year"`
	ProcessedBy string `json:"processed_by,omitempty"`
}

// ConvertCashRequest converts one user's carryover to cash.
type ConvertCashRequest struct {
	UserID   string `json:"user_id"`
	FromYear int    `json:"from_year"`
}

// ConversionResultDTO is the outcome of a cash conversion.
type ConversionResultDTO struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	CreditsConverted float64 `json:"credits_converted"`
}

// AccrualSweepResultDTO summarizes one run of the monthly accrual batch.
type AccrualSweepResultDTO struct {
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	Processed    int     `json:"processed"`
	Skipped      int     `json:"skipped"`
	TotalCredits float64 `json:"total_credits"`
}

// CarryoverSweepResultDTO summarizes one run of the year-end batch.
type CarryoverSweepResultDTO struct {
	FromYear       int     `json:"from_year"`
	Processed      int     `json:"processed"`
	Skipped        int     `json:"skipped"`
	TotalCarryover float64 `json:"total_carryover"`
	TotalForfeited float64 `json:"total_forfeited"`
}

// AttendanceDTO represents one shift record.
type AttendanceDTO struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	ShiftDate        string `json:"shift_date"`
	Status           string `json:"status"`
	TardyMinutes     int    `json:"tardy_minutes,omitempty"`
	UndertimeMinutes int    `json:"undertime_minutes,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// RecordAttendanceRequest ingests one shift record from the attendance
// pipeline.
type RecordAttendanceRequest struct {
	UserID           string `json:"user_id"`
	ShiftDate        string `json:"shift_date"`
	Status           string `json:"status"`
	TardyMinutes     int    `json:"tardy_minutes,omitempty"`
	UndertimeMinutes int    `json:"undertime_minutes,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario to load.
type LoadScenarioRequest struct {
	ID string `json:"id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u *credit.User) UserDTO {
	dto := UserDTO{
		ID:    string(u.ID),
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	}
	if u.HiredDate != nil {
		hired := u.HiredDate.String()
		reg := credit.RegularizationDate(*u.HiredDate).String()
		dto.HiredDate = &hired
		dto.RegularizationDate = &reg
	}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toUserDTOs(users []*credit.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	return dtos
}

func toLedgerEntryDTO(e *credit.LedgerEntry) LedgerEntryDTO {
	dto := LedgerEntryDTO{
		ID:             e.ID,
		UserID:         string(e.UserID),
		Year:           e.Year,
		Month:          e.Month,
		CreditsEarned:  e.CreditsEarned.Float64(),
		CreditsUsed:    e.CreditsUsed.Float64(),
		CreditsBalance: e.CreditsBalance.Float64(),
		AccruedAt:      e.AccruedAt.String(),
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLedgerEntryDTOs(entries []*credit.LedgerEntry) []LedgerEntryDTO {
	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerEntryDTO(e)
	}
	return dtos
}

func toBalanceSummaryDTO(s *credit.BalanceSummary) BalanceSummaryDTO {
	return BalanceSummaryDTO{
		UserID:              string(s.UserID),
		Year:                s.Year,
		TotalEarned:         s.TotalEarned.Float64(),
		TotalUsed:           s.TotalUsed.Float64(),
		Balance:             s.Balance.Float64(),
		CarryoverIn:         s.CarryoverIn.Float64(),
		CarryoverUsable:     s.CarryoverUsable,
		CarryoverForfeited:  s.CarryoverForfeited.Float64(),
		CashConverted:       s.CashConverted,
		FirstRegularization: s.FirstRegularization,
		Entries:             toLedgerEntryDTOs(s.Entries),
	}
}

func toLeaveRequestDTO(req *credit.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:              req.ID,
		UserID:          string(req.UserID),
		Type:            string(req.Type),
		StartDate:       req.StartDate.String(),
		EndDate:         req.EndDate.String(),
		FiledAt:         req.FiledAt.String(),
		DaysRequested:   req.DaysRequested.Float64(),
		Status:          string(req.Status),
		Reason:          req.Reason,
		CreditsDeducted: req.CreditsDeducted.Float64(),
		CreditsYear:     req.CreditsYear,
	}
	if !req.CreatedAt.IsZero() {
		dto.CreatedAt = req.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTOs(reqs []*credit.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toLeaveRequestDTO(req)
	}
	return dtos
}

func toCarryoverDTO(rec *credit.CarryoverRecord) CarryoverRecordDTO {
	dto := CarryoverRecordDTO{
		ID:                      rec.ID,
		UserID:                  string(rec.UserID),
		FromYear:                rec.FromYear,
		ToYear:                  rec.ToYear,
		CreditsFromPreviousYear: rec.CreditsFromPreviousYear.Float64(),
		CarryoverCredits:        rec.CarryoverCredits.Float64(),
		ForfeitedCredits:        rec.ForfeitedCredits.Float64(),
		IsFirstRegularization:   rec.IsFirstRegularization,
		CashConverted:           rec.CashConverted,
		ProcessedBy:             rec.ProcessedBy,
	}
	if rec.CashConvertedAt != nil {
		at := rec.CashConvertedAt.Format(time.RFC3339)
		dto.CashConvertedAt = &at
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toCarryoverDTOs(recs []*credit.CarryoverRecord) []CarryoverRecordDTO {
	dtos := make([]CarryoverRecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toCarryoverDTO(rec)
	}
	return dtos
}

func toAttendanceDTO(a *credit.Attendance) AttendanceDTO {
	dto := AttendanceDTO{
		ID:               a.ID,
		UserID:           string(a.UserID),
		ShiftDate:        a.ShiftDate.String(),
		Status:           string(a.Status),
		TardyMinutes:     a.TardyMinutes,
		UndertimeMinutes: a.UndertimeMinutes,
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}
