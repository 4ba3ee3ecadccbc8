/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates users, attendance,
	ledger rows and leave requests that demonstrate specific features.

AVAILABLE SCENARIOS:

	new-hire-probation:   Employee three months in, sick leave converts
	                      to unpaid time, absence window armed
	first-regularization: Probation credits transferred uncapped at the
	                      six-month threshold
	year-end-carryover:   Capped carryover with forfeiture, plus a cash
	                      conversion

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create users
 3. Backfill accruals month by month through the real service
 4. File and deduct leave requests
 5. Run carryover processing where the story needs it

USAGE VIA API:

	POST /api/scenarios/load
	{"id": "year-end-carryover"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	Loaders anchor to the current date so the stories stay current.

SEE ALSO:
  - handlers.go: ResetDatabase and the deduct endpoint the loaders mirror
  - credit/service.go: AccrueUser, Deduct, ProcessUserCarryover
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-ledger/credit"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-hire-probation",
		Name:        "New Hire on Probation",
		Description: "Three months in: accruals posting on the hire-day anniversary, sick leave converting to unpaid time, a recent absence arming the 30-day window",
	},
	{
		ID:          "first-regularization",
		Name:        "First Regularization",
		Description: "Hired in July last year, regularized in January: probation credits transfer uncapped into the current year",
	},
	{
		ID:          "year-end-carryover",
		Name:        "Year-End Carryover",
		Description: "Tenured employees at year end: carryover capped at 4 with forfeiture, and one balance converted to cash",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context) error
	switch req.ID {
	case "new-hire-probation":
		loader = h.loadNewHireProbationScenario
	case "first-regularization":
		loader = h.loadFirstRegularizationScenario
	case "year-end-carryover":
		loader = h.loadYearEndCarryoverScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := loader(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadNewHireProbationScenario(ctx context.Context) error {
	today := credit.DateOf(time.Now().UTC())
	hired := today.AddMonthsClamped(-3)

	user := &credit.User{
		ID:        "emp-001",
		Name:      "Liam Cruz",
		Email:     "liam@example.com",
		Role:      credit.RoleEmployee,
		HiredDate: &hired,
	}
	if err := h.Store.CreateUser(ctx, user); err != nil {
		return err
	}
	if err := h.backfillAccruals(ctx, user.ID, hired, today); err != nil {
		return err
	}

	// A qualifying absence 15 days ago arms the 30-day window; try
	// POST /api/users/emp-001/validate to see the rejection.
	attendance := []*credit.Attendance{
		{ID: "att-001", UserID: user.ID, ShiftDate: today.AddDays(-15), Status: credit.AttendanceAdvisedAbsence},
		{ID: "att-002", UserID: user.ID, ShiftDate: today.AddDays(-8), Status: credit.AttendanceTardy, TardyMinutes: 12},
		{ID: "att-003", UserID: user.ID, ShiftDate: today.AddDays(-1), Status: credit.AttendanceOnTime},
	}
	for _, att := range attendance {
		if err := h.Store.CreateAttendance(ctx, att); err != nil {
			return err
		}
	}

	// Sick leave during probation: deduction converts it to unpaid time.
	req := &credit.LeaveRequest{
		ID:              "req-001",
		UserID:          user.ID,
		Type:            credit.LeaveSick,
		StartDate:       today.AddDays(3),
		EndDate:         today.AddDays(3),
		FiledAt:         today,
		DaysRequested:   credit.NewCreditsFromInt(1),
		Status:          credit.LeavePending,
		Reason:          "flu",
		CreditsDeducted: credit.ZeroCredits(),
	}
	if err := h.Store.CreateLeaveRequest(ctx, req); err != nil {
		return err
	}
	return h.approveAndDeduct(ctx, req.ID, today.Year())
}

func (h *Handler) loadFirstRegularizationScenario(ctx context.Context) error {
	today := credit.DateOf(time.Now().UTC())
	lastYear := today.Year() - 1
	hired := credit.NewDate(lastYear, time.July, 11)

	user := &credit.User{
		ID:        "emp-001",
		Name:      "Rosa Alvarez",
		Email:     "rosa@example.com",
		Role:      credit.RoleEmployee,
		HiredDate: &hired,
	}
	if err := h.Store.CreateUser(ctx, user); err != nil {
		return err
	}

	// Probation accruals August through December, then this year's.
	if err := h.backfillAccruals(ctx, user.ID, hired, today); err != nil {
		return err
	}

	// The year-end batch detects the January regularization and carries
	// the probation balance uncapped.
	if _, err := h.Service.ProcessUserCarryover(ctx, user.ID, lastYear, "scenario"); err != nil {
		return err
	}

	req := &credit.LeaveRequest{
		ID:              "req-001",
		UserID:          user.ID,
		Type:            credit.LeaveVacation,
		StartDate:       today.AddDays(20),
		EndDate:         today.AddDays(22),
		FiledAt:         today,
		DaysRequested:   credit.NewCreditsFromInt(3),
		Status:          credit.LeavePending,
		Reason:          "family trip",
		CreditsDeducted: credit.ZeroCredits(),
	}
	if err := h.Store.CreateLeaveRequest(ctx, req); err != nil {
		return err
	}
	return h.approveAndDeduct(ctx, req.ID, today.Year())
}

func (h *Handler) loadYearEndCarryoverScenario(ctx context.Context) error {
	today := credit.DateOf(time.Now().UTC())
	lastYear := today.Year() - 1
	hired := credit.NewDate(today.Year()-3, time.March, 1)

	evan := &credit.User{
		ID:        "emp-001",
		Name:      "Evan Park",
		Email:     "evan@example.com",
		Role:      credit.RoleEmployee,
		HiredDate: &hired,
	}
	mia := &credit.User{
		ID:        "emp-002",
		Name:      "Mia Chen",
		Email:     "mia@example.com",
		Role:      credit.RoleEmployee,
		HiredDate: &hired,
	}
	for _, user := range []*credit.User{evan, mia} {
		if err := h.Store.CreateUser(ctx, user); err != nil {
			return err
		}
		if err := h.backfillAccruals(ctx, user.ID, credit.NewDate(lastYear, time.January, 1), today); err != nil {
			return err
		}
	}

	// Evan used eight days in November, leaving 7 of 15 at year end.
	req := &credit.LeaveRequest{
		ID:              "req-001",
		UserID:          evan.ID,
		Type:            credit.LeaveVacation,
		StartDate:       credit.NewDate(lastYear, time.November, 3),
		EndDate:         credit.NewDate(lastYear, time.November, 12),
		FiledAt:         credit.NewDate(lastYear, time.October, 1),
		DaysRequested:   credit.NewCreditsFromInt(8),
		Status:          credit.LeavePending,
		Reason:          "trip home",
		CreditsDeducted: credit.ZeroCredits(),
	}
	if err := h.Store.CreateLeaveRequest(ctx, req); err != nil {
		return err
	}
	if err := h.approveAndDeduct(ctx, req.ID, lastYear); err != nil {
		return err
	}

	// Year-end batches run in year order; the first transition records
	// the (empty) first-regularization transfer, the second applies the
	// ordinary cap: Evan carries 4 and forfeits 3, Mia carries 4 and
	// forfeits 11.
	for _, user := range []*credit.User{evan, mia} {
		if _, err := h.Service.ProcessUserCarryover(ctx, user.ID, lastYear-1, "scenario"); err != nil {
			return err
		}
		if _, err := h.Service.ProcessUserCarryover(ctx, user.ID, lastYear, "scenario"); err != nil {
			return err
		}
	}

	// Mia takes the cash instead.
	if _, err := h.Service.ConvertCarryoverToCash(ctx, mia.ID, lastYear); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// LOADER HELPERS
// =============================================================================

// backfillAccruals posts every accrual due between from and to, month by
// month. Months that are not due are skipped by the calculator, so
// over-asking is harmless.
func (h *Handler) backfillAccruals(ctx context.Context, userID credit.UserID, from, to credit.Date) error {
	year, month := from.Year(), int(from.Month())
	for year < to.Year() || (year == to.Year() && month <= int(to.Month())) {
		if _, err := h.Service.AccrueUser(ctx, userID, year, month); err != nil {
			return err
		}
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return nil
}

// approveAndDeduct mirrors the deduct endpoint: run the ledger deduction,
// then record the workflow outcome on the request.
func (h *Handler) approveAndDeduct(ctx context.Context, requestID string, year int) error {
	result, err := h.Service.Deduct(ctx, requestID, year)
	if err != nil {
		return err
	}
	if result.Success {
		h.setRequestStatus(ctx, requestID, credit.LeaveApproved)
	}
	return nil
}
