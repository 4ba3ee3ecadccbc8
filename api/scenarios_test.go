/*
scenarios_test.go - Tests for the demo scenario loaders

PURPOSE:
	Tests that each scenario builds the story it advertises:
	- Users are created with the right hire dates
	- Accruals are backfilled through the real service
	- Leave requests end up deducted or converted as the story needs
	- Carryover records land on the right side of the cap

The loaders anchor to the current date, so expectations here are derived
the same way instead of hard-coding dates. doRequest and decodeBody live
in handlers_test.go.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/warp/leave-ledger/credit"
	"github.com/warp/leave-ledger/store/sqlite"
)

// setupTestHandler builds a handler on an in-memory store with the real
// clock, matching what the scenario loaders see.
func setupTestHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	service := credit.NewService(store, credit.DefaultRateTable(), nil)
	return NewHandler(store, service)
}

func TestScenario_NewHireProbation(t *testing.T) {
	// GIVEN: New hire probation scenario
	// WHEN: Loading the scenario
	// THEN: Anniversary accruals, an unpaid sick leave and an armed
	//       absence window should all be in place

	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadNewHireProbationScenario(ctx); err != nil {
		t.Fatalf("Failed to load new-hire-probation scenario: %v", err)
	}

	today := credit.DateOf(time.Now().UTC())

	// Verify the employee is three months in and still on probation
	user, err := handler.Store.GetUser(ctx, "emp-001")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user == nil || user.HiredDate == nil {
		t.Fatal("Expected emp-001 with a hire date")
	}
	hired := *user.HiredDate
	if want := today.AddMonthsClamped(-3); hired.String() != want.String() {
		t.Errorf("Expected hire date %s, got %s", want, hired)
	}
	if credit.IsRegularized(user.HiredDate, today) {
		t.Error("Expected emp-001 to still be on probation")
	}

	// Verify three anniversary accruals posted, the hire month excluded.
	// The probation window can straddle a year boundary, so collect rows
	// from both calendar years it may touch.
	entries, err := handler.Store.ListLedgerEntries(ctx, user.ID, hired.Year())
	if err != nil {
		t.Fatalf("Failed to list ledger entries: %v", err)
	}
	if today.Year() != hired.Year() {
		more, err := handler.Store.ListLedgerEntries(ctx, user.ID, today.Year())
		if err != nil {
			t.Fatalf("Failed to list ledger entries: %v", err)
		}
		entries = append(entries, more...)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 monthly accruals, got %d", len(entries))
	}
	total := credit.ZeroCredits()
	for _, entry := range entries {
		total = total.Add(entry.CreditsEarned)
	}
	if want := credit.NewCredits(3.75); !total.Equal(want) {
		t.Errorf("Expected %s credits earned over probation, got %s", want, total)
	}

	// Verify the sick leave was approved as unpaid time
	req, err := handler.Store.GetLeaveRequest(ctx, "req-001")
	if err != nil {
		t.Fatalf("Failed to get leave request: %v", err)
	}
	if req == nil {
		t.Fatal("Leave request 'req-001' not found")
	}
	if req.Status != credit.LeaveApproved {
		t.Errorf("Expected status %s, got %s", credit.LeaveApproved, req.Status)
	}
	if !req.CreditsDeducted.IsZero() {
		t.Errorf("Expected no credits deducted for probation sick leave, got %s", req.CreditsDeducted)
	}

	// Verify the advised absence arms the 30-day window
	last, err := handler.Store.LastQualifyingAbsence(ctx, user.ID, today)
	if err != nil {
		t.Fatalf("Failed to get last qualifying absence: %v", err)
	}
	if last == nil {
		t.Fatal("Expected a qualifying absence on record")
	}
	if want := today.AddDays(-15); last.String() != want.String() {
		t.Errorf("Expected last absence %s, got %s", want, last)
	}
}

func TestScenario_FirstRegularization(t *testing.T) {
	// GIVEN: First regularization scenario
	// WHEN: Loading the scenario
	// THEN: The probation balance should transfer uncapped and fund the
	//       vacation request

	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadFirstRegularizationScenario(ctx); err != nil {
		t.Fatalf("Failed to load first-regularization scenario: %v", err)
	}

	today := credit.DateOf(time.Now().UTC())
	lastYear := today.Year() - 1
	hired := credit.NewDate(lastYear, time.July, 11)

	// Verify the employee was hired in July last year
	user, err := handler.Store.GetUser(ctx, "emp-001")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user == nil || user.HiredDate == nil {
		t.Fatal("Expected emp-001 with a hire date")
	}
	if user.HiredDate.String() != hired.String() {
		t.Errorf("Expected hire date %s, got %s", hired, user.HiredDate)
	}

	rec, err := handler.Store.GetCarryover(ctx, user.ID, lastYear)
	if err != nil {
		t.Fatalf("Failed to get carryover record: %v", err)
	}

	// Loaded in the first days of January the six-month threshold has
	// not arrived yet, so nothing transfers and the request stays put.
	if today.Before(credit.RegularizationDate(hired)) {
		if rec != nil {
			t.Fatalf("Expected no transfer before regularization, got %+v", rec)
		}
		return
	}

	// Verify the transfer carried every probation credit, uncapped.
	// July never accrues, so probation earned August through December.
	if rec == nil {
		t.Fatal("Expected a first regularization transfer on record")
	}
	if !rec.IsFirstRegularization {
		t.Error("Expected the transfer to be flagged as first regularization")
	}
	if want := credit.NewCredits(6.25); !rec.CreditsFromPreviousYear.Equal(want) {
		t.Errorf("Expected %s unused at year end, got %s", want, rec.CreditsFromPreviousYear)
	}
	if want := credit.NewCredits(6.25); !rec.CarryoverCredits.Equal(want) {
		t.Errorf("Expected %s transferred, got %s", want, rec.CarryoverCredits)
	}
	if !rec.ForfeitedCredits.IsZero() {
		t.Errorf("Expected nothing forfeited, got %s", rec.ForfeitedCredits)
	}

	has, err := handler.Store.HasFirstRegularization(ctx, user.ID)
	if err != nil {
		t.Fatalf("Failed to check first regularization: %v", err)
	}
	if !has {
		t.Error("Expected the one-time transfer to be on record")
	}

	// Verify the vacation request cleared against the balance
	req, err := handler.Store.GetLeaveRequest(ctx, "req-001")
	if err != nil {
		t.Fatalf("Failed to get leave request: %v", err)
	}
	if req == nil {
		t.Fatal("Leave request 'req-001' not found")
	}
	if req.Status != credit.LeaveApproved {
		t.Errorf("Expected status %s, got %s", credit.LeaveApproved, req.Status)
	}
	if !req.CreditsDeducted.IsPositive() {
		t.Errorf("Expected credits deducted, got %s", req.CreditsDeducted)
	}
	if req.CreditsYear != today.Year() {
		t.Errorf("Expected credits year %d, got %d", today.Year(), req.CreditsYear)
	}
}

func TestScenario_YearEndCarryover(t *testing.T) {
	// GIVEN: Year-end carryover scenario
	// WHEN: Loading the scenario
	// THEN: Both tenured employees should be capped at 4, with one
	//       balance converted to cash

	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadYearEndCarryoverScenario(ctx); err != nil {
		t.Fatalf("Failed to load year-end-carryover scenario: %v", err)
	}

	lastYear := time.Now().UTC().Year() - 1

	// Verify both employees exist
	users, err := handler.Store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}

	// Verify Evan spent 8 of his 15 days last year
	req, err := handler.Store.GetLeaveRequest(ctx, "req-001")
	if err != nil {
		t.Fatalf("Failed to get leave request: %v", err)
	}
	if req == nil {
		t.Fatal("Leave request 'req-001' not found")
	}
	if req.Status != credit.LeaveApproved {
		t.Errorf("Expected status %s, got %s", credit.LeaveApproved, req.Status)
	}
	if want := credit.NewCreditsFromInt(8); !req.CreditsDeducted.Equal(want) {
		t.Errorf("Expected %s credits deducted, got %s", want, req.CreditsDeducted)
	}
	if req.CreditsYear != lastYear {
		t.Errorf("Expected credits year %d, got %d", lastYear, req.CreditsYear)
	}

	// Verify the cap: Evan carries 4 of 7 and forfeits 3
	evan, err := handler.Store.GetCarryover(ctx, "emp-001", lastYear)
	if err != nil {
		t.Fatalf("Failed to get carryover record: %v", err)
	}
	if evan == nil {
		t.Fatal("Expected a carryover record for emp-001")
	}
	if evan.IsFirstRegularization {
		t.Error("Expected an ordinary carryover for emp-001")
	}
	if want := credit.NewCreditsFromInt(7); !evan.CreditsFromPreviousYear.Equal(want) {
		t.Errorf("Expected %s unused at year end, got %s", want, evan.CreditsFromPreviousYear)
	}
	if want := credit.NewCreditsFromInt(4); !evan.CarryoverCredits.Equal(want) {
		t.Errorf("Expected %s carried, got %s", want, evan.CarryoverCredits)
	}
	if want := credit.NewCreditsFromInt(3); !evan.ForfeitedCredits.Equal(want) {
		t.Errorf("Expected %s forfeited, got %s", want, evan.ForfeitedCredits)
	}
	if evan.CashConverted {
		t.Error("Expected emp-001 to keep the carryover, not cash out")
	}

	// Verify Mia carried 4 of 15 and took the cash
	mia, err := handler.Store.GetCarryover(ctx, "emp-002", lastYear)
	if err != nil {
		t.Fatalf("Failed to get carryover record: %v", err)
	}
	if mia == nil {
		t.Fatal("Expected a carryover record for emp-002")
	}
	if want := credit.NewCreditsFromInt(15); !mia.CreditsFromPreviousYear.Equal(want) {
		t.Errorf("Expected %s unused at year end, got %s", want, mia.CreditsFromPreviousYear)
	}
	if want := credit.NewCreditsFromInt(4); !mia.CarryoverCredits.Equal(want) {
		t.Errorf("Expected %s carried, got %s", want, mia.CarryoverCredits)
	}
	if want := credit.NewCreditsFromInt(11); !mia.ForfeitedCredits.Equal(want) {
		t.Errorf("Expected %s forfeited, got %s", want, mia.ForfeitedCredits)
	}
	if !mia.CashConverted {
		t.Error("Expected emp-002 to be cash converted")
	}
	if mia.CashConvertedAt == nil {
		t.Error("Expected a cash conversion timestamp")
	}

	// Verify the earlier transition recorded an empty first
	// regularization transfer for both, so the lastYear pass applied
	// the ordinary cap
	for _, id := range []credit.UserID{"emp-001", "emp-002"} {
		first, err := handler.Store.GetCarryover(ctx, id, lastYear-1)
		if err != nil {
			t.Fatalf("Failed to get %d carryover for %s: %v", lastYear-1, id, err)
		}
		if first == nil {
			t.Errorf("Expected a %d carryover record for %s", lastYear-1, id)
			continue
		}
		if !first.IsFirstRegularization {
			t.Errorf("Expected the %d transition for %s to be the first regularization transfer", lastYear-1, id)
		}
		if !first.CarryoverCredits.IsZero() {
			t.Errorf("Expected nothing to transfer for %s, got %s", id, first.CarryoverCredits)
		}
	}
}

func TestScenarioEndpoints_OverHTTP(t *testing.T) {
	handler := setupTestHandler(t)
	router := NewRouter(handler)

	// The catalog lists all three stories
	rec := doRequest(t, router, http.MethodGet, "/api/scenarios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var list []ScenarioDTO
	decodeBody(t, rec, &list)
	if len(list) != 3 {
		t.Fatalf("Expected 3 scenarios, got %d", len(list))
	}
	wantIDs := []string{"new-hire-probation", "first-regularization", "year-end-carryover"}
	for i, want := range wantIDs {
		if list[i].ID != want {
			t.Errorf("Expected scenario '%s' at position %d, got '%s'", want, i, list[i].ID)
		}
	}

	// Nothing loaded yet
	rec = doRequest(t, router, http.MethodGet, "/api/scenarios/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "null" {
		t.Errorf("Expected null before any load, got %s", body)
	}

	// Unknown IDs are rejected
	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ID: "time-travel"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown scenario, got %d", rec.Code)
	}

	// Loading flips the current scenario
	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ID: "year-end-carryover"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Failed to load scenario: status %d, body %s", rec.Code, rec.Body.String())
	}
	var loaded map[string]string
	decodeBody(t, rec, &loaded)
	if loaded["status"] != "loaded" || loaded["scenario"] != "year-end-carryover" {
		t.Errorf("Expected a loaded confirmation, got %v", loaded)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/scenarios/current", nil)
	var current ScenarioDTO
	decodeBody(t, rec, &current)
	if current.ID != "year-end-carryover" {
		t.Errorf("Expected current scenario 'year-end-carryover', got '%s'", current.ID)
	}

	// Loading another scenario resets the previous data
	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ID: "new-hire-probation"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Failed to load scenario: status %d, body %s", rec.Code, rec.Body.String())
	}
	users, err := handler.Store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("Expected the single probation user after the switch, got %d", len(users))
	}
	if handler.currentScenario != "new-hire-probation" {
		t.Errorf("Expected current scenario 'new-hire-probation', got '%s'", handler.currentScenario)
	}
}
