package credit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/warp/leave-ledger/credit"
	"github.com/warp/leave-ledger/credit/store"
)

// Note: date, days, and the other shared helpers are defined in
// accrual_test.go.

func seedAttendance(t *testing.T, st credit.Store, userID credit.UserID, shift credit.Date, status credit.AttendanceStatus) {
	t.Helper()
	att := &credit.Attendance{
		UserID:    userID,
		ShiftDate: shift,
		Status:    status,
	}
	if err := st.CreateAttendance(context.Background(), att); err != nil {
		t.Fatalf("seeding attendance on %s: %v", shift, err)
	}
}

func hasViolation(errs []string, fragment string) bool {
	for _, e := range errs {
		if strings.Contains(e, fragment) {
			return true
		}
	}
	return false
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	// GIVEN: a probationary employee with a recent absence filing a
	//        malformed vacation request on short notice
	// WHEN: validating
	// THEN: all five violations come back in one pass

	ctx := context.Background()
	st := store.NewMemory()
	validator := &credit.RequestValidator{Clock: clockAt(date(2026, time.February, 1))}
	user := testEmployee("emp-1", datePtr(date(2025, time.November, 20)))

	seedAttendance(t, st, user.ID, date(2026, time.January, 20), credit.AttendanceAdvisedAbsence)

	req := &credit.LeaveRequest{
		ID:            "req-1",
		UserID:        user.ID,
		Type:          credit.LeaveVacation,
		StartDate:     date(2026, time.February, 5),
		EndDate:       date(2026, time.February, 3),
		DaysRequested: days(0),
	}

	result, err := validator.Validate(ctx, st, user, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected the request to be invalid")
	}
	if len(result.Errors) != 5 {
		t.Fatalf("expected 5 violations, got %d: %v", len(result.Errors), result.Errors)
	}
	if !hasViolation(result.Errors, "not yet eligible for paid leave (regularizes 2026-05-20)") {
		t.Errorf("missing the eligibility violation: %v", result.Errors)
	}
	if !hasViolation(result.Errors, "day count must be greater than zero") {
		t.Errorf("missing the day-count violation: %v", result.Errors)
	}
	if !hasViolation(result.Errors, "end date is before its start date") {
		t.Errorf("missing the date-order violation: %v", result.Errors)
	}
	if !hasViolation(result.Errors, "qualifying absence on 2026-01-20 falls within the last 30 days") {
		t.Errorf("missing the absence-window violation: %v", result.Errors)
	}
	if !hasViolation(result.Errors, "VL must be filed at least 14 days before it starts") {
		t.Errorf("missing the advance-notice violation: %v", result.Errors)
	}
}

func TestValidate_CleanRequestPasses(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	validator := &credit.RequestValidator{Clock: clockAt(date(2026, time.February, 1))}
	user := testEmployee("emp-1", datePtr(date(2023, time.May, 15)))

	req := &credit.LeaveRequest{
		ID:            "req-1",
		UserID:        user.ID,
		Type:          credit.LeaveVacation,
		StartDate:     date(2026, time.February, 21),
		EndDate:       date(2026, time.February, 23),
		FiledAt:       date(2026, time.February, 1),
		DaysRequested: days(3),
	}

	result, err := validator.Validate(ctx, st, user, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected a valid request, got %v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no violations, got %v", result.Errors)
	}
}

func TestValidate_MissingHireDate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	validator := &credit.RequestValidator{Clock: clockAt(date(2026, time.February, 1))}
	user := testEmployee("emp-1", nil)

	req := &credit.LeaveRequest{
		ID:            "req-1",
		UserID:        user.ID,
		Type:          credit.LeaveVacation,
		StartDate:     date(2026, time.February, 21),
		EndDate:       date(2026, time.February, 22),
		DaysRequested: days(2),
	}

	result, err := validator.Validate(ctx, st, user, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected the request to be invalid")
	}
	if len(result.Errors) != 1 || result.Errors[0] != "employee has no hire date on record" {
		t.Errorf("expected only the hire-date violation, got %v", result.Errors)
	}
}

func TestValidate_SickLeaveWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	today := date(2026, time.February, 1)
	validator := &credit.RequestValidator{Clock: clockAt(today)}
	user := testEmployee("emp-1", datePtr(date(2023, time.May, 15)))

	sick := func(start credit.Date) *credit.LeaveRequest {
		return &credit.LeaveRequest{
			ID:            "req-1",
			UserID:        user.ID,
			Type:          credit.LeaveSick,
			StartDate:     start,
			EndDate:       start,
			FiledAt:       today,
			DaysRequested: days(1),
		}
	}

	// Sick leave needs no advance notice; tomorrow is fine.
	result, err := validator.Validate(ctx, st, user, sick(today.AddDays(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected next-day sick leave to pass, got %v", result.Errors)
	}

	// Backfiling within three weeks is allowed.
	result, _ = validator.Validate(ctx, st, user, sick(today.AddDays(-10)))
	if !result.Valid {
		t.Errorf("expected backfiled sick leave to pass, got %v", result.Errors)
	}

	// Beyond one month ahead is not.
	result, _ = validator.Validate(ctx, st, user, sick(today.AddDays(45)))
	if result.Valid {
		t.Fatal("expected sick leave 45 days out to fail")
	}
	if !hasViolation(result.Errors, "sick leave must start within 21 days before or 1 month after the filing date") {
		t.Errorf("missing the window violation: %v", result.Errors)
	}
}

func TestValidate_UnpaidTypesSkipEligibilityAndNotice(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	validator := &credit.RequestValidator{Clock: clockAt(date(2026, time.February, 1))}
	user := testEmployee("emp-1", datePtr(date(2025, time.November, 20)))

	req := &credit.LeaveRequest{
		ID:            "req-1",
		UserID:        user.ID,
		Type:          credit.LeaveOther,
		StartDate:     date(2026, time.February, 2),
		EndDate:       date(2026, time.February, 2),
		DaysRequested: days(1),
	}

	result, err := validator.Validate(ctx, st, user, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected an unpaid type to pass during probation, got %v", result.Errors)
	}
}

func TestValidate_OnlyQualifyingAbsencesBlock(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	today := date(2026, time.February, 1)
	validator := &credit.RequestValidator{Clock: clockAt(today)}
	user := testEmployee("emp-1", datePtr(date(2023, time.May, 15)))

	seedAttendance(t, st, user.ID, today.AddDays(-1), credit.AttendanceOnTime)
	seedAttendance(t, st, user.ID, today.AddDays(-5), credit.AttendanceTardy)
	seedAttendance(t, st, user.ID, today.AddDays(-7), credit.AttendanceUndertime)

	req := &credit.LeaveRequest{
		ID:            "req-1",
		UserID:        user.ID,
		Type:          credit.LeaveVacation,
		StartDate:     today.AddDays(20),
		EndDate:       today.AddDays(21),
		FiledAt:       today,
		DaysRequested: days(2),
	}

	result, err := validator.Validate(ctx, st, user, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected tardiness and undertime to not block leave, got %v", result.Errors)
	}

	// A half-day absence does.
	seedAttendance(t, st, user.ID, today.AddDays(-3), credit.AttendanceHalfDayAbsence)
	result, _ = validator.Validate(ctx, st, user, req)
	if result.Valid {
		t.Error("expected a recent half-day absence to block leave")
	}
}
