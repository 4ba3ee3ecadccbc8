/*
validate.go - Request-time validation

PURPOSE:
  Checks a leave request against the eligibility rules before it enters
  the approval workflow. Validation collects every violation instead of
  stopping at the first, so the requester sees all problems in one
  round trip. It never mutates anything.
*/
package credit

import (
	"context"
	"fmt"
)

// ValidationResult carries a validity flag and every violation found.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// RequestValidator checks leave requests against the eligibility rules.
type RequestValidator struct {
	Clock Clock
}

// Validate runs every applicable check on req and returns the collected
// violations. An unset FiledAt defaults to today.
func (v *RequestValidator) Validate(ctx context.Context, store Store, user *User, req *LeaveRequest) (ValidationResult, error) {
	var errs []string
	today := Today(v.Clock)
	filed := req.FiledAt
	if filed.IsZero() {
		filed = today
	}

	if user.HiredDate == nil {
		errs = append(errs, "employee has no hire date on record")
	} else if req.Type.RequiresCredits() && !IsEligible(user.HiredDate, today) {
		errs = append(errs, fmt.Sprintf("employee is not yet eligible for paid leave (regularizes %s)", RegularizationDate(*user.HiredDate)))
	}

	if !req.DaysRequested.IsPositive() {
		errs = append(errs, "requested day count must be greater than zero")
	}
	if req.EndDate.Before(req.StartDate) {
		errs = append(errs, "leave end date is before its start date")
	}

	last, err := store.LastQualifyingAbsence(ctx, user.ID, today)
	if err != nil {
		return ValidationResult{}, err
	}
	if HasRecentAbsence(last, today) {
		errs = append(errs, fmt.Sprintf("a qualifying absence on %s falls within the last %d days", last, AbsenceWindowDays))
	}

	switch req.Type {
	case LeaveVacation, LeaveBereavement:
		if !MeetsAdvanceNotice(filed, req.StartDate) {
			errs = append(errs, fmt.Sprintf("%s must be filed at least %d days before it starts", req.Type, AdvanceNoticeDays))
		}
	case LeaveSick:
		if !InSickLeaveWindow(filed, req.StartDate) {
			errs = append(errs, fmt.Sprintf("sick leave must start within %d days before or %d month after the filing date", SickLeaveBackfileDays, SickLeaveAheadMonths))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}
