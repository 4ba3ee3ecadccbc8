/*
deduct.go - FIFO deduction and LIFO restoration

PURPOSE:
  Applies day-count debits and credits against the ledger rows of one
  user-year. Deduction walks buckets oldest-first: the carryover bucket
  (month 0) before any monthly row, then months ascending. Restoration
  walks the exact reverse, so a cancelled leave returns every row to its
  pre-deduction state.

  Deduction is best-effort. It takes what the ledger has and stamps the
  leave request with the amount actually deducted; any shortfall is
  reported as unpaid days in the result, never raised as an error.

CARRYOVER EXPIRY:
  The month-0 bucket is spendable only by leaves starting on or before
  March 31 of the ledger year. For such leaves the bucket is materialized
  on demand from the carryover record if it has no row yet.

TRANSACTIONS:
  Methods mutate rows through whatever Store they are given and never
  open transactions themselves. The Service wraps each call in WithTx so
  the row mutations and the request stamp commit or roll back together.
*/
package credit

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// CarryoverUsableUntil is the last leave start date that may spend the
// month-0 bucket of the given ledger year.
func CarryoverUsableUntil(year int) Date { return NewDate(year, time.March, 31) }

// DeductionEngine applies debits and restorations to one user's ledger.
type DeductionEngine struct {
	Clock Clock
}

func NewDeductionEngine(clock Clock) *DeductionEngine {
	return &DeductionEngine{Clock: clock}
}

// DeductionResult reports what a deduction actually did.
type DeductionResult struct {
	Success         bool
	Message         string
	CreditsDeducted Credits
	UnpaidDays      Credits // requested days not covered by credits
}

// RestoreResult reports what a restoration actually did.
type RestoreResult struct {
	Success         bool
	Message         string
	CreditsRestored Credits
}

// Deduct applies req.DaysRequested against the user's ledger rows for
// the given credit year, oldest bucket first, and stamps the request
// with the amount taken. Sick leave filed during probation converts to
// unpaid time without touching the ledger.
func (de *DeductionEngine) Deduct(ctx context.Context, store Store, user *User, req *LeaveRequest, year int) (DeductionResult, error) {
	if !req.Type.RequiresCredits() {
		return DeductionResult{
			Success: true,
			Message: fmt.Sprintf("leave type %s does not consume credits", req.Type),
		}, nil
	}
	if req.CreditsDeducted.IsPositive() {
		return DeductionResult{
			Success:         true,
			Message:         "credits already deducted for this request",
			CreditsDeducted: req.CreditsDeducted,
		}, nil
	}

	if req.Type == LeaveSick && !IsEligible(user.HiredDate, Today(de.Clock)) {
		req.CreditsDeducted = ZeroCredits()
		req.CreditsYear = year
		if err := store.SaveLeaveRequest(ctx, req); err != nil {
			return DeductionResult{}, err
		}
		return DeductionResult{
			Success:    true,
			Message:    "sick leave converted to unpaid time: employee not yet eligible for leave credits",
			UnpaidDays: req.DaysRequested,
		}, nil
	}

	carryoverUsable := req.StartDate.BeforeOrEqual(CarryoverUsableUntil(year))
	if carryoverUsable {
		if err := de.materializeCarryover(ctx, store, user.ID, year); err != nil {
			return DeductionResult{}, err
		}
	}

	rows, err := store.ListLedgerEntries(ctx, user.ID, year)
	if err != nil {
		return DeductionResult{}, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })

	available := ZeroCredits()
	for _, row := range rows {
		if row.Month == CarryoverMonth && !carryoverUsable {
			continue
		}
		available = available.Add(row.CreditsBalance)
	}
	if !available.IsPositive() {
		// Stamp zero so reporting still sees the attempt.
		req.CreditsDeducted = ZeroCredits()
		req.CreditsYear = year
		if err := store.SaveLeaveRequest(ctx, req); err != nil {
			return DeductionResult{}, err
		}
		return DeductionResult{
			Success:    false,
			Message:    fmt.Sprintf("no leave credits available for %d", year),
			UnpaidDays: req.DaysRequested,
		}, nil
	}

	remaining := req.DaysRequested
	deducted := ZeroCredits()
	for _, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		if row.Month == CarryoverMonth && !carryoverUsable {
			continue
		}
		applied := row.ApplyDeduction(remaining)
		if !applied.IsPositive() {
			continue
		}
		if err := row.CheckInvariant(); err != nil {
			return DeductionResult{}, err
		}
		if err := store.SaveLedgerEntry(ctx, row); err != nil {
			return DeductionResult{}, err
		}
		remaining = remaining.Sub(applied)
		deducted = deducted.Add(applied)
	}

	req.CreditsDeducted = deducted
	req.CreditsYear = year
	if err := store.SaveLeaveRequest(ctx, req); err != nil {
		return DeductionResult{}, err
	}

	if remaining.IsPositive() {
		return DeductionResult{
			Success:         true,
			Message:         fmt.Sprintf("partial deduction: %s of %s days covered, remainder unpaid", deducted, req.DaysRequested),
			CreditsDeducted: deducted,
			UnpaidDays:      remaining,
		}, nil
	}
	return DeductionResult{
		Success:         true,
		Message:         fmt.Sprintf("deducted %s credits from %d", deducted, year),
		CreditsDeducted: deducted,
	}, nil
}

// materializeCarryover creates the month-0 row for year from the
// (year-1 -> year) carryover record. Skipped when the row already exists,
// no record exists, the record was cash converted, or nothing was carried.
func (de *DeductionEngine) materializeCarryover(ctx context.Context, store Store, userID UserID, year int) error {
	existing, err := store.GetLedgerEntry(ctx, userID, year, CarryoverMonth)
	if err != nil || existing != nil {
		return err
	}
	rec, err := store.GetCarryover(ctx, userID, year-1)
	if err != nil {
		return err
	}
	if rec == nil || rec.CashConverted || !rec.CarryoverCredits.IsPositive() {
		return nil
	}
	entry := &LedgerEntry{
		UserID:         userID,
		Year:           year,
		Month:          CarryoverMonth,
		CreditsEarned:  rec.CarryoverCredits,
		CreditsUsed:    ZeroCredits(),
		CreditsBalance: rec.CarryoverCredits,
		AccruedAt:      NewDate(year, time.January, 1),
	}
	if err := store.CreateLedgerEntry(ctx, entry); err != nil && !IsConflict(err) {
		return err
	}
	return nil
}

// Restore returns everything a request deducted, walking rows in the
// exact reverse of deduction order: months descending, carryover last.
func (de *DeductionEngine) Restore(ctx context.Context, store Store, req *LeaveRequest) (RestoreResult, error) {
	return de.restore(ctx, store, req, req.CreditsDeducted, "")
}

// RestorePartial returns part of a deduction after a leave is shortened,
// capped at what the request actually deducted.
func (de *DeductionEngine) RestorePartial(ctx context.Context, store Store, req *LeaveRequest, days Credits, reason string) (RestoreResult, error) {
	return de.restore(ctx, store, req, days.Min(req.CreditsDeducted), reason)
}

func (de *DeductionEngine) restore(ctx context.Context, store Store, req *LeaveRequest, amount Credits, reason string) (RestoreResult, error) {
	if !req.CreditsDeducted.IsPositive() || !amount.IsPositive() {
		return RestoreResult{Success: true, Message: "nothing to restore"}, nil
	}

	rows, err := store.ListLedgerEntries(ctx, req.UserID, req.CreditsYear)
	if err != nil {
		return RestoreResult{}, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month > rows[j].Month })

	remaining := amount
	restored := ZeroCredits()
	for _, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		applied := row.ApplyRestoration(remaining)
		if !applied.IsPositive() {
			continue
		}
		if err := row.CheckInvariant(); err != nil {
			return RestoreResult{}, err
		}
		if err := store.SaveLedgerEntry(ctx, row); err != nil {
			return RestoreResult{}, err
		}
		remaining = remaining.Sub(applied)
		restored = restored.Add(applied)
	}

	req.CreditsDeducted = req.CreditsDeducted.Sub(restored)
	if err := store.SaveLeaveRequest(ctx, req); err != nil {
		return RestoreResult{}, err
	}

	msg := fmt.Sprintf("restored %s credits to %d", restored, req.CreditsYear)
	if reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, reason)
	}
	return RestoreResult{Success: true, Message: msg, CreditsRestored: restored}, nil
}
