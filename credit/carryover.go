/*
carryover.go - Year-end carryover and first-regularization transfers

PURPOSE:
  Reconciles unused balance across a year boundary. Two mutually
  exclusive paths per (user, from_year), both idempotent:

    - ordinary carryover: snapshot the year's balance, carry at most
      Cap credits forward, forfeit the rest
    - first-regularization transfer: a one-time, uncapped transfer of
      every probation-period credit, for employees who cross the
      six-month threshold in the year after hiring

  The ordinary pass skips users whose first-regularization transfer is
  still pending, so probation credits are never capped. If an ordinary
  record was created before eligibility became detectable (a hire-date
  correction, say), the transfer upgrades it in place rather than
  creating a second record for the same transition.

CASH CONVERSION:
  Pays out the unused remainder of an ordinary carryover. The month-0
  ledger row, if materialized, is clamped down so earned equals used;
  usage history is never rewritten.
*/
package credit

import (
	"context"
	"fmt"
)

// DefaultCarryoverCap limits ordinary year-end carryover.
func DefaultCarryoverCap() Credits { return NewCreditsFromInt(4) }

// CarryoverProcessor runs the year-boundary reconciliation.
type CarryoverProcessor struct {
	Cap       Credits
	Clock     Clock
	Projector *Projector
}

func NewCarryoverProcessor(rates RateTable, clock Clock) *CarryoverProcessor {
	return &CarryoverProcessor{
		Cap:       DefaultCarryoverCap(),
		Clock:     clock,
		Projector: NewProjector(rates, clock),
	}
}

// ProcessYearEnd runs the ordinary carryover for one user across the
// fromYear boundary. Returns the existing record with created false when
// the transition was already processed, and (nil, false, nil) when the
// user is skipped: no hire date, or a pending first-regularization
// transfer owns this transition.
func (cp *CarryoverProcessor) ProcessYearEnd(ctx context.Context, store Store, user *User, fromYear int, processedBy string) (rec *CarryoverRecord, created bool, err error) {
	existing, err := store.GetCarryover(ctx, user.ID, fromYear)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if user.HiredDate == nil {
		return nil, false, nil
	}
	if pendingFirstRegularization(*user.HiredDate, fromYear) {
		return nil, false, nil
	}

	balance, err := cp.Projector.Balance(ctx, store, user, fromYear)
	if err != nil {
		return nil, false, err
	}

	carried := balance.Min(cp.Cap)
	rec = &CarryoverRecord{
		UserID:                  user.ID,
		FromYear:                fromYear,
		ToYear:                  fromYear + 1,
		CreditsFromPreviousYear: balance,
		CarryoverCredits:        carried,
		ForfeitedCredits:        balance.Sub(carried),
		ProcessedBy:             processedBy,
	}
	if err := store.CreateCarryover(ctx, rec); err != nil {
		if IsConflict(err) {
			existing, err := store.GetCarryover(ctx, user.ID, fromYear)
			return existing, false, err
		}
		return nil, false, err
	}
	return rec, true, nil
}

// pendingFirstRegularization reports whether the fromYear transition
// belongs to the transfer path: hired in fromYear with the six-month
// threshold landing in the next year.
func pendingFirstRegularization(hired Date, fromYear int) bool {
	return hired.Year() == fromYear && RegularizationDate(hired).Year() == fromYear+1
}

// NeedsFirstRegularizationTransfer reports whether the one-time uncapped
// transfer into toYear is due: hired before toYear, regularized as of
// now, and no transfer on record. Hire dates can be edited after the
// fact, so eligibility is re-derived on every call instead of cached.
func (cp *CarryoverProcessor) NeedsFirstRegularizationTransfer(ctx context.Context, store Store, user *User, toYear int) (bool, error) {
	if user.HiredDate == nil || user.HiredDate.Year() >= toYear {
		return false, nil
	}
	if !IsRegularized(user.HiredDate, Today(cp.Clock)) {
		return false, nil
	}
	done, err := store.HasFirstRegularization(ctx, user.ID)
	if err != nil {
		return false, err
	}
	return !done, nil
}

// ProcessFirstRegularization runs the uncapped transfer into toYear.
// Returns (nil, false, nil) when the transfer is not due. An ordinary
// record already covering the transition is upgraded in place, and its
// materialized month-0 row realigned, rather than duplicated.
func (cp *CarryoverProcessor) ProcessFirstRegularization(ctx context.Context, store Store, user *User, toYear int, processedBy string) (rec *CarryoverRecord, created bool, err error) {
	needs, err := cp.NeedsFirstRegularizationTransfer(ctx, store, user, toYear)
	if err != nil || !needs {
		return nil, false, err
	}

	fromYear := toYear - 1
	balance, err := cp.Projector.Balance(ctx, store, user, fromYear)
	if err != nil {
		return nil, false, err
	}

	existing, err := store.GetCarryover(ctx, user.ID, fromYear)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		existing.CreditsFromPreviousYear = balance
		existing.CarryoverCredits = balance
		existing.ForfeitedCredits = ZeroCredits()
		existing.IsFirstRegularization = true
		existing.ProcessedBy = processedBy
		if err := store.SaveCarryover(ctx, existing); err != nil {
			return nil, false, err
		}
		if err := cp.realignCarryoverRow(ctx, store, user.ID, toYear, balance); err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}

	rec = &CarryoverRecord{
		UserID:                  user.ID,
		FromYear:                fromYear,
		ToYear:                  toYear,
		CreditsFromPreviousYear: balance,
		CarryoverCredits:        balance,
		ForfeitedCredits:        ZeroCredits(),
		IsFirstRegularization:   true,
		ProcessedBy:             processedBy,
	}
	if err := store.CreateCarryover(ctx, rec); err != nil {
		if IsConflict(err) {
			existing, err := store.GetCarryover(ctx, user.ID, fromYear)
			return existing, false, err
		}
		return nil, false, err
	}
	return rec, true, nil
}

// realignCarryoverRow resizes an already materialized month-0 row after
// an upgrade changed the carried amount. Usage is preserved.
func (cp *CarryoverProcessor) realignCarryoverRow(ctx context.Context, store Store, userID UserID, year int, carried Credits) error {
	row, err := store.GetLedgerEntry(ctx, userID, year, CarryoverMonth)
	if err != nil || row == nil {
		return err
	}
	row.CreditsEarned = carried.Max(row.CreditsUsed)
	row.CreditsBalance = row.CreditsEarned.Sub(row.CreditsUsed)
	return store.SaveLedgerEntry(ctx, row)
}

// ConversionResult reports a cash-conversion attempt.
type ConversionResult struct {
	Success          bool
	Message          string
	CreditsConverted Credits
}

// ConvertToCash pays out the unused portion of an ordinary carryover.
// First-regularization transfers are never convertible, a record converts
// at most once, and a zero-credit record has nothing to pay.
func (cp *CarryoverProcessor) ConvertToCash(ctx context.Context, store Store, userID UserID, fromYear int) (ConversionResult, error) {
	rec, err := store.GetCarryover(ctx, userID, fromYear)
	if err != nil {
		return ConversionResult{}, err
	}
	switch {
	case rec == nil:
		return ConversionResult{Success: false, Message: fmt.Sprintf("no carryover record for %d", fromYear)}, nil
	case rec.IsFirstRegularization:
		return ConversionResult{Success: false, Message: "first regularization transfers cannot be cash converted"}, nil
	case rec.CashConverted:
		return ConversionResult{Success: false, Message: "carryover already cash converted"}, nil
	case !rec.CarryoverCredits.IsPositive():
		return ConversionResult{Success: false, Message: "carryover has no credits to convert"}, nil
	}

	// The payable amount is whatever remains unspent. With no month-0
	// row the carryover was never touched, so the full amount pays out.
	converted := rec.CarryoverCredits
	row, err := store.GetLedgerEntry(ctx, userID, rec.ToYear, CarryoverMonth)
	if err != nil {
		return ConversionResult{}, err
	}
	if row != nil {
		converted = row.CreditsBalance
		row.CreditsEarned = row.CreditsUsed
		row.CreditsBalance = ZeroCredits()
		if err := store.SaveLedgerEntry(ctx, row); err != nil {
			return ConversionResult{}, err
		}
	}

	now := cp.Clock.Now()
	rec.CashConverted = true
	rec.CashConvertedAt = &now
	if err := store.SaveCarryover(ctx, rec); err != nil {
		return ConversionResult{}, err
	}

	return ConversionResult{
		Success:          true,
		Message:          fmt.Sprintf("converted %s carryover credits from %d to cash", converted, fromYear),
		CreditsConverted: converted,
	}, nil
}
