/*
accrual.go - Monthly accrual timing and posting

PURPOSE:
  Decides whether a (user, year, month) pair earns a credit row, on what
  date the credit becomes usable, and at what rate. Timing is the subtle
  part:

    - probationary employees accrue on their hire-day anniversary, with
      the day clamped to short months (hired the 31st -> Feb 28)
    - once regularization (hire + 6 months) falls strictly before the
      first of the target month, accrual moves to the end of the month

RULES (applied in order):
  1. No hire date: never accrues.
  2. The hire month itself never accrues.
  3. A month that ends before the hire date never accrues.
  4. Regularized strictly before the month starts: end of month.
     Otherwise: hire-day anniversary, clamped to the month's length.
  5. Now earlier than the computed date: not due yet.
  6. Existing row: returned unchanged.
  7. Otherwise post earned = balance = monthly rate, used = 0.

SEE ALSO:
  - eligibility.go: RegularizationDate
  - rates.go: role-based monthly rates
*/
package credit

import (
	"context"
	"time"
)

// AccrualCalculator posts monthly credit rows.
type AccrualCalculator struct {
	Rates RateTable
	Clock Clock
}

func NewAccrualCalculator(rates RateTable, clock Clock) *AccrualCalculator {
	return &AccrualCalculator{Rates: rates, Clock: clock}
}

// AccrualDate computes the date the (year, month) credit becomes usable
// for an employee with the given hire date. ok is false when the month
// never accrues. Pure, so accrual timing is testable without a store;
// projection reuses it to keep future estimates aligned with what will
// actually post.
func AccrualDate(hired *Date, year, month int) (Date, bool) {
	if hired == nil || month < 1 || month > 12 {
		return Date{}, false
	}
	m := time.Month(month)
	if hired.Year() == year && hired.Month() == m {
		return Date{}, false
	}
	monthEnd := EndOfMonth(year, m)
	if monthEnd.Before(*hired) {
		return Date{}, false
	}
	if RegularizationDate(*hired).Before(StartOfMonth(year, m)) {
		return monthEnd, true
	}
	day := hired.Day()
	if last := DaysInMonth(year, m); day > last {
		day = last
	}
	return NewDate(year, m, day), true
}

// Accrue posts the credit row for (user, year, month) if it is due as of
// the calculator's clock. A nil entry with a nil error means nothing is
// due: the month never accrues for this user, or its accrual date has not
// arrived. An existing row is returned unchanged with created false.
func (ac *AccrualCalculator) Accrue(ctx context.Context, store Store, user *User, year, month int) (entry *LedgerEntry, created bool, err error) {
	when, ok := AccrualDate(user.HiredDate, year, month)
	if !ok {
		return nil, false, nil
	}
	if Today(ac.Clock).Before(when) {
		return nil, false, nil
	}

	existing, err := store.GetLedgerEntry(ctx, user.ID, year, month)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	rate := ac.Rates.MonthlyRate(user.Role)
	entry = &LedgerEntry{
		UserID:         user.ID,
		Year:           year,
		Month:          month,
		CreditsEarned:  rate,
		CreditsUsed:    ZeroCredits(),
		CreditsBalance: rate,
		AccruedAt:      when,
	}
	if err := store.CreateLedgerEntry(ctx, entry); err != nil {
		if IsConflict(err) {
			// Lost a race with another writer; the row exists now.
			existing, err := store.GetLedgerEntry(ctx, user.ID, year, month)
			return existing, false, err
		}
		return nil, false, err
	}
	return entry, true, nil
}
