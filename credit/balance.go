/*
balance.go - Balance, summary, and projection reads

PURPOSE:
  Answers "how many credits does this user have" for one year. Three
  views:

    - Balance: the usable total as of now, with carryover gates applied
    - Summary: the per-month breakdown plus carryover state, for display
    - Projected: the estimated balance at a future date, counting months
      that have not accrued yet

CARRYOVER GATES:
  Carried-in credits count toward the balance only while both hold:
    - an employee hired in the source year must be regularized; until
      then probation credits are provisional
    - ordinary carryover expires after March 31 of the target year;
      first-regularization transfers do not expire this way

  A materialized month-0 row takes precedence over the record, since the
  row reflects spending the record does not see.
*/
package credit

import "context"

// Projector answers balance questions by combining monthly ledger rows
// with carryover state.
type Projector struct {
	Rates RateTable
	Clock Clock
}

func NewProjector(rates RateTable, clock Clock) *Projector {
	return &Projector{Rates: rates, Clock: clock}
}

// Balance sums the credits usable by (user, year) as of the clock.
func (p *Projector) Balance(ctx context.Context, store Store, user *User, year int) (Credits, error) {
	rows, err := store.ListLedgerEntries(ctx, user.ID, year)
	if err != nil {
		return Credits{}, err
	}

	total := ZeroCredits()
	var carryoverRow *LedgerEntry
	for _, row := range rows {
		if row.Month == CarryoverMonth {
			carryoverRow = row
			continue
		}
		total = total.Add(row.CreditsBalance)
	}

	carryIn, _, err := p.carryoverIn(ctx, store, user, year, carryoverRow)
	if err != nil {
		return Credits{}, err
	}
	return total.Add(carryIn), nil
}

// carryoverIn resolves the usable carried-in amount for year and whether
// the gates pass. The record is the fallback when no month-0 row was
// materialized yet.
func (p *Projector) carryoverIn(ctx context.Context, store Store, user *User, year int, row *LedgerEntry) (Credits, bool, error) {
	rec, err := store.GetCarryover(ctx, user.ID, year-1)
	if err != nil {
		return Credits{}, false, err
	}

	available := ZeroCredits()
	switch {
	case row != nil:
		available = row.CreditsBalance
	case rec != nil && !rec.CashConverted:
		available = rec.CarryoverCredits
	}
	if !available.IsPositive() {
		return ZeroCredits(), false, nil
	}

	today := Today(p.Clock)
	if user.HiredDate != nil && user.HiredDate.Year() == year-1 && !IsRegularized(user.HiredDate, today) {
		return ZeroCredits(), false, nil
	}
	if firstReg := rec != nil && rec.IsFirstRegularization; !firstReg {
		if today.After(CarryoverUsableUntil(year)) {
			return ZeroCredits(), false, nil
		}
	}
	return available, true, nil
}

// BalanceSummary is the read-side aggregate for one user-year.
type BalanceSummary struct {
	UserID              UserID
	Year                int
	TotalEarned         Credits
	TotalUsed           Credits
	Balance             Credits
	CarryoverIn         Credits
	CarryoverUsable     bool
	CarryoverForfeited  Credits
	CashConverted       bool
	FirstRegularization bool
	Entries             []*LedgerEntry
}

// Summary assembles the month-by-month breakdown for one user-year.
// TotalEarned and TotalUsed are raw ledger sums; Balance applies the
// carryover gates the same way Balance does.
func (p *Projector) Summary(ctx context.Context, store Store, user *User, year int) (*BalanceSummary, error) {
	rows, err := store.ListLedgerEntries(ctx, user.ID, year)
	if err != nil {
		return nil, err
	}

	summary := &BalanceSummary{
		UserID:             user.ID,
		Year:               year,
		TotalEarned:        ZeroCredits(),
		TotalUsed:          ZeroCredits(),
		Balance:            ZeroCredits(),
		CarryoverIn:        ZeroCredits(),
		CarryoverForfeited: ZeroCredits(),
		Entries:            rows,
	}

	var carryoverRow *LedgerEntry
	for _, row := range rows {
		summary.TotalEarned = summary.TotalEarned.Add(row.CreditsEarned)
		summary.TotalUsed = summary.TotalUsed.Add(row.CreditsUsed)
		if row.Month == CarryoverMonth {
			carryoverRow = row
			continue
		}
		summary.Balance = summary.Balance.Add(row.CreditsBalance)
	}

	carryIn, usable, err := p.carryoverIn(ctx, store, user, year, carryoverRow)
	if err != nil {
		return nil, err
	}
	summary.Balance = summary.Balance.Add(carryIn)
	summary.CarryoverIn = carryIn
	summary.CarryoverUsable = usable

	rec, err := store.GetCarryover(ctx, user.ID, year-1)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		summary.CarryoverForfeited = rec.ForfeitedCredits
		summary.CashConverted = rec.CashConverted
		summary.FirstRegularization = rec.IsFirstRegularization
	}
	return summary, nil
}

// Projected estimates the balance at a future date: the current balance
// plus one monthly rate for every month of the year with no row yet whose
// accrual date falls after today and on or before the target. Reusing
// AccrualDate keeps hire-month exclusion and anniversary clamping
// consistent with what will actually post.
func (p *Projector) Projected(ctx context.Context, store Store, user *User, target Date, year int) (Credits, error) {
	current, err := p.Balance(ctx, store, user, year)
	if err != nil {
		return Credits{}, err
	}
	if user.HiredDate == nil {
		return current, nil
	}

	rows, err := store.ListLedgerEntries(ctx, user.ID, year)
	if err != nil {
		return Credits{}, err
	}
	posted := make(map[int]bool, len(rows))
	for _, row := range rows {
		posted[row.Month] = true
	}

	today := Today(p.Clock)
	rate := p.Rates.MonthlyRate(user.Role)
	projected := current
	for month := 1; month <= 12; month++ {
		if posted[month] {
			continue
		}
		when, ok := AccrualDate(user.HiredDate, year, month)
		if !ok {
			continue
		}
		if when.After(today) && when.BeforeOrEqual(target) {
			projected = projected.Add(rate)
		}
	}
	return projected, nil
}
