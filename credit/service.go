/*
service.go - Transaction-owning facade over the engines

PURPOSE:
  The surface the API layer and the sweep scheduler consume. Engines
  (accrual, deduction, carryover, projection) are pure coordinators over
  whatever Store they are handed; the Service is what makes their multi-
  row updates safe:

    - every mutating operation runs inside store.WithTx, so ledger rows,
      carryover records, and request stamps commit or roll back together
    - a per-user mutex serializes mutations for one user, so two
      concurrent FIFO walks can never interleave on the same ledger

BATCH DRIVERS:
  AccrueAllUsers and ProcessAllCarryovers iterate users sequentially,
  one transaction per user. A failing user is logged and skipped;
  everyone else's work stays committed.
*/
package credit

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Service is the application surface for the leave credit ledger.
type Service struct {
	store TxStore
	rates RateTable
	clock Clock

	accruals   *AccrualCalculator
	deductions *DeductionEngine
	carryovers *CarryoverProcessor
	projector  *Projector
	validator  *RequestValidator

	mu    sync.Mutex
	locks map[UserID]*sync.Mutex
}

func NewService(store TxStore, rates RateTable, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		store:      store,
		rates:      rates,
		clock:      clock,
		accruals:   NewAccrualCalculator(rates, clock),
		deductions: NewDeductionEngine(clock),
		carryovers: NewCarryoverProcessor(rates, clock),
		projector:  NewProjector(rates, clock),
		validator:  &RequestValidator{Clock: clock},
		locks:      make(map[UserID]*sync.Mutex),
	}
}

// lockUser serializes mutations for one user and returns the unlock.
func (s *Service) lockUser(id UserID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) user(ctx context.Context, store Store, id UserID) (*User, error) {
	u, err := store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *Service) request(ctx context.Context, store Store, id string) (*LeaveRequest, error) {
	req, err := store.GetLeaveRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("leave request %s: %w", id, ErrNotFound)
	}
	return req, nil
}

// =============================================================================
// DEDUCTION & RESTORATION
// =============================================================================

// Deduct applies an approved leave request against the user's ledger for
// the given credit year.
func (s *Service) Deduct(ctx context.Context, requestID string, year int) (DeductionResult, error) {
	owner, err := s.request(ctx, s.store, requestID)
	if err != nil {
		return DeductionResult{}, err
	}
	unlock := s.lockUser(owner.UserID)
	defer unlock()

	var result DeductionResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		req, err := s.request(ctx, tx, requestID)
		if err != nil {
			return err
		}
		user, err := s.user(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		result, err = s.deductions.Deduct(ctx, tx, user, req, year)
		return err
	})
	return result, err
}

// Restore returns everything a request deducted, after cancellation.
func (s *Service) Restore(ctx context.Context, requestID string) (RestoreResult, error) {
	owner, err := s.request(ctx, s.store, requestID)
	if err != nil {
		return RestoreResult{}, err
	}
	unlock := s.lockUser(owner.UserID)
	defer unlock()

	var result RestoreResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		req, err := s.request(ctx, tx, requestID)
		if err != nil {
			return err
		}
		result, err = s.deductions.Restore(ctx, tx, req)
		return err
	})
	return result, err
}

// RestorePartial returns part of a deduction after a leave is shortened.
func (s *Service) RestorePartial(ctx context.Context, requestID string, days Credits, reason string) (RestoreResult, error) {
	owner, err := s.request(ctx, s.store, requestID)
	if err != nil {
		return RestoreResult{}, err
	}
	unlock := s.lockUser(owner.UserID)
	defer unlock()

	var result RestoreResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		req, err := s.request(ctx, tx, requestID)
		if err != nil {
			return err
		}
		result, err = s.deductions.RestorePartial(ctx, tx, req, days, reason)
		return err
	})
	return result, err
}

// =============================================================================
// READS
// =============================================================================

// Balance is the user's usable credit total for year as of now.
func (s *Service) Balance(ctx context.Context, userID UserID, year int) (Credits, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return Credits{}, err
	}
	return s.projector.Balance(ctx, s.store, user, year)
}

// Summary is the month-by-month breakdown for one user-year.
func (s *Service) Summary(ctx context.Context, userID UserID, year int) (*BalanceSummary, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return s.projector.Summary(ctx, s.store, user, year)
}

// ProjectedBalance estimates the user's balance at a future date.
func (s *Service) ProjectedBalance(ctx context.Context, userID UserID, target Date, year int) (Credits, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return Credits{}, err
	}
	return s.projector.Projected(ctx, s.store, user, target, year)
}

// ValidateLeaveRequest checks a request against the eligibility rules
// without mutating anything.
func (s *Service) ValidateLeaveRequest(ctx context.Context, userID UserID, req *LeaveRequest) (ValidationResult, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return ValidationResult{}, err
	}
	return s.validator.Validate(ctx, s.store, user, req)
}

// =============================================================================
// ACCRUAL
// =============================================================================

// AccrueUser posts one user's accrual for (year, month) if it is due.
// Returns nil when nothing is due; an already posted row comes back
// unchanged.
func (s *Service) AccrueUser(ctx context.Context, userID UserID, year, month int) (*LedgerEntry, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	entry, _, err := s.accrueOne(ctx, user, year, month)
	return entry, err
}

func (s *Service) accrueOne(ctx context.Context, user *User, year, month int) (entry *LedgerEntry, created bool, err error) {
	unlock := s.lockUser(user.ID)
	defer unlock()

	err = s.store.WithTx(ctx, func(tx Store) error {
		entry, created, err = s.accruals.Accrue(ctx, tx, user, year, month)
		return err
	})
	return entry, created, err
}

// AccrualSweepResult reports one accrue-everyone pass.
type AccrualSweepResult struct {
	Year         int
	Month        int
	Processed    int
	Skipped      int
	TotalCredits Credits
}

// AccrueAllUsers posts the current month's accrual for every user,
// sequentially, one transaction each. Users whose accrual is not due or
// already posted count as skipped; a failing user is logged and skipped
// without aborting the rest.
func (s *Service) AccrueAllUsers(ctx context.Context) (AccrualSweepResult, error) {
	today := Today(s.clock)
	result := AccrualSweepResult{
		Year:         today.Year(),
		Month:        int(today.Month()),
		TotalCredits: ZeroCredits(),
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return result, err
	}

	for _, user := range users {
		entry, created, err := s.accrueOne(ctx, user, result.Year, result.Month)
		if err != nil {
			log.Printf("accrual sweep: user %s: %v", user.ID, err)
			result.Skipped++
			continue
		}
		if entry == nil || !created {
			result.Skipped++
			continue
		}
		result.Processed++
		result.TotalCredits = result.TotalCredits.Add(entry.CreditsEarned)
	}
	return result, nil
}

// =============================================================================
// CARRYOVER
// =============================================================================

// CarryoverSweepResult reports one process-everyone pass.
type CarryoverSweepResult struct {
	FromYear       int
	Processed      int
	Skipped        int
	TotalCarryover Credits
	TotalForfeited Credits
}

// ProcessAllCarryovers reconciles every user across the fromYear
// boundary, sequentially, one transaction each. The first-regularization
// transfer is checked before the ordinary path so a newly regularized
// employee is never capped. Already processed users count as skipped.
func (s *Service) ProcessAllCarryovers(ctx context.Context, fromYear int, processedBy string) (CarryoverSweepResult, error) {
	result := CarryoverSweepResult{
		FromYear:       fromYear,
		TotalCarryover: ZeroCredits(),
		TotalForfeited: ZeroCredits(),
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return result, err
	}

	for _, user := range users {
		rec, created, err := s.carryoverOne(ctx, user, fromYear, processedBy)
		if err != nil {
			log.Printf("carryover sweep: user %s: %v", user.ID, err)
			result.Skipped++
			continue
		}
		if rec == nil || !created {
			result.Skipped++
			continue
		}
		result.Processed++
		result.TotalCarryover = result.TotalCarryover.Add(rec.CarryoverCredits)
		result.TotalForfeited = result.TotalForfeited.Add(rec.ForfeitedCredits)
	}
	return result, nil
}

func (s *Service) carryoverOne(ctx context.Context, user *User, fromYear int, processedBy string) (rec *CarryoverRecord, created bool, err error) {
	unlock := s.lockUser(user.ID)
	defer unlock()

	err = s.store.WithTx(ctx, func(tx Store) error {
		needs, err := s.carryovers.NeedsFirstRegularizationTransfer(ctx, tx, user, fromYear+1)
		if err != nil {
			return err
		}
		if needs {
			rec, created, err = s.carryovers.ProcessFirstRegularization(ctx, tx, user, fromYear+1, processedBy)
			return err
		}
		rec, created, err = s.carryovers.ProcessYearEnd(ctx, tx, user, fromYear, processedBy)
		return err
	})
	return rec, created, err
}

// ProcessUserCarryover reconciles a single user across the fromYear
// boundary, preferring the first-regularization path when it is due.
func (s *Service) ProcessUserCarryover(ctx context.Context, userID UserID, fromYear int, processedBy string) (*CarryoverRecord, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	rec, _, err := s.carryoverOne(ctx, user, fromYear, processedBy)
	return rec, err
}

// ConvertCarryoverToCash pays out the unused remainder of an ordinary
// carryover and clamps its month-0 row.
func (s *Service) ConvertCarryoverToCash(ctx context.Context, userID UserID, fromYear int) (ConversionResult, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	var result ConversionResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		var err error
		result, err = s.carryovers.ConvertToCash(ctx, tx, userID, fromYear)
		return err
	})
	return result, err
}

// =============================================================================
// HIRE DATE CHANGES
// =============================================================================

// HireDateChangeWarnings lists the processed history a hire-date edit
// would contradict. Edits never trigger automatic recomputation; an
// administrator reviews the warnings and reprocesses manually.
func (s *Service) HireDateChangeWarnings(ctx context.Context, userID UserID, newDate *Date) ([]string, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	recs, err := s.store.ListCarryovers(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.IsFirstRegularization {
			warnings = append(warnings, fmt.Sprintf(
				"a first regularization transfer for %d is already recorded and will not be reprocessed automatically", rec.ToYear))
		} else {
			warnings = append(warnings, fmt.Sprintf(
				"the %d year-end carryover was processed against the previous hire date", rec.FromYear))
		}
	}

	if user.HiredDate != nil && (newDate == nil || !user.HiredDate.Equal(*newDate)) {
		rows, err := s.store.ListLedgerEntries(ctx, userID, user.HiredDate.Year())
		if err != nil {
			return nil, err
		}
		if n := len(rows); n > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"%d ledger rows for %d were accrued against the previous hire date; recalculate manually if the timing changed", n, user.HiredDate.Year()))
		}
	}
	return warnings, nil
}
