/*
Package credit implements the leave credit ledger and accrual engine.

PURPOSE:
  Tracks paid-leave credits per employee as monthly ledger rows, posts
  monthly accruals timed by hire-date anniversaries and regularization
  status, deducts and restores credits when leave requests are approved
  or cancelled, and reconciles unused balance across year boundaries:
  capped carryover with forfeiture, a one-time uncapped transfer at
  first regularization, and optional cash conversion.

KEY CONCEPTS IN THIS FILE (types.go):
  - LedgerEntry: one (user, year, month) row tracking earned/used/balance;
    month 0 is the carryover bucket materialized into the current year
  - CarryoverRecord: one row per (user, from_year) year transition
  - LeaveRequest: the slice of the external request that the ledger stamps
  - Attendance: read-only input for the absence-window predicate

DESIGN PRINCIPLES:
  1. Precision: credits are decimals, never float math
  2. Idempotence: accrual and carryover processing never double-post
  3. Ordering: deduction walks buckets FIFO, restoration walks LIFO
  4. Results over panics: business failures are values, storage failures
     are errors that propagate for rollback

USAGE:
  svc := credit.NewService(store, credit.DefaultRateTable(), credit.SystemClock{})
  res, err := svc.Deduct(ctx, requestID, 2026)

SEE ALSO:
  - accrual.go: monthly accrual timing rules
  - deduct.go: FIFO deduction / LIFO restoration
  - carryover.go: year-end and first-regularization processing
  - balance.go: balance, summary, and projection reads
*/
package credit

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS & ROLES
// =============================================================================

// UserID identifies an employee. Identity is owned by an external
// subsystem; the ledger only reads hire date and role.
type UserID string

// Role determines the monthly accrual rate tier.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleTeamLead Role = "team_lead"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// User is the slice of the identity record the ledger reads.
type User struct {
	ID        UserID
	Name      string
	Email     string
	Role      Role
	HiredDate *Date
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - One (user, year, month) credit row
// =============================================================================

// CarryoverMonth is the reserved ledger month holding credits carried in
// from the previous year.
const CarryoverMonth = 0

// LedgerEntry is a single credit bucket. Month 1-12 rows are created by
// the accrual calculator; the month-0 row is materialized on demand from
// a CarryoverRecord. Rows are mutated only by deduction, restoration,
// and cash conversion.
//
// Invariant after every mutation:
//
//	CreditsBalance == CreditsEarned - CreditsUsed
//	0 <= CreditsUsed <= CreditsEarned
type LedgerEntry struct {
	ID     int64
	UserID UserID
	Year   int
	Month  int // 0 = carryover bucket, 1..12 = calendar months

	CreditsEarned  Credits
	CreditsUsed    Credits
	CreditsBalance Credits

	// AccruedAt is the date the credits became usable: the computed
	// accrual date for monthly rows, the materialization date for the
	// carryover bucket.
	AccruedAt Date

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckInvariant verifies the earned/used/balance relationship.
func (e *LedgerEntry) CheckInvariant() error {
	if e.Month < 0 || e.Month > 12 {
		return ErrInvalidMonth
	}
	if e.CreditsUsed.IsNegative() {
		return &InvariantError{UserID: e.UserID, Year: e.Year, Month: e.Month,
			Detail: fmt.Sprintf("credits_used is negative: %s", e.CreditsUsed)}
	}
	if e.CreditsUsed.GreaterThan(e.CreditsEarned) {
		return &InvariantError{UserID: e.UserID, Year: e.Year, Month: e.Month,
			Detail: fmt.Sprintf("credits_used %s exceeds credits_earned %s", e.CreditsUsed, e.CreditsEarned)}
	}
	if !e.CreditsBalance.Equal(e.CreditsEarned.Sub(e.CreditsUsed)) {
		return &InvariantError{UserID: e.UserID, Year: e.Year, Month: e.Month,
			Detail: fmt.Sprintf("credits_balance %s != earned %s - used %s",
				e.CreditsBalance, e.CreditsEarned, e.CreditsUsed)}
	}
	return nil
}

// ApplyDeduction consumes up to amount from the row's balance and returns
// the portion actually applied (possibly zero).
func (e *LedgerEntry) ApplyDeduction(amount Credits) Credits {
	applied := amount.Min(e.CreditsBalance)
	if !applied.IsPositive() {
		return ZeroCredits()
	}
	e.CreditsUsed = e.CreditsUsed.Add(applied)
	e.CreditsBalance = e.CreditsEarned.Sub(e.CreditsUsed)
	return applied
}

// ApplyRestoration returns up to amount of previously used credits to the
// row and reports the portion actually restored.
func (e *LedgerEntry) ApplyRestoration(amount Credits) Credits {
	applied := amount.Min(e.CreditsUsed)
	if !applied.IsPositive() {
		return ZeroCredits()
	}
	e.CreditsUsed = e.CreditsUsed.Sub(applied)
	e.CreditsBalance = e.CreditsEarned.Sub(e.CreditsUsed)
	return applied
}

// =============================================================================
// CARRYOVER RECORD - One row per (user, from_year) transition
// =============================================================================

// CarryoverRecord captures the year-end reconciliation of unused balance.
// Created once per (user, from_year); a second processing attempt returns
// the existing record unchanged. A first-regularization transfer either
// creates the record uncapped or upgrades an ordinary record in place.
type CarryoverRecord struct {
	ID       int64
	UserID   UserID
	FromYear int
	ToYear   int

	// CreditsFromPreviousYear is the unused-balance snapshot at processing
	// time; CarryoverCredits is what actually carried (capped unless first
	// regularization); ForfeitedCredits is the difference.
	CreditsFromPreviousYear Credits
	CarryoverCredits        Credits
	ForfeitedCredits        Credits

	IsFirstRegularization bool
	CashConverted         bool
	CashConvertedAt       *time.Time
	ProcessedBy           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LEAVE REQUEST - External entity, partially owned here
// =============================================================================

// LeaveType categorizes a leave request. Only VL, SL, and BL consume
// ledger credits.
type LeaveType string

const (
	LeaveVacation    LeaveType = "VL"
	LeaveSick        LeaveType = "SL"
	LeaveBereavement LeaveType = "BL"
	LeaveOther       LeaveType = "others"
)

// RequiresCredits reports whether the leave type consumes ledger credits.
func (t LeaveType) RequiresCredits() bool {
	switch t {
	case LeaveVacation, LeaveSick, LeaveBereavement:
		return true
	}
	return false
}

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveCancelled LeaveStatus = "cancelled"
)

// LeaveRequest is the slice of the external approval workflow's record
// that this engine reads and stamps. CreditsDeducted and CreditsYear are
// owned by the ledger as the record of what it did, enabling exact
// reversal on cancellation.
type LeaveRequest struct {
	ID            string
	UserID        UserID
	Type          LeaveType
	StartDate     Date
	EndDate       Date
	FiledAt       Date
	DaysRequested Credits
	Status        LeaveStatus
	Reason        string

	CreditsDeducted Credits
	CreditsYear     int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// ATTENDANCE - Read-only input from the ingestion pipeline
// =============================================================================

type AttendanceStatus string

const (
	AttendanceOnTime         AttendanceStatus = "on_time"
	AttendanceTardy          AttendanceStatus = "tardy"
	AttendanceUndertime      AttendanceStatus = "undertime"
	AttendanceHalfDayAbsence AttendanceStatus = "half_day_absence"
	AttendanceNCNS           AttendanceStatus = "ncns" // no call, no show
	AttendanceAdvisedAbsence AttendanceStatus = "advised_absence"
)

// IsQualifyingAbsence reports whether the status counts against the
// 30-day absence window used by leave validation.
func (s AttendanceStatus) IsQualifyingAbsence() bool {
	switch s {
	case AttendanceHalfDayAbsence, AttendanceNCNS, AttendanceAdvisedAbsence:
		return true
	}
	return false
}

// Attendance is one shift record. The ledger never mutates attendance;
// it only reads shift dates for the absence-window predicate.
type Attendance struct {
	ID               string
	UserID           UserID
	ShiftDate        Date
	Status           AttendanceStatus
	TardyMinutes     int
	UndertimeMinutes int
	CreatedAt        time.Time
}

// =============================================================================
// BATCH RUN - Sweep bookkeeping
// =============================================================================

// BatchRun records one execution of a batch job so the scheduler can skip
// periods it already covered after a restart.
type BatchRun struct {
	ID        int64
	Job       string
	PeriodKey string
	RanAt     time.Time
	Processed int
	Skipped   int
	Detail    string
}

const (
	JobAccrualSweep   = "accrual_sweep"
	JobCarryoverSweep = "carryover_sweep"
)
