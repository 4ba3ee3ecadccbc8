/*
store.go - Persistence interfaces for the ledger engine

PURPOSE:
  Decouples the temporal rules from persistence mechanics. Ledger rows
  and carryover records are plain value types; everything stateful goes
  through Store. Engines receive a Store per call so the same code runs
  against the live database, an open transaction, or the in-memory test
  store.

CONVENTIONS:
  - Get* lookups used as control flow return (nil, nil) when the record
    does not exist; only malformed data or I/O produce errors.
  - Create* returns ErrDuplicateEntry (possibly wrapped) when a
    uniqueness key is violated.
  - List* results are ordered where the engine depends on order:
    ledger rows ascend by month so the FIFO walk is a plain iteration.

IMPLEMENTATIONS:
  - store/sqlite: production store, sqlx over sqlite
  - credit/store: in-memory store for tests and demos
*/
package credit

import "context"

// Store is the row-level persistence surface consumed by the engines.
type Store interface {
	// Ledger rows.
	GetLedgerEntry(ctx context.Context, userID UserID, year, month int) (*LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, userID UserID, year int) ([]*LedgerEntry, error)
	CreateLedgerEntry(ctx context.Context, entry *LedgerEntry) error
	SaveLedgerEntry(ctx context.Context, entry *LedgerEntry) error

	// Carryover records.
	GetCarryover(ctx context.Context, userID UserID, fromYear int) (*CarryoverRecord, error)
	HasFirstRegularization(ctx context.Context, userID UserID) (bool, error)
	ListCarryovers(ctx context.Context, userID UserID) ([]*CarryoverRecord, error)
	CreateCarryover(ctx context.Context, rec *CarryoverRecord) error
	SaveCarryover(ctx context.Context, rec *CarryoverRecord) error

	// Leave requests. The workflow around them is external; the engine
	// stores them so deduction stamps survive restarts.
	GetLeaveRequest(ctx context.Context, id string) (*LeaveRequest, error)
	CreateLeaveRequest(ctx context.Context, req *LeaveRequest) error
	SaveLeaveRequest(ctx context.Context, req *LeaveRequest) error

	// Users. Identity is owned elsewhere; rows live here so batch jobs
	// can enumerate and rate tiers can be resolved.
	GetUser(ctx context.Context, id UserID) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, u *User) error
	SaveUser(ctx context.Context, u *User) error

	// Attendance, read-only input for the absence-window predicate.
	CreateAttendance(ctx context.Context, a *Attendance) error
	LastQualifyingAbsence(ctx context.Context, userID UserID, asOf Date) (*Date, error)

	// Batch bookkeeping.
	HasBatchRun(ctx context.Context, job, periodKey string) (bool, error)
	RecordBatchRun(ctx context.Context, run *BatchRun) error
}

// TxStore executes a function atomically. The Store passed to fn sees
// uncommitted writes; returning an error rolls everything back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
