/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. The engine distinguishes three kinds of
  outcome: scheduling gates (nil returns, never errors), business failures
  (result values like DeductionResult with Success=false), and storage or
  invariant failures (real errors, listed here), which must abort the
  surrounding transaction.

USAGE:
  Callers classify with errors.Is / the helpers below:

    if credit.IsNotFound(err) {
        // 404
    }

SEE ALSO:
  - deduct.go, carryover.go: result values for business failures
  - store.go: which operations report ErrNotFound vs (nil, nil)
*/
package credit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a record a caller explicitly asked for
	// does not exist (leave request, user). Store lookups used as normal
	// control flow return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEntry is returned when inserting a ledger row or
	// carryover record that violates its uniqueness key.
	ErrDuplicateEntry = errors.New("duplicate record")

	// ErrInvalidMonth is returned for ledger months outside 0..12.
	ErrInvalidMonth = errors.New("ledger month must be between 0 and 12")

	// ErrNoHireDate is returned by operations that cannot proceed at all
	// without a hire date (carryover predicates). Accrual treats a missing
	// hire date as a scheduling gate instead.
	ErrNoHireDate = errors.New("user has no hire date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvariantError reports a ledger row whose columns disagree. Any
// operation that detects one must abort and roll back; a committed
// invariant violation corrupts every downstream balance read.
type InvariantError struct {
	UserID UserID
	Year   int
	Month  int
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger invariant violated for user %s %d-%02d: %s",
		e.UserID, e.Year, e.Month, e.Detail)
}

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err indicates a uniqueness violation, which
// callers may treat as "already processed" for idempotent operations.
func IsConflict(err error) bool { return errors.Is(err, ErrDuplicateEntry) }
