package credit

// =============================================================================
// ELIGIBILITY & WINDOW PREDICATES
// =============================================================================
//
// Pure functions over hire dates and calendar dates. The engine uses them
// to gate accrual timing and sick-leave deduction; request validation uses
// them to produce user-facing rejection reasons. They hold no state and
// never touch storage.

const (
	// RegularizationMonths is the probation length: an employee is
	// regularized once this many months have elapsed since hiring.
	RegularizationMonths = 6

	// AbsenceWindowDays blocks new leave filed within this many days of
	// the last qualifying absence.
	AbsenceWindowDays = 30

	// AdvanceNoticeDays is the minimum lead time for planned leave types.
	AdvanceNoticeDays = 14

	// SickLeaveBackfileDays and SickLeaveAheadMonths bound how far a sick
	// leave may start relative to its filing date.
	SickLeaveBackfileDays = 21
	SickLeaveAheadMonths  = 1
)

// RegularizationDate is the day the employee crosses the probation
// threshold: hire date plus six months, day clamped like an anniversary.
func RegularizationDate(hired Date) Date {
	return hired.AddMonthsClamped(RegularizationMonths)
}

// IsRegularized reports whether the employee has crossed the threshold as
// of the given date. A missing hire date is never regularized.
func IsRegularized(hired *Date, asOf Date) bool {
	if hired == nil {
		return false
	}
	return asOf.AfterOrEqual(RegularizationDate(*hired))
}

// IsEligible reports whether the employee may use leave credits. Same
// six-month threshold as regularization.
func IsEligible(hired *Date, asOf Date) bool { return IsRegularized(hired, asOf) }

// HasRecentAbsence reports whether a qualifying absence falls within the
// 30-day window ending at asOf.
func HasRecentAbsence(lastAbsence *Date, asOf Date) bool {
	if lastAbsence == nil {
		return false
	}
	return DaysBetween(*lastAbsence, asOf) < AbsenceWindowDays
}

// MeetsAdvanceNotice reports whether a planned leave was filed at least
// two weeks before it starts.
func MeetsAdvanceNotice(filed, start Date) bool {
	return DaysBetween(filed, start) >= AdvanceNoticeDays
}

// InSickLeaveWindow reports whether a sick leave's start date falls inside
// the allowed filing window: up to three weeks back, one month ahead.
func InSickLeaveWindow(filed, start Date) bool {
	earliest := filed.AddDays(-SickLeaveBackfileDays)
	latest := filed.AddMonthsClamped(SickLeaveAheadMonths)
	return start.AfterOrEqual(earliest) && start.BeforeOrEqual(latest)
}
