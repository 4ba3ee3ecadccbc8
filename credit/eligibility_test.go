package credit_test

import (
	"testing"
	"time"

	"github.com/warp/leave-ledger/credit"
)

// Note: date, datePtr, and the other shared helpers are defined in
// accrual_test.go.

func TestRegularizationDate_SixMonthsFromHire(t *testing.T) {
	got := credit.RegularizationDate(date(2025, time.July, 11))
	if want := date(2026, time.January, 11); !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRegularizationDate_ClampsToShortMonths(t *testing.T) {
	got := credit.RegularizationDate(date(2025, time.August, 31))
	if want := date(2026, time.February, 28); !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	got = credit.RegularizationDate(date(2023, time.August, 31))
	if want := date(2024, time.February, 29); !got.Equal(want) {
		t.Errorf("expected %s in a leap year, got %s", want, got)
	}
}

func TestIsRegularized_MissingHireDate(t *testing.T) {
	if credit.IsRegularized(nil, date(2026, time.June, 1)) {
		t.Error("expected a missing hire date to never regularize")
	}
}

func TestIsRegularized_ThresholdDayCounts(t *testing.T) {
	hired := datePtr(date(2025, time.July, 11))

	if credit.IsRegularized(hired, date(2026, time.January, 10)) {
		t.Error("expected not regularized the day before the threshold")
	}
	if !credit.IsRegularized(hired, date(2026, time.January, 11)) {
		t.Error("expected regularized on the threshold day itself")
	}
	if !credit.IsRegularized(hired, date(2026, time.March, 1)) {
		t.Error("expected regularized well after the threshold")
	}
}

func TestHasRecentAbsence_ThirtyDayWindow(t *testing.T) {
	asOf := date(2026, time.March, 15)

	if credit.HasRecentAbsence(nil, asOf) {
		t.Error("expected no absence on record to clear the window")
	}
	if !credit.HasRecentAbsence(datePtr(asOf.AddDays(-29)), asOf) {
		t.Error("expected an absence 29 days ago to fall inside the window")
	}
	if credit.HasRecentAbsence(datePtr(asOf.AddDays(-30)), asOf) {
		t.Error("expected an absence exactly 30 days ago to fall outside the window")
	}
	if !credit.HasRecentAbsence(datePtr(asOf), asOf) {
		t.Error("expected a same-day absence to fall inside the window")
	}
}

func TestMeetsAdvanceNotice_TwoWeekBoundary(t *testing.T) {
	filed := date(2026, time.March, 1)

	if credit.MeetsAdvanceNotice(filed, filed.AddDays(13)) {
		t.Error("expected 13 days of notice to fail")
	}
	if !credit.MeetsAdvanceNotice(filed, filed.AddDays(14)) {
		t.Error("expected 14 days of notice to pass")
	}
}

func TestInSickLeaveWindow_Bounds(t *testing.T) {
	filed := date(2026, time.March, 15)

	cases := []struct {
		name  string
		start credit.Date
		want  bool
	}{
		{"three weeks back", filed.AddDays(-21), true},
		{"past the backfile limit", filed.AddDays(-22), false},
		{"same day", filed, true},
		{"one month ahead", date(2026, time.April, 15), true},
		{"past the ahead limit", date(2026, time.April, 16), false},
	}
	for _, tc := range cases {
		if got := credit.InSickLeaveWindow(filed, tc.start); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
