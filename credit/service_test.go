package credit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/warp/leave-ledger/credit"
	"github.com/warp/leave-ledger/credit/store"
)

// Note: date, days, seedRow, and the other shared helpers are defined in
// accrual_test.go.

func newTestService(clock credit.Clock) (*credit.Service, *store.TxMemory) {
	st := store.NewTxMemory()
	return credit.NewService(st, credit.DefaultRateTable(), clock), st
}

// =============================================================================
// ACCRUAL SWEEP TESTS
// =============================================================================

func TestAccrueAllUsers_ProcessesAndSkips(t *testing.T) {
	// GIVEN: two due users, one without a hire date, one hired this month
	// WHEN: the January sweep runs on the 31st
	// THEN: two rows post and the other users are skipped, not failed

	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.January, 31)))

	alice := testEmployee("alice", datePtr(date(2023, time.May, 15)))
	seedUser(t, st, alice)
	bob := testEmployee("bob", datePtr(date(2023, time.February, 10)))
	bob.Role = credit.RoleManager
	seedUser(t, st, bob)
	seedUser(t, st, testEmployee("carol", nil))
	seedUser(t, st, testEmployee("dave", datePtr(date(2026, time.January, 10))))

	result, err := svc.AccrueAllUsers(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Year != 2026 || result.Month != 1 {
		t.Errorf("expected the 2026/1 sweep, got %d/%d", result.Year, result.Month)
	}
	if result.Processed != 2 {
		t.Errorf("expected 2 processed, got %d", result.Processed)
	}
	if result.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", result.Skipped)
	}
	assertCredits(t, "total posted", result.TotalCredits, days(2.75))

	assertCredits(t, "alice january", getRow(t, st, alice.ID, 2026, 1).CreditsEarned, days(1.25))
	assertCredits(t, "bob january", getRow(t, st, bob.ID, 2026, 1).CreditsEarned, days(1.5))

	// A second sweep on the same day posts nothing new.
	result, err = svc.AccrueAllUsers(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 0 || result.Skipped != 4 {
		t.Errorf("expected 0 processed and 4 skipped, got %d and %d", result.Processed, result.Skipped)
	}
}

func TestAccrueUser_PostsASingleMonth(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.January, 31)))

	alice := testEmployee("alice", datePtr(date(2023, time.May, 15)))
	seedUser(t, st, alice)

	entry, err := svc.AccrueUser(ctx, alice.ID, 2025, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected a posted row")
	}
	if want := date(2025, time.August, 31); !entry.AccruedAt.Equal(want) {
		t.Errorf("expected accrual date %s, got %s", want, entry.AccruedAt)
	}

	again, err := svc.AccrueUser(ctx, alice.ID, 2025, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again == nil || again.ID != entry.ID {
		t.Error("expected the existing row back")
	}

	rows, err := st.ListLedgerEntries(ctx, alice.ID, 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected one row, got %d", len(rows))
	}
}

func TestAccrueUser_UnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(clockAt(date(2026, time.January, 31)))

	_, err := svc.AccrueUser(ctx, "ghost", 2025, 8)
	if !credit.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}

// =============================================================================
// CARRYOVER SWEEP TESTS
// =============================================================================

func TestProcessAllCarryovers_RoutesEachUserToTheRightPath(t *testing.T) {
	// GIVEN: a veteran with a past transfer, a newly regularized hire, and
	//        a user without a hire date
	// WHEN: the 2025 year boundary is processed
	// THEN: the veteran is capped, the new hire transfers uncapped, and
	//       the last user is skipped

	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.February, 1)))

	alice := testEmployee("alice", datePtr(date(2023, time.May, 15)))
	seedUser(t, st, alice)
	seedCarryover(t, st, &credit.CarryoverRecord{
		UserID: alice.ID, FromYear: 2023, ToYear: 2024,
		CreditsFromPreviousYear: days(2.5), CarryoverCredits: days(2.5),
		IsFirstRegularization: true, ProcessedBy: "admin",
	})
	seedRow(t, st, alice.ID, 2025, 1, 5, 0)
	seedRow(t, st, alice.ID, 2025, 2, 2, 0)

	bob := testEmployee("bob", datePtr(date(2025, time.July, 11)))
	seedUser(t, st, bob)
	for month := 8; month <= 12; month++ {
		seedRow(t, st, bob.ID, 2025, month, 1.25, 0)
	}

	seedUser(t, st, testEmployee("carol", nil))

	result, err := svc.ProcessAllCarryovers(ctx, 2025, "scheduler")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("expected 2 processed, got %d", result.Processed)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", result.Skipped)
	}
	assertCredits(t, "total carryover", result.TotalCarryover, days(10.25))
	assertCredits(t, "total forfeited", result.TotalForfeited, days(3))

	aliceRec, err := st.GetCarryover(ctx, alice.ID, 2025)
	if err != nil || aliceRec == nil {
		t.Fatalf("expected a record for alice: %v", err)
	}
	if aliceRec.IsFirstRegularization {
		t.Error("expected alice on the ordinary path")
	}
	assertCredits(t, "alice carried", aliceRec.CarryoverCredits, days(4))
	assertCredits(t, "alice forfeited", aliceRec.ForfeitedCredits, days(3))

	bobRec, err := st.GetCarryover(ctx, bob.ID, 2025)
	if err != nil || bobRec == nil {
		t.Fatalf("expected a record for bob: %v", err)
	}
	if !bobRec.IsFirstRegularization {
		t.Error("expected bob on the transfer path")
	}
	assertCredits(t, "bob carried", bobRec.CarryoverCredits, days(6.25))

	// Re-running the boundary changes nothing.
	result, err = svc.ProcessAllCarryovers(ctx, 2025, "scheduler")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 0 || result.Skipped != 3 {
		t.Errorf("expected 0 processed and 3 skipped, got %d and %d", result.Processed, result.Skipped)
	}
}

func TestProcessUserCarryover_FirstProcessedTransitionIsUncapped(t *testing.T) {
	// GIVEN: a veteran whose year boundaries have never been processed
	// WHEN: the 2025 boundary runs
	// THEN: the one-time transfer fires and carries everything

	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.February, 1)))

	dave := testEmployee("dave", datePtr(date(2023, time.May, 15)))
	seedUser(t, st, dave)
	seedRow(t, st, dave.ID, 2025, 1, 5, 0)
	seedRow(t, st, dave.ID, 2025, 2, 2, 0)

	rec, err := svc.ProcessUserCarryover(ctx, dave.ID, 2025, "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if !rec.IsFirstRegularization {
		t.Error("expected the uncapped transfer")
	}
	assertCredits(t, "carried", rec.CarryoverCredits, days(7))
	assertCredits(t, "forfeited", rec.ForfeitedCredits, days(0))
}

// =============================================================================
// DEDUCTION THROUGH THE SERVICE
// =============================================================================

func TestDeductAndRestore_RoundTripThroughTheService(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.February, 1)))

	alice := testEmployee("alice", datePtr(date(2023, time.May, 15)))
	seedUser(t, st, alice)
	seedRow(t, st, alice.ID, 2026, 1, 1.25, 0)
	seedRow(t, st, alice.ID, 2026, 2, 1.25, 0)
	seedRequest(t, st, vacationRequest("req-1", alice.ID, date(2026, time.February, 20), 2))

	result, err := svc.Deduct(ctx, "req-1", 2026)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	assertCredits(t, "deducted", result.CreditsDeducted, days(2))

	stamped, _ := st.GetLeaveRequest(ctx, "req-1")
	assertCredits(t, "request stamp", stamped.CreditsDeducted, days(2))
	if stamped.CreditsYear != 2026 {
		t.Errorf("expected credits year 2026, got %d", stamped.CreditsYear)
	}

	partial, err := svc.RestorePartial(ctx, "req-1", days(0.5), "returned early")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "restored 0.5 credits to 2026 (returned early)"; partial.Message != want {
		t.Errorf("expected message %q, got %q", want, partial.Message)
	}

	rest, err := svc.Restore(ctx, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCredits(t, "restored", rest.CreditsRestored, days(1.5))

	assertCredits(t, "january balance", getRow(t, st, alice.ID, 2026, 1).CreditsBalance, days(1.25))
	assertCredits(t, "february balance", getRow(t, st, alice.ID, 2026, 2).CreditsBalance, days(1.25))
	stamped, _ = st.GetLeaveRequest(ctx, "req-1")
	assertCredits(t, "final stamp", stamped.CreditsDeducted, days(0))
}

func TestDeduct_UnknownRequest(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(clockAt(date(2026, time.February, 1)))

	_, err := svc.Deduct(ctx, "ghost", 2026)
	if !credit.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}

// =============================================================================
// CASH CONVERSION THROUGH THE SERVICE
// =============================================================================

func TestConvertCarryoverToCash_ThroughTheService(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.March, 1)))

	alice := testEmployee("alice", datePtr(date(2023, time.May, 15)))
	seedUser(t, st, alice)
	seedCarryover(t, st, &credit.CarryoverRecord{
		UserID: alice.ID, FromYear: 2025, ToYear: 2026,
		CreditsFromPreviousYear: days(7), CarryoverCredits: days(4),
		ForfeitedCredits: days(3), ProcessedBy: "admin",
	})

	result, err := svc.ConvertCarryoverToCash(ctx, alice.ID, 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	assertCredits(t, "converted", result.CreditsConverted, days(4))

	// Converting twice fails softly.
	result, err = svc.ConvertCarryoverToCash(ctx, alice.ID, 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected the second conversion to be rejected")
	}
	if want := "carryover already cash converted"; result.Message != want {
		t.Errorf("expected message %q, got %q", want, result.Message)
	}
}

// =============================================================================
// HIRE DATE CHANGE WARNINGS
// =============================================================================

func TestHireDateChangeWarnings_ListsProcessedHistory(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.February, 1)))

	alice := testEmployee("alice", datePtr(date(2023, time.May, 15)))
	seedUser(t, st, alice)
	seedCarryover(t, st, &credit.CarryoverRecord{
		UserID: alice.ID, FromYear: 2023, ToYear: 2024,
		CreditsFromPreviousYear: days(2.5), CarryoverCredits: days(2.5),
		IsFirstRegularization: true, ProcessedBy: "admin",
	})
	seedCarryover(t, st, &credit.CarryoverRecord{
		UserID: alice.ID, FromYear: 2025, ToYear: 2026,
		CreditsFromPreviousYear: days(7), CarryoverCredits: days(4),
		ForfeitedCredits: days(3), ProcessedBy: "admin",
	})
	seedRow(t, st, alice.ID, 2023, 6, 1.25, 0)
	seedRow(t, st, alice.ID, 2023, 7, 1.25, 0)

	warnings, err := svc.HireDateChangeWarnings(ctx, alice.ID, datePtr(date(2023, time.June, 1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "first regularization transfer for 2024 is already recorded") {
		t.Errorf("missing the transfer warning: %v", warnings)
	}
	if !strings.Contains(joined, "2025 year-end carryover was processed against the previous hire date") {
		t.Errorf("missing the carryover warning: %v", warnings)
	}
	if !strings.Contains(joined, "2 ledger rows for 2023 were accrued against the previous hire date") {
		t.Errorf("missing the ledger warning: %v", warnings)
	}

	// Keeping the same date spares the ledger warning.
	warnings, err = svc.HireDateChangeWarnings(ctx, alice.ID, datePtr(date(2023, time.May, 15)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestHireDateChangeWarnings_CleanUser(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(clockAt(date(2026, time.February, 1)))

	bob := testEmployee("bob", datePtr(date(2025, time.July, 11)))
	seedUser(t, st, bob)

	warnings, err := svc.HireDateChangeWarnings(ctx, bob.ID, datePtr(date(2025, time.August, 1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}
