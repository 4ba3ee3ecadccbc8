/*
scheduler_test.go - Tests for the background sweep scheduler

PURPOSE:
	Tests the once-per-day dedupe and the start/stop lifecycle. The
	sweeps themselves are exercised through the admin endpoints in
	handlers_test.go; here the point is that a finished day never
	re-runs. setupTestHandler lives in scenarios_test.go.
*/
package api

import (
	"context"
	"testing"
	"time"

	"github.com/warp/leave-ledger/credit"
)

func TestSweepScheduler_RunNowMarksTheDay(t *testing.T) {
	handler := setupTestHandler(t)
	scheduler := NewSweepScheduler(handler.Store, handler.Service)

	scheduler.RunNow()

	ctx := context.Background()
	day := time.Now().UTC().Format("2006-01-02")
	for _, job := range []string{credit.JobAccrualSweep, credit.JobCarryoverSweep} {
		done, err := handler.Store.HasBatchRun(ctx, job, day)
		if err != nil {
			t.Fatalf("Failed to check batch run for %s: %v", job, err)
		}
		if !done {
			t.Errorf("Expected %s to be marked done for %s", job, day)
		}
	}
}

func TestSweepScheduler_SecondRunSameDayIsSkipped(t *testing.T) {
	// GIVEN: A sweep already ran today
	// WHEN: An accrual becomes due and the check fires again
	// THEN: The day is deduped and nothing posts until tomorrow

	handler := setupTestHandler(t)
	scheduler := NewSweepScheduler(handler.Store, handler.Service)
	ctx := context.Background()

	scheduler.RunNow()

	// Two months in, this user's anniversary accrual for the current
	// month is already due, so only the daily dedupe keeps the re-run
	// from posting it.
	today := credit.DateOf(time.Now().UTC())
	hired := today.AddMonthsClamped(-2)
	user := &credit.User{
		ID:        "emp-001",
		Name:      "Liam Cruz",
		Email:     "liam@example.com",
		Role:      credit.RoleEmployee,
		HiredDate: &hired,
	}
	if err := handler.Store.CreateUser(ctx, user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	scheduler.RunNow()

	entries, err := handler.Store.ListLedgerEntries(ctx, user.ID, today.Year())
	if err != nil {
		t.Fatalf("Failed to list ledger entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected the re-run to be skipped, got %d rows posted", len(entries))
	}
}

func TestSweepScheduler_StartRunsImmediately(t *testing.T) {
	handler := setupTestHandler(t)
	scheduler := NewSweepScheduler(handler.Store, handler.Service)
	scheduler.CheckInterval = time.Hour

	scheduler.Start()
	scheduler.Stop()

	// Stop waits for the goroutine, so the immediate pass on start has
	// finished by now.
	day := time.Now().UTC().Format("2006-01-02")
	done, err := handler.Store.HasBatchRun(context.Background(), credit.JobAccrualSweep, day)
	if err != nil {
		t.Fatalf("Failed to check batch run: %v", err)
	}
	if !done {
		t.Error("Expected the accrual sweep to run on start")
	}
}

func TestSweepScheduler_DisabledNeverRuns(t *testing.T) {
	handler := setupTestHandler(t)
	scheduler := NewSweepScheduler(handler.Store, handler.Service)
	scheduler.Enabled = false

	scheduler.Start()
	scheduler.Stop()

	day := time.Now().UTC().Format("2006-01-02")
	done, err := handler.Store.HasBatchRun(context.Background(), credit.JobAccrualSweep, day)
	if err != nil {
		t.Fatalf("Failed to check batch run: %v", err)
	}
	if done {
		t.Error("Expected no sweep while disabled")
	}
}
