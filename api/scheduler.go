/*
scheduler.go - Automated accrual and carryover sweeps

PURPOSE:
  Periodically posts monthly accruals that have come due and re-runs the
  year-end carryover batch so first-regularization transfers are caught
  as soon as employees cross the six-month threshold.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each sweep runs at most once per calendar day (batch_runs dedupe),
    so restarts and short intervals never re-run a finished day
  - Failures are logged, never fatal; the next day retries

CONFIGURATION:
  - CheckInterval: How often to check (default: 6 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(store, service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - credit/service.go: AccrueAllUsers, ProcessAllCarryovers
  - store/sqlite/sqlite.go: batch_runs bookkeeping
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/leave-ledger/credit"
	"github.com/warp/leave-ledger/store/sqlite"
)

// SweepScheduler runs the monthly accrual sweep and the year-end
// carryover batch in the background.
type SweepScheduler struct {
	Store         *sqlite.Store
	Service       *credit.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(store *sqlite.Store, service *credit.Service) *SweepScheduler {
	return &SweepScheduler{
		Store:         store,
		Service:       service,
		CheckInterval: 6 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.checkAndProcess()

	for {
		select {
		case <-ss.ticker.C:
			ss.checkAndProcess()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now().UTC()
	day := now.Format("2006-01-02")

	ss.runAccrualSweep(ctx, now, day)
	ss.runCarryoverSweep(ctx, now, day)
}

func (ss *SweepScheduler) runAccrualSweep(ctx context.Context, now time.Time, day string) {
	done, err := ss.Store.HasBatchRun(ctx, credit.JobAccrualSweep, day)
	if err != nil {
		log.Printf("[Scheduler] Error checking accrual sweep state: %v", err)
		return
	}
	if done {
		return
	}

	result, err := ss.Service.AccrueAllUsers(ctx)
	if err != nil {
		log.Printf("[Scheduler] Accrual sweep failed: %v", err)
		return
	}

	run := &credit.BatchRun{
		Job:       credit.JobAccrualSweep,
		PeriodKey: day,
		RanAt:     now,
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Detail:    fmt.Sprintf("%d-%02d: %s credits posted", result.Year, result.Month, result.TotalCredits),
	}
	if err := ss.Store.RecordBatchRun(ctx, run); err != nil && !credit.IsConflict(err) {
		log.Printf("[Scheduler] Error recording accrual sweep: %v", err)
	}
	log.Printf("[Scheduler] Accrual sweep %d-%02d: %d processed, %d skipped",
		result.Year, result.Month, result.Processed, result.Skipped)
}

func (ss *SweepScheduler) runCarryoverSweep(ctx context.Context, now time.Time, day string) {
	fromYear := now.Year() - 1

	done, err := ss.Store.HasBatchRun(ctx, credit.JobCarryoverSweep, day)
	if err != nil {
		log.Printf("[Scheduler] Error checking carryover sweep state: %v", err)
		return
	}
	if done {
		return
	}

	result, err := ss.Service.ProcessAllCarryovers(ctx, fromYear, "scheduler")
	if err != nil {
		log.Printf("[Scheduler] Carryover sweep failed: %v", err)
		return
	}

	run := &credit.BatchRun{
		Job:       credit.JobCarryoverSweep,
		PeriodKey: day,
		RanAt:     now,
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Detail: fmt.Sprintf("from %d: carried %s, forfeited %s",
			fromYear, result.TotalCarryover, result.TotalForfeited),
	}
	if err := ss.Store.RecordBatchRun(ctx, run); err != nil && !credit.IsConflict(err) {
		log.Printf("[Scheduler] Error recording carryover sweep: %v", err)
	}
	log.Printf("[Scheduler] Carryover sweep from %d: %d processed, %d skipped",
		fromYear, result.Processed, result.Skipped)
}

// RunNow triggers an immediate check (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ss *SweepScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}
