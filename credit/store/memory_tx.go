package store

import (
	"context"

	"github.com/warp/leave-ledger/credit"
)

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot, restored on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(credit.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	nextID     int64
	users      map[credit.UserID]*credit.User
	ledger     map[ledgerKey]*credit.LedgerEntry
	carryovers map[carryoverKey]*credit.CarryoverRecord
	requests   map[string]*credit.LeaveRequest
	attendance map[attendanceKey]*credit.Attendance
	batchRuns  map[batchKey]*credit.BatchRun
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		nextID:     tm.nextID,
		users:      make(map[credit.UserID]*credit.User, len(tm.users)),
		ledger:     make(map[ledgerKey]*credit.LedgerEntry, len(tm.ledger)),
		carryovers: make(map[carryoverKey]*credit.CarryoverRecord, len(tm.carryovers)),
		requests:   make(map[string]*credit.LeaveRequest, len(tm.requests)),
		attendance: make(map[attendanceKey]*credit.Attendance, len(tm.attendance)),
		batchRuns:  make(map[batchKey]*credit.BatchRun, len(tm.batchRuns)),
	}
	for k, v := range tm.users {
		s.users[k] = v
	}
	for k, v := range tm.ledger {
		s.ledger[k] = v
	}
	for k, v := range tm.carryovers {
		s.carryovers[k] = v
	}
	for k, v := range tm.requests {
		s.requests[k] = v
	}
	for k, v := range tm.attendance {
		s.attendance[k] = v
	}
	for k, v := range tm.batchRuns {
		s.batchRuns[k] = v
	}
	return s
}

// restore swaps the maps back wholesale. Stored values are never mutated
// in place (every write replaces the map entry with a fresh copy), so a
// shallow snapshot is enough.
func (tm *TxMemory) restore(s memorySnapshot) {
	tm.nextID = s.nextID
	tm.users = s.users
	tm.ledger = s.ledger
	tm.carryovers = s.carryovers
	tm.requests = s.requests
	tm.attendance = s.attendance
	tm.batchRuns = s.batchRuns
}

// txMemoryView routes calls to the parent's unlocked helpers; WithTx
// already holds the write lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetLedgerEntry(_ context.Context, userID credit.UserID, year, month int) (*credit.LedgerEntry, error) {
	return tv.parent.getLedgerEntry(userID, year, month)
}

func (tv *txMemoryView) ListLedgerEntries(_ context.Context, userID credit.UserID, year int) ([]*credit.LedgerEntry, error) {
	return tv.parent.listLedgerEntries(userID, year)
}

func (tv *txMemoryView) CreateLedgerEntry(_ context.Context, entry *credit.LedgerEntry) error {
	return tv.parent.createLedgerEntry(entry)
}

func (tv *txMemoryView) SaveLedgerEntry(_ context.Context, entry *credit.LedgerEntry) error {
	return tv.parent.saveLedgerEntry(entry)
}

func (tv *txMemoryView) GetCarryover(_ context.Context, userID credit.UserID, fromYear int) (*credit.CarryoverRecord, error) {
	return tv.parent.getCarryover(userID, fromYear)
}

func (tv *txMemoryView) HasFirstRegularization(_ context.Context, userID credit.UserID) (bool, error) {
	return tv.parent.hasFirstRegularization(userID)
}

func (tv *txMemoryView) ListCarryovers(_ context.Context, userID credit.UserID) ([]*credit.CarryoverRecord, error) {
	return tv.parent.listCarryovers(userID)
}

func (tv *txMemoryView) CreateCarryover(_ context.Context, rec *credit.CarryoverRecord) error {
	return tv.parent.createCarryover(rec)
}

func (tv *txMemoryView) SaveCarryover(_ context.Context, rec *credit.CarryoverRecord) error {
	return tv.parent.saveCarryover(rec)
}

func (tv *txMemoryView) GetLeaveRequest(_ context.Context, id string) (*credit.LeaveRequest, error) {
	return tv.parent.getLeaveRequest(id)
}

func (tv *txMemoryView) CreateLeaveRequest(_ context.Context, req *credit.LeaveRequest) error {
	return tv.parent.createLeaveRequest(req)
}

func (tv *txMemoryView) SaveLeaveRequest(_ context.Context, req *credit.LeaveRequest) error {
	return tv.parent.saveLeaveRequest(req)
}

func (tv *txMemoryView) GetUser(_ context.Context, id credit.UserID) (*credit.User, error) {
	return tv.parent.getUser(id)
}

func (tv *txMemoryView) ListUsers(_ context.Context) ([]*credit.User, error) {
	return tv.parent.listUsers()
}

func (tv *txMemoryView) CreateUser(_ context.Context, user *credit.User) error {
	return tv.parent.createUser(user)
}

func (tv *txMemoryView) SaveUser(_ context.Context, user *credit.User) error {
	return tv.parent.saveUser(user)
}

func (tv *txMemoryView) CreateAttendance(_ context.Context, att *credit.Attendance) error {
	return tv.parent.createAttendance(att)
}

func (tv *txMemoryView) LastQualifyingAbsence(_ context.Context, userID credit.UserID, asOf credit.Date) (*credit.Date, error) {
	return tv.parent.lastQualifyingAbsence(userID, asOf)
}

func (tv *txMemoryView) HasBatchRun(_ context.Context, job, periodKey string) (bool, error) {
	return tv.parent.hasBatchRun(job, periodKey)
}

func (tv *txMemoryView) RecordBatchRun(_ context.Context, run *credit.BatchRun) error {
	return tv.parent.recordBatchRun(run)
}

var (
	_ credit.Store   = (*Memory)(nil)
	_ credit.Store   = (*txMemoryView)(nil)
	_ credit.TxStore = (*TxMemory)(nil)
)
