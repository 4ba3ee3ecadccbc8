// Package store provides Store implementations backed by process memory.
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/warp/leave-ledger/credit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type ledgerKey struct {
	UserID credit.UserID
	Year   int
	Month  int
}

type carryoverKey struct {
	UserID   credit.UserID
	FromYear int
}

type attendanceKey struct {
	UserID    credit.UserID
	ShiftDate string
}

type batchKey struct {
	Job       string
	PeriodKey string
}

type Memory struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[credit.UserID]*credit.User
	ledger     map[ledgerKey]*credit.LedgerEntry
	carryovers map[carryoverKey]*credit.CarryoverRecord
	requests   map[string]*credit.LeaveRequest
	attendance map[attendanceKey]*credit.Attendance
	batchRuns  map[batchKey]*credit.BatchRun
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[credit.UserID]*credit.User),
		ledger:     make(map[ledgerKey]*credit.LedgerEntry),
		carryovers: make(map[carryoverKey]*credit.CarryoverRecord),
		requests:   make(map[string]*credit.LeaveRequest),
		attendance: make(map[attendanceKey]*credit.Attendance),
		batchRuns:  make(map[batchKey]*credit.BatchRun),
	}
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func (m *Memory) GetLedgerEntry(_ context.Context, userID credit.UserID, year, month int) (*credit.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLedgerEntry(userID, year, month)
}

func (m *Memory) getLedgerEntry(userID credit.UserID, year, month int) (*credit.LedgerEntry, error) {
	return copyEntry(m.ledger[ledgerKey{UserID: userID, Year: year, Month: month}]), nil
}

func (m *Memory) ListLedgerEntries(_ context.Context, userID credit.UserID, year int) ([]*credit.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLedgerEntries(userID, year)
}

func (m *Memory) listLedgerEntries(userID credit.UserID, year int) ([]*credit.LedgerEntry, error) {
	var result []*credit.LedgerEntry
	for _, e := range m.ledger {
		if e.UserID == userID && e.Year == year {
			result = append(result, copyEntry(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result, nil
}

func (m *Memory) CreateLedgerEntry(_ context.Context, entry *credit.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLedgerEntry(entry)
}

func (m *Memory) createLedgerEntry(entry *credit.LedgerEntry) error {
	k := ledgerKey{UserID: entry.UserID, Year: entry.Year, Month: entry.Month}
	if _, ok := m.ledger[k]; ok {
		return credit.ErrDuplicateEntry
	}
	m.nextID++
	entry.ID = m.nextID
	entry.CreatedAt = time.Now().UTC()
	entry.UpdatedAt = entry.CreatedAt
	m.ledger[k] = copyEntry(entry)
	return nil
}

func (m *Memory) SaveLedgerEntry(_ context.Context, entry *credit.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLedgerEntry(entry)
}

func (m *Memory) saveLedgerEntry(entry *credit.LedgerEntry) error {
	k := ledgerKey{UserID: entry.UserID, Year: entry.Year, Month: entry.Month}
	if _, ok := m.ledger[k]; !ok {
		return credit.ErrNotFound
	}
	entry.UpdatedAt = time.Now().UTC()
	m.ledger[k] = copyEntry(entry)
	return nil
}

// =============================================================================
// CARRYOVER RECORDS
// =============================================================================

func (m *Memory) GetCarryover(_ context.Context, userID credit.UserID, fromYear int) (*credit.CarryoverRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCarryover(userID, fromYear)
}

func (m *Memory) getCarryover(userID credit.UserID, fromYear int) (*credit.CarryoverRecord, error) {
	return copyCarryover(m.carryovers[carryoverKey{UserID: userID, FromYear: fromYear}]), nil
}

func (m *Memory) HasFirstRegularization(_ context.Context, userID credit.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasFirstRegularization(userID)
}

func (m *Memory) hasFirstRegularization(userID credit.UserID) (bool, error) {
	for _, rec := range m.carryovers {
		if rec.UserID == userID && rec.IsFirstRegularization {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListCarryovers(_ context.Context, userID credit.UserID) ([]*credit.CarryoverRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCarryovers(userID)
}

func (m *Memory) listCarryovers(userID credit.UserID) ([]*credit.CarryoverRecord, error) {
	var result []*credit.CarryoverRecord
	for _, rec := range m.carryovers {
		if rec.UserID == userID {
			result = append(result, copyCarryover(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FromYear < result[j].FromYear })
	return result, nil
}

func (m *Memory) CreateCarryover(_ context.Context, rec *credit.CarryoverRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCarryover(rec)
}

func (m *Memory) createCarryover(rec *credit.CarryoverRecord) error {
	k := carryoverKey{UserID: rec.UserID, FromYear: rec.FromYear}
	if _, ok := m.carryovers[k]; ok {
		return credit.ErrDuplicateEntry
	}
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	m.carryovers[k] = copyCarryover(rec)
	return nil
}

func (m *Memory) SaveCarryover(_ context.Context, rec *credit.CarryoverRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCarryover(rec)
}

func (m *Memory) saveCarryover(rec *credit.CarryoverRecord) error {
	k := carryoverKey{UserID: rec.UserID, FromYear: rec.FromYear}
	if _, ok := m.carryovers[k]; !ok {
		return credit.ErrNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	m.carryovers[k] = copyCarryover(rec)
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (m *Memory) GetLeaveRequest(_ context.Context, id string) (*credit.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLeaveRequest(id)
}

func (m *Memory) getLeaveRequest(id string) (*credit.LeaveRequest, error) {
	return copyRequest(m.requests[id]), nil
}

func (m *Memory) CreateLeaveRequest(_ context.Context, req *credit.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLeaveRequest(req)
}

func (m *Memory) createLeaveRequest(req *credit.LeaveRequest) error {
	if _, ok := m.requests[req.ID]; ok {
		return credit.ErrDuplicateEntry
	}
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = copyRequest(req)
	return nil
}

func (m *Memory) SaveLeaveRequest(_ context.Context, req *credit.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLeaveRequest(req)
}

func (m *Memory) saveLeaveRequest(req *credit.LeaveRequest) error {
	if _, ok := m.requests[req.ID]; !ok {
		return credit.ErrNotFound
	}
	req.UpdatedAt = time.Now().UTC()
	m.requests[req.ID] = copyRequest(req)
	return nil
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) GetUser(_ context.Context, id credit.UserID) (*credit.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getUser(id)
}

func (m *Memory) getUser(id credit.UserID) (*credit.User, error) {
	return copyUser(m.users[id]), nil
}

func (m *Memory) ListUsers(_ context.Context) ([]*credit.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listUsers()
}

func (m *Memory) listUsers() ([]*credit.User, error) {
	result := make([]*credit.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, copyUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) CreateUser(_ context.Context, user *credit.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createUser(user)
}

func (m *Memory) createUser(user *credit.User) error {
	if _, ok := m.users[user.ID]; ok {
		return credit.ErrDuplicateEntry
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *Memory) SaveUser(_ context.Context, user *credit.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUser(user)
}

func (m *Memory) saveUser(user *credit.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return credit.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	m.users[user.ID] = copyUser(user)
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (m *Memory) CreateAttendance(_ context.Context, att *credit.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAttendance(att)
}

func (m *Memory) createAttendance(att *credit.Attendance) error {
	k := attendanceKey{UserID: att.UserID, ShiftDate: att.ShiftDate.String()}
	if _, ok := m.attendance[k]; ok {
		return credit.ErrDuplicateEntry
	}
	if att.ID == "" {
		m.nextID++
		att.ID = "att-" + strconv.FormatInt(m.nextID, 10)
	}
	att.CreatedAt = time.Now().UTC()
	c := *att
	m.attendance[k] = &c
	return nil
}

func (m *Memory) LastQualifyingAbsence(_ context.Context, userID credit.UserID, asOf credit.Date) (*credit.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQualifyingAbsence(userID, asOf)
}

func (m *Memory) lastQualifyingAbsence(userID credit.UserID, asOf credit.Date) (*credit.Date, error) {
	var last *credit.Date
	for _, att := range m.attendance {
		if att.UserID != userID || !att.Status.IsQualifyingAbsence() {
			continue
		}
		if att.ShiftDate.After(asOf) {
			continue
		}
		if last == nil || att.ShiftDate.After(*last) {
			d := att.ShiftDate
			last = &d
		}
	}
	return last, nil
}

// =============================================================================
// BATCH RUNS
// =============================================================================

func (m *Memory) HasBatchRun(_ context.Context, job, periodKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasBatchRun(job, periodKey)
}

func (m *Memory) hasBatchRun(job, periodKey string) (bool, error) {
	_, ok := m.batchRuns[batchKey{Job: job, PeriodKey: periodKey}]
	return ok, nil
}

func (m *Memory) RecordBatchRun(_ context.Context, run *credit.BatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordBatchRun(run)
}

func (m *Memory) recordBatchRun(run *credit.BatchRun) error {
	k := batchKey{Job: run.Job, PeriodKey: run.PeriodKey}
	if _, ok := m.batchRuns[k]; ok {
		return credit.ErrDuplicateEntry
	}
	m.nextID++
	run.ID = m.nextID
	c := *run
	m.batchRuns[k] = &c
	return nil
}

// =============================================================================
// COPIES - callers mutate rows before saving; the store never shares
// its own pointers.
// =============================================================================

func copyEntry(e *credit.LedgerEntry) *credit.LedgerEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

func copyCarryover(r *credit.CarryoverRecord) *credit.CarryoverRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.CashConvertedAt != nil {
		t := *r.CashConvertedAt
		c.CashConvertedAt = &t
	}
	return &c
}

func copyRequest(r *credit.LeaveRequest) *credit.LeaveRequest {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func copyUser(u *credit.User) *credit.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.HiredDate != nil {
		d := *u.HiredDate
		c.HiredDate = &d
	}
	return &c
}
