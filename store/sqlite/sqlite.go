/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements credit.Store and credit.TxStore on SQLite via sqlx. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  users:             employee records with role and hire date
  ledger_entries:    one row per user-year-month credit bucket;
                     month 0 is the carryover bucket
  carryover_records: one row per user-year boundary transition
  leave_requests:    filed leave with its deduction stamp
  attendance:        daily shift statuses feeding the absence window
  batch_runs:        sweep markers, one per job and period

UNIQUENESS:
  UNIQUE(user_id, year, month) on ledger_entries and
  UNIQUE(user_id, from_year) on carryover_records are what make accrual
  and carryover idempotent under concurrent writers. Violations surface
  as credit.ErrDuplicateEntry.

NUMERIC STORAGE:
  Credit amounts are stored as decimal strings, never floats, so 1.25
  survives round trips exactly. Calendar dates are stored as YYYY-MM-DD,
  timestamps as RFC3339.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. In production
  with PostgreSQL, database-level concurrency control handles this
  instead.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := credit.NewService(store, credit.DefaultRateTable(), nil)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - credit/store.go: interface definitions
  - credit/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/leave-ledger/credit"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'employee',
		hired_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Monthly credit buckets; month 0 holds carried-over credits
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 0 AND 12),
		credits_earned TEXT NOT NULL,
		credits_used TEXT NOT NULL,
		credits_balance TEXT NOT NULL,
		accrued_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, year, month)
	);

	-- Hot path: FIFO walks and balance sums load one user-year at a time
	CREATE INDEX IF NOT EXISTS idx_ledger_user_year
		ON ledger_entries(user_id, year, month);

	-- Year boundary transitions
	CREATE TABLE IF NOT EXISTS carryover_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id),
		from_year INTEGER NOT NULL,
		to_year INTEGER NOT NULL,
		credits_from_previous_year TEXT NOT NULL,
		carryover_credits TEXT NOT NULL,
		forfeited_credits TEXT NOT NULL,
		is_first_regularization INTEGER NOT NULL DEFAULT 0,
		cash_converted INTEGER NOT NULL DEFAULT 0,
		cash_converted_at TEXT,
		processed_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, from_year)
	);

	CREATE INDEX IF NOT EXISTS idx_carryover_user
		ON carryover_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_carryover_first_reg
		ON carryover_records(user_id) WHERE is_first_regularization = 1;

	-- Leave requests with their deduction stamps
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		filed_at TEXT NOT NULL,
		days_requested TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT NOT NULL DEFAULT '',
		credits_deducted TEXT NOT NULL,
		credits_year INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user
		ON leave_requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- Daily shift statuses (absence window checks)
	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id),
		shift_date TEXT NOT NULL,
		status TEXT NOT NULL,
		tardy_minutes INTEGER NOT NULL DEFAULT 0,
		undertime_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE(user_id, shift_date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_user_date
		ON attendance(user_id, shift_date DESC);

	-- Sweep markers (one row per job per period)
	CREATE TABLE IF NOT EXISTS batch_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job TEXT NOT NULL,
		period_key TEXT NOT NULL,
		ran_at TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		UNIQUE(job, period_key)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

type ledgerRow struct {
	ID             int64  `db:"id"`
	UserID         string `db:"user_id"`
	Year           int    `db:"year"`
	Month          int    `db:"month"`
	CreditsEarned  string `db:"credits_earned"`
	CreditsUsed    string `db:"credits_used"`
	CreditsBalance string `db:"credits_balance"`
	AccruedAt      string `db:"accrued_at"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

func (r ledgerRow) toDomain() *credit.LedgerEntry {
	e := &credit.LedgerEntry{
		ID:             r.ID,
		UserID:         credit.UserID(r.UserID),
		Year:           r.Year,
		Month:          r.Month,
		CreditsEarned:  credit.MustParseCredits(r.CreditsEarned),
		CreditsUsed:    credit.MustParseCredits(r.CreditsUsed),
		CreditsBalance: credit.MustParseCredits(r.CreditsBalance),
	}
	e.AccruedAt, _ = credit.ParseDate(r.AccruedAt)
	e.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, r.UpdatedAt)
	return e
}

func ledgerRowFrom(e *credit.LedgerEntry) ledgerRow {
	return ledgerRow{
		ID:             e.ID,
		UserID:         string(e.UserID),
		Year:           e.Year,
		Month:          e.Month,
		CreditsEarned:  e.CreditsEarned.String(),
		CreditsUsed:    e.CreditsUsed.String(),
		CreditsBalance: e.CreditsBalance.String(),
		AccruedAt:      e.AccruedAt.String(),
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

const selectLedger = `
	SELECT id, user_id, year, month, credits_earned, credits_used, credits_balance,
	       accrued_at, created_at, updated_at
	FROM ledger_entries`

func (s *Store) GetLedgerEntry(ctx context.Context, userID credit.UserID, year, month int) (*credit.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLedgerEntry(ctx, s.db, userID, year, month)
}

func getLedgerEntry(ctx context.Context, ext sqlx.ExtContext, userID credit.UserID, year, month int) (*credit.LedgerEntry, error) {
	var row ledgerRow
	err := sqlx.GetContext(ctx, ext, &row,
		selectLedger+" WHERE user_id = ? AND year = ? AND month = ?",
		string(userID), year, month)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, userID credit.UserID, year int) ([]*credit.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLedgerEntries(ctx, s.db, userID, year)
}

func listLedgerEntries(ctx context.Context, ext sqlx.ExtContext, userID credit.UserID, year int) ([]*credit.LedgerEntry, error) {
	var rows []ledgerRow
	err := sqlx.SelectContext(ctx, ext, &rows,
		selectLedger+" WHERE user_id = ? AND year = ? ORDER BY month ASC",
		string(userID), year)
	if err != nil {
		return nil, err
	}
	entries := make([]*credit.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}

func (s *Store) CreateLedgerEntry(ctx context.Context, entry *credit.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createLedgerEntry(ctx, s.db, entry)
}

func createLedgerEntry(ctx context.Context, ext sqlx.ExtContext, entry *credit.LedgerEntry) error {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	res, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO ledger_entries
		(user_id, year, month, credits_earned, credits_used, credits_balance,
		 accrued_at, created_at, updated_at)
		VALUES (:user_id, :year, :month, :credits_earned, :credits_used, :credits_balance,
		        :accrued_at, :created_at, :updated_at)`,
		ledgerRowFrom(entry))
	if err != nil {
		if isUniqueViolation(err) {
			return credit.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) SaveLedgerEntry(ctx context.Context, entry *credit.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLedgerEntry(ctx, s.db, entry)
}

func saveLedgerEntry(ctx context.Context, ext sqlx.ExtContext, entry *credit.LedgerEntry) error {
	entry.UpdatedAt = time.Now().UTC()

	res, err := sqlx.NamedExecContext(ctx, ext, `
		UPDATE ledger_entries SET
			credits_earned = :credits_earned,
			credits_used = :credits_used,
			credits_balance = :credits_balance,
			accrued_at = :accrued_at,
			updated_at = :updated_at
		WHERE user_id = :user_id AND year = :year AND month = :month`,
		ledgerRowFrom(entry))
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return credit.ErrNotFound
	}
	return nil
}

// =============================================================================
// CARRYOVER RECORDS
// =============================================================================

type carryoverRow struct {
	ID                      int64          `db:"id"`
	UserID                  string         `db:"user_id"`
	FromYear                int            `db:"from_year"`
	ToYear                  int            `db:"to_year"`
	CreditsFromPreviousYear string         `db:"credits_from_previous_year"`
	CarryoverCredits        string         `db:"carryover_credits"`
	ForfeitedCredits        string         `db:"forfeited_credits"`
	IsFirstRegularization   bool           `db:"is_first_regularization"`
	CashConverted           bool           `db:"cash_converted"`
	CashConvertedAt         sql.NullString `db:"cash_converted_at"`
	ProcessedBy             string         `db:"processed_by"`
	CreatedAt               string         `db:"created_at"`
	UpdatedAt               string         `db:"updated_at"`
}

func (r carryoverRow) toDomain() *credit.CarryoverRecord {
	rec := &credit.CarryoverRecord{
		ID:                      r.ID,
		UserID:                  credit.UserID(r.UserID),
		FromYear:                r.FromYear,
		ToYear:                  r.ToYear,
		CreditsFromPreviousYear: credit.MustParseCredits(r.CreditsFromPreviousYear),
		CarryoverCredits:        credit.MustParseCredits(r.CarryoverCredits),
		ForfeitedCredits:        credit.MustParseCredits(r.ForfeitedCredits),
		IsFirstRegularization:   r.IsFirstRegularization,
		CashConverted:           r.CashConverted,
		ProcessedBy:             r.ProcessedBy,
	}
	if r.CashConvertedAt.Valid {
		t, _ := time.Parse(time.RFC3339, r.CashConvertedAt.String)
		rec.CashConvertedAt = &t
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, r.UpdatedAt)
	return rec
}

func carryoverRowFrom(rec *credit.CarryoverRecord) carryoverRow {
	row := carryoverRow{
		ID:                      rec.ID,
		UserID:                  string(rec.UserID),
		FromYear:                rec.FromYear,
		ToYear:                  rec.ToYear,
		CreditsFromPreviousYear: rec.CreditsFromPreviousYear.String(),
		CarryoverCredits:        rec.CarryoverCredits.String(),
		ForfeitedCredits:        rec.ForfeitedCredits.String(),
		IsFirstRegularization:   rec.IsFirstRegularization,
		CashConverted:           rec.CashConverted,
		ProcessedBy:             rec.ProcessedBy,
		CreatedAt:               rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:               rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.CashConvertedAt != nil {
		row.CashConvertedAt = sql.NullString{String: rec.CashConvertedAt.Format(time.RFC3339), Valid: true}
	}
	return row
}

const selectCarryover = `
	SELECT id, user_id, from_year, to_year, credits_from_previous_year,
	       carryover_credits, forfeited_credits, is_first_regularization,
	       cash_converted, cash_converted_at, processed_by, created_at, updated_at
	FROM carryover_records`

func (s *Store) GetCarryover(ctx context.Context, userID credit.UserID, fromYear int) (*credit.CarryoverRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCarryover(ctx, s.db, userID, fromYear)
}

func getCarryover(ctx context.Context, ext sqlx.ExtContext, userID credit.UserID, fromYear int) (*credit.CarryoverRecord, error) {
	var row carryoverRow
	err := sqlx.GetContext(ctx, ext, &row,
		selectCarryover+" WHERE user_id = ? AND from_year = ?",
		string(userID), fromYear)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) HasFirstRegularization(ctx context.Context, userID credit.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasFirstRegularization(ctx, s.db, userID)
}

func hasFirstRegularization(ctx context.Context, ext sqlx.ExtContext, userID credit.UserID) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, ext, &count,
		"SELECT COUNT(*) FROM carryover_records WHERE user_id = ? AND is_first_regularization = 1",
		string(userID))
	return count > 0, err
}

func (s *Store) ListCarryovers(ctx context.Context, userID credit.UserID) ([]*credit.CarryoverRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCarryovers(ctx, s.db, userID)
}

func listCarryovers(ctx context.Context, ext sqlx.ExtContext, userID credit.UserID) ([]*credit.CarryoverRecord, error) {
	var rows []carryoverRow
	err := sqlx.SelectContext(ctx, ext, &rows,
		selectCarryover+" WHERE user_id = ? ORDER BY from_year ASC",
		string(userID))
	if err != nil {
		return nil, err
	}
	recs := make([]*credit.CarryoverRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toDomain())
	}
	return recs, nil
}

func (s *Store) CreateCarryover(ctx context.Context, rec *credit.CarryoverRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createCarryover(ctx, s.db, rec)
}

func createCarryover(ctx context.Context, ext sqlx.ExtContext, rec *credit.CarryoverRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	res, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO carryover_records
		(user_id, from_year, to_year, credits_from_previous_year, carryover_credits,
		 forfeited_credits, is_first_regularization, cash_converted, cash_converted_at,
		 processed_by, created_at, updated_at)
		VALUES (:user_id, :from_year, :to_year, :credits_from_previous_year, :carryover_credits,
		        :forfeited_credits, :is_first_regularization, :cash_converted, :cash_converted_at,
		        :processed_by, :created_at, :updated_at)`,
		carryoverRowFrom(rec))
	if err != nil {
		if isUniqueViolation(err) {
			return credit.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert carryover record: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) SaveCarryover(ctx context.Context, rec *credit.CarryoverRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCarryover(ctx, s.db, rec)
}

func saveCarryover(ctx context.Context, ext sqlx.ExtContext, rec *credit.CarryoverRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	res, err := sqlx.NamedExecContext(ctx, ext, `
		UPDATE carryover_records SET
			to_year = :to_year,
			credits_from_previous_year = :credits_from_previous_year,
			carryover_credits = :carryover_credits,
			forfeited_credits = :forfeited_credits,
			is_first_regularization = :is_first_regularization,
			cash_converted = :cash_converted,
			cash_converted_at = :cash_converted_at,
			processed_by = :processed_by,
			updated_at = :updated_at
		WHERE user_id = :user_id AND from_year = :from_year`,
		carryoverRowFrom(rec))
	if err != nil {
		return fmt.Errorf("failed to update carryover record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return credit.ErrNotFound
	}
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type requestRow struct {
	ID              string `db:"id"`
	UserID          string `db:"user_id"`
	LeaveType       string `db:"leave_type"`
	StartDate       string `db:"start_date"`
	EndDate         string `db:"end_date"`
	FiledAt         string `db:"filed_at"`
	DaysRequested   string `db:"days_requested"`
	Status          string `db:"status"`
	Reason          string `db:"reason"`
	CreditsDeducted string `db:"credits_deducted"`
	CreditsYear     int    `db:"credits_year"`
	CreatedAt       string `db:"created_at"`
	UpdatedAt       string `db:"updated_at"`
}

func (r requestRow) toDomain() *credit.LeaveRequest {
	req := &credit.LeaveRequest{
		ID:              r.ID,
		UserID:          credit.UserID(r.UserID),
		Type:            credit.LeaveType(r.LeaveType),
		DaysRequested:   credit.MustParseCredits(r.DaysRequested),
		Status:          credit.LeaveStatus(r.Status),
		Reason:          r.Reason,
		CreditsDeducted: credit.MustParseCredits(r.CreditsDeducted),
		CreditsYear:     r.CreditsYear,
	}
	req.StartDate, _ = credit.ParseDate(r.StartDate)
	req.EndDate, _ = credit.ParseDate(r.EndDate)
	req.FiledAt, _ = credit.ParseDate(r.FiledAt)
	req.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339, r.UpdatedAt)
	return req
}

func requestRowFrom(req *credit.LeaveRequest) requestRow {
	return requestRow{
		ID:              req.ID,
		UserID:          string(req.UserID),
		LeaveType:       string(req.Type),
		StartDate:       req.StartDate.String(),
		EndDate:         req.EndDate.String(),
		FiledAt:         req.FiledAt.String(),
		DaysRequested:   req.DaysRequested.String(),
		Status:          string(req.Status),
		Reason:          req.Reason,
		CreditsDeducted: req.CreditsDeducted.String(),
		CreditsYear:     req.CreditsYear,
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       req.UpdatedAt.Format(time.RFC3339),
	}
}

const selectRequest = `
	SELECT id, user_id, leave_type, start_date, end_date, filed_at, days_requested,
	       status, reason, credits_deducted, credits_year, created_at, updated_at
	FROM leave_requests`

func (s *Store) GetLeaveRequest(ctx context.Context, id string) (*credit.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLeaveRequest(ctx, s.db, id)
}

func getLeaveRequest(ctx context.Context, ext sqlx.ExtContext, id string) (*credit.LeaveRequest, error) {
	var row requestRow
	err := sqlx.GetContext(ctx, ext, &row, selectRequest+" WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ListLeaveRequests returns a user's requests, most recent first.
func (s *Store) ListLeaveRequests(ctx context.Context, userID credit.UserID) ([]*credit.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []requestRow
	err := sqlx.SelectContext(ctx, s.db, &rows,
		selectRequest+" WHERE user_id = ? ORDER BY created_at DESC",
		string(userID))
	if err != nil {
		return nil, err
	}
	reqs := make([]*credit.LeaveRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toDomain())
	}
	return reqs, nil
}

func (s *Store) CreateLeaveRequest(ctx context.Context, req *credit.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createLeaveRequest(ctx, s.db, req)
}

func createLeaveRequest(ctx context.Context, ext sqlx.ExtContext, req *credit.LeaveRequest) error {
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO leave_requests
		(id, user_id, leave_type, start_date, end_date, filed_at, days_requested,
		 status, reason, credits_deducted, credits_year, created_at, updated_at)
		VALUES (:id, :user_id, :leave_type, :start_date, :end_date, :filed_at, :days_requested,
		        :status, :reason, :credits_deducted, :credits_year, :created_at, :updated_at)`,
		requestRowFrom(req))
	if err != nil {
		if isUniqueViolation(err) {
			return credit.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

func (s *Store) SaveLeaveRequest(ctx context.Context, req *credit.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLeaveRequest(ctx, s.db, req)
}

func saveLeaveRequest(ctx context.Context, ext sqlx.ExtContext, req *credit.LeaveRequest) error {
	req.UpdatedAt = time.Now().UTC()

	res, err := sqlx.NamedExecContext(ctx, ext, `
		UPDATE leave_requests SET
			leave_type = :leave_type,
			start_date = :start_date,
			end_date = :end_date,
			filed_at = :filed_at,
			days_requested = :days_requested,
			status = :status,
			reason = :reason,
			credits_deducted = :credits_deducted,
			credits_year = :credits_year,
			updated_at = :updated_at
		WHERE id = :id`,
		requestRowFrom(req))
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return credit.ErrNotFound
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

type userRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Role      string         `db:"role"`
	HiredDate sql.NullString `db:"hired_date"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

func (r userRow) toDomain() *credit.User {
	u := &credit.User{
		ID:    credit.UserID(r.ID),
		Name:  r.Name,
		Email: r.Email,
		Role:  credit.Role(r.Role),
	}
	if r.HiredDate.Valid && r.HiredDate.String != "" {
		if d, err := credit.ParseDate(r.HiredDate.String); err == nil {
			u.HiredDate = &d
		}
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, r.UpdatedAt)
	return u
}

func userRowFrom(u *credit.User) userRow {
	row := userRow{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
	if u.HiredDate != nil {
		row.HiredDate = sql.NullString{String: u.HiredDate.String(), Valid: true}
	}
	return row
}

const selectUser = `
	SELECT id, name, email, role, hired_date, created_at, updated_at
	FROM users`

func (s *Store) GetUser(ctx context.Context, id credit.UserID) (*credit.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, ext sqlx.ExtContext, id credit.UserID) (*credit.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, ext, &row, selectUser+" WHERE id = ?", string(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*credit.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listUsers(ctx, s.db)
}

func listUsers(ctx context.Context, ext sqlx.ExtContext) ([]*credit.User, error) {
	var rows []userRow
	err := sqlx.SelectContext(ctx, ext, &rows, selectUser+" ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	users := make([]*credit.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toDomain())
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, user *credit.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createUser(ctx, s.db, user)
}

func createUser(ctx context.Context, ext sqlx.ExtContext, user *credit.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO users (id, name, email, role, hired_date, created_at, updated_at)
		VALUES (:id, :name, :email, :role, :hired_date, :created_at, :updated_at)`,
		userRowFrom(user))
	if err != nil {
		if isUniqueViolation(err) {
			return credit.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Store) SaveUser(ctx context.Context, user *credit.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, user)
}

func saveUser(ctx context.Context, ext sqlx.ExtContext, user *credit.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := sqlx.NamedExecContext(ctx, ext, `
		UPDATE users SET
			name = :name,
			email = :email,
			role = :role,
			hired_date = :hired_date,
			updated_at = :updated_at
		WHERE id = :id`,
		userRowFrom(user))
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return credit.ErrNotFound
	}
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) CreateAttendance(ctx context.Context, att *credit.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAttendance(ctx, s.db, att)
}

func createAttendance(ctx context.Context, ext sqlx.ExtContext, att *credit.Attendance) error {
	att.CreatedAt = time.Now().UTC()

	res, err := ext.ExecContext(ctx, `
		INSERT INTO attendance (user_id, shift_date, status, tardy_minutes, undertime_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(att.UserID), att.ShiftDate.String(), string(att.Status),
		att.TardyMinutes, att.UndertimeMinutes, att.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return credit.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	if att.ID == "" {
		id, _ := res.LastInsertId()
		att.ID = "att-" + strconv.FormatInt(id, 10)
	}
	return nil
}

func (s *Store) LastQualifyingAbsence(ctx context.Context, userID credit.UserID, asOf credit.Date) (*credit.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastQualifyingAbsence(ctx, s.db, userID, asOf)
}

func lastQualifyingAbsence(ctx context.Context, ext sqlx.ExtContext, userID credit.UserID, asOf credit.Date) (*credit.Date, error) {
	var dateStr string
	err := sqlx.GetContext(ctx, ext, &dateStr, `
		SELECT shift_date FROM attendance
		WHERE user_id = ? AND shift_date <= ? AND status IN (?, ?, ?)
		ORDER BY shift_date DESC
		LIMIT 1`,
		string(userID), asOf.String(),
		string(credit.AttendanceHalfDayAbsence),
		string(credit.AttendanceNCNS),
		string(credit.AttendanceAdvisedAbsence))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d, err := credit.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// BATCH RUNS
// =============================================================================

func (s *Store) HasBatchRun(ctx context.Context, job, periodKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasBatchRun(ctx, s.db, job, periodKey)
}

func hasBatchRun(ctx context.Context, ext sqlx.ExtContext, job, periodKey string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, ext, &count,
		"SELECT COUNT(*) FROM batch_runs WHERE job = ? AND period_key = ?",
		job, periodKey)
	return count > 0, err
}

func (s *Store) RecordBatchRun(ctx context.Context, run *credit.BatchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return recordBatchRun(ctx, s.db, run)
}

func recordBatchRun(ctx context.Context, ext sqlx.ExtContext, run *credit.BatchRun) error {
	res, err := ext.ExecContext(ctx, `
		INSERT INTO batch_runs (job, period_key, ran_at, processed, skipped, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Job, run.PeriodKey, run.RanAt.Format(time.RFC3339),
		run.Processed, run.Skipped, run.Detail)
	if err != nil {
		if isUniqueViolation(err) {
			return credit.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert batch run: %w", err)
	}
	run.ID, _ = res.LastInsertId()
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (credit.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store credit.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore routes every call through the open transaction. It skips the
// parent's mutex: WithTx already holds the write lock.
type txStore struct {
	tx *sqlx.Tx
}

func (ts *txStore) GetLedgerEntry(ctx context.Context, userID credit.UserID, year, month int) (*credit.LedgerEntry, error) {
	return getLedgerEntry(ctx, ts.tx, userID, year, month)
}

func (ts *txStore) ListLedgerEntries(ctx context.Context, userID credit.UserID, year int) ([]*credit.LedgerEntry, error) {
	return listLedgerEntries(ctx, ts.tx, userID, year)
}

func (ts *txStore) CreateLedgerEntry(ctx context.Context, entry *credit.LedgerEntry) error {
	return createLedgerEntry(ctx, ts.tx, entry)
}

func (ts *txStore) SaveLedgerEntry(ctx context.Context, entry *credit.LedgerEntry) error {
	return saveLedgerEntry(ctx, ts.tx, entry)
}

func (ts *txStore) GetCarryover(ctx context.Context, userID credit.UserID, fromYear int) (*credit.CarryoverRecord, error) {
	return getCarryover(ctx, ts.tx, userID, fromYear)
}

func (ts *txStore) HasFirstRegularization(ctx context.Context, userID credit.UserID) (bool, error) {
	return hasFirstRegularization(ctx, ts.tx, userID)
}

func (ts *txStore) ListCarryovers(ctx context.Context, userID credit.UserID) ([]*credit.CarryoverRecord, error) {
	return listCarryovers(ctx, ts.tx, userID)
}

func (ts *txStore) CreateCarryover(ctx context.Context, rec *credit.CarryoverRecord) error {
	return createCarryover(ctx, ts.tx, rec)
}

func (ts *txStore) SaveCarryover(ctx context.Context, rec *credit.CarryoverRecord) error {
	return saveCarryover(ctx, ts.tx, rec)
}

func (ts *txStore) GetLeaveRequest(ctx context.Context, id string) (*credit.LeaveRequest, error) {
	return getLeaveRequest(ctx, ts.tx, id)
}

func (ts *txStore) CreateLeaveRequest(ctx context.Context, req *credit.LeaveRequest) error {
	return createLeaveRequest(ctx, ts.tx, req)
}

func (ts *txStore) SaveLeaveRequest(ctx context.Context, req *credit.LeaveRequest) error {
	return saveLeaveRequest(ctx, ts.tx, req)
}

func (ts *txStore) GetUser(ctx context.Context, id credit.UserID) (*credit.User, error) {
	return getUser(ctx, ts.tx, id)
}

func (ts *txStore) ListUsers(ctx context.Context) ([]*credit.User, error) {
	return listUsers(ctx, ts.tx)
}

func (ts *txStore) CreateUser(ctx context.Context, user *credit.User) error {
	return createUser(ctx, ts.tx, user)
}

func (ts *txStore) SaveUser(ctx context.Context, user *credit.User) error {
	return saveUser(ctx, ts.tx, user)
}

func (ts *txStore) CreateAttendance(ctx context.Context, att *credit.Attendance) error {
	return createAttendance(ctx, ts.tx, att)
}

func (ts *txStore) LastQualifyingAbsence(ctx context.Context, userID credit.UserID, asOf credit.Date) (*credit.Date, error) {
	return lastQualifyingAbsence(ctx, ts.tx, userID, asOf)
}

func (ts *txStore) HasBatchRun(ctx context.Context, job, periodKey string) (bool, error) {
	return hasBatchRun(ctx, ts.tx, job, periodKey)
}

func (ts *txStore) RecordBatchRun(ctx context.Context, run *credit.BatchRun) error {
	return recordBatchRun(ctx, ts.tx, run)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"batch_runs", "attendance", "leave_requests", "carryover_records", "ledger_entries", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var (
	_ credit.Store   = (*Store)(nil)
	_ credit.Store   = (*txStore)(nil)
	_ credit.TxStore = (*Store)(nil)
)
