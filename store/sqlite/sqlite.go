/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements record persistence (ledger.Store), the participant directory,
  the program source, and the report-run log using SQLite. In production
  the same patterns apply to PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch the payments table. Corrections
  arrive as new records.

IDEMPOTENCY:
  The UNIQUE constraint on payments.transaction_id makes the duplicate
  check atomic with the insert. Concurrent callbacks carrying the same
  transaction id resolve to exactly one row; the losers see
  ledger.ErrDuplicateTransaction. There is deliberately no scan-then-insert.

KEY TABLES:
  payments:         immutable ledger of processor callbacks
  participants:     numeric id + contact handle registry
  program_settings: yearly fee configuration (read-mostly)
  report_runs:      nightly paid-in-full report log

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/payments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := ledger.NewLedger(store)

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nelp/payment-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

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

func (s *Store) migrate() error {
	schema := `
	-- Payments (append-only ledger)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL UNIQUE,
		participant_id INTEGER NOT NULL,
		program_year INTEGER NOT NULL,
		transaction_type TEXT,
		transaction_status TEXT,
		raw_amount TEXT,
		amount_cents INTEGER NOT NULL DEFAULT 0,
		transaction_date TEXT,
		account_type TEXT,
		result_code TEXT,
		result_message TEXT,
		order_number TEXT,
		payer_identity TEXT,
		external_timestamp TEXT,
		external_signature TEXT,
		recorded_at TEXT NOT NULL
	);

	-- Balance calculation (hot path)
	CREATE INDEX IF NOT EXISTS idx_payments_participant_year
		ON payments(participant_id, program_year);

	-- Recent-payments dashboard view
	CREATE INDEX IF NOT EXISTS idx_payments_year_recorded
		ON payments(program_year, recorded_at DESC);

	-- Callback round-trip lookups
	CREATE INDEX IF NOT EXISTS idx_payments_order_number
		ON payments(order_number);

	-- Participants
	CREATE TABLE IF NOT EXISTS participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Program settings (one row per program year)
	CREATE TABLE IF NOT EXISTS program_settings (
		program_year INTEGER PRIMARY KEY,
		application_fee INTEGER NOT NULL DEFAULT 0,
		program_fee INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		opens_at TEXT,
		closes_at TEXT,
		allow_payments BOOLEAN NOT NULL DEFAULT FALSE,
		payment_instructions TEXT,
		activated_at TEXT
	);

	-- Nightly paid-in-full report log
	CREATE TABLE IF NOT EXISTS report_runs (
		id TEXT PRIMARY KEY,
		run_date TEXT NOT NULL,
		program_year INTEGER NOT NULL,
		participants INTEGER NOT NULL DEFAULT 0,
		paid_in_full INTEGER NOT NULL DEFAULT 0,
		outstanding INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE(run_date, program_year)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PAYMENT STORE (ledger.Store interface)
// =============================================================================

// Append inserts a record. The UNIQUE constraint on transaction_id rejects
// duplicates atomically.
func (s *Store) Append(ctx context.Context, rec ledger.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments
		(id, transaction_id, participant_id, program_year, transaction_type,
		 transaction_status, raw_amount, amount_cents, transaction_date,
		 account_type, result_code, result_message, order_number,
		 payer_identity, external_timestamp, external_signature, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.TransactionID,
		rec.ParticipantID,
		rec.ProgramYear,
		rec.TransactionType,
		rec.StatusCode,
		rec.RawAmount,
		int64(rec.Amount),
		rec.TransactionDate,
		rec.AccountType,
		rec.ResultCode,
		rec.ResultMessage,
		rec.OrderNumber,
		rec.PayerIdentity,
		rec.ExternalTimestamp,
		rec.ExternalSignature,
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.DuplicateTransactionError{TransactionID: rec.TransactionID}
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

// ByParticipant returns a participant's records for a year, chronologically.
func (s *Store) ByParticipant(ctx context.Context, id ledger.ParticipantID, year int) ([]ledger.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectPayments + `
		WHERE participant_id = ? AND program_year = ?
		ORDER BY recorded_at ASC, id ASC
	`
	return s.queryPayments(ctx, query, id, year)
}

// ByYear returns all records for a year, chronologically.
func (s *Store) ByYear(ctx context.Context, year int) ([]ledger.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectPayments + `
		WHERE program_year = ?
		ORDER BY recorded_at ASC, id ASC
	`
	return s.queryPayments(ctx, query, year)
}

// Recent returns the newest records for a year.
func (s *Store) Recent(ctx context.Context, year int, limit int) ([]ledger.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectPayments + `
		WHERE program_year = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`
	return s.queryPayments(ctx, query, year, limit)
}

const selectPayments = `
	SELECT id, transaction_id, participant_id, program_year, transaction_type,
	       transaction_status, raw_amount, amount_cents, transaction_date,
	       account_type, result_code, result_message, order_number,
	       payer_identity, external_timestamp, external_signature, recorded_at
	FROM payments
`

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]ledger.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var records []ledger.PaymentRecord
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanPayment(rows *sql.Rows) (ledger.PaymentRecord, error) {
	var (
		rec         ledger.PaymentRecord
		amountCents int64
		recordedAt  string

		txType, status, rawAmount, txDate, acctType sql.NullString
		resultCode, resultMessage, orderNumber      sql.NullString
		payerIdentity, externalTS, externalSig      sql.NullString
	)

	err := rows.Scan(
		&rec.ID, &rec.TransactionID, &rec.ParticipantID, &rec.ProgramYear,
		&txType, &status, &rawAmount, &amountCents, &txDate,
		&acctType, &resultCode, &resultMessage, &orderNumber,
		&payerIdentity, &externalTS, &externalSig, &recordedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan payment: %w", err)
	}

	rec.TransactionType = txType.String
	rec.StatusCode = status.String
	rec.RawAmount = rawAmount.String
	rec.Amount = ledger.Cents(amountCents)
	rec.TransactionDate = txDate.String
	rec.AccountType = acctType.String
	rec.ResultCode = resultCode.String
	rec.ResultMessage = resultMessage.String
	rec.OrderNumber = orderNumber.String
	rec.PayerIdentity = payerIdentity.String
	rec.ExternalTimestamp = externalTS.String
	rec.ExternalSignature = externalSig.String
	rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
	return rec, nil
}

// =============================================================================
// PARTICIPANT DIRECTORY (ledger.ParticipantDirectory interface)
// =============================================================================

// SaveParticipant registers a participant, returning the stored row. An
// existing email returns the existing participant unchanged.
func (s *Store) SaveParticipant(ctx context.Context, email string) (ledger.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (email, created_at) VALUES (?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		email, now.Format(time.RFC3339),
	)
	if err != nil {
		return ledger.Participant{}, fmt.Errorf("failed to save participant: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		p, err := s.participantByEmailLocked(ctx, email)
		if err != nil {
			return ledger.Participant{}, err
		}
		return *p, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Participant{}, err
	}
	return ledger.Participant{ID: ledger.ParticipantID(id), Email: email, CreatedAt: now}, nil
}

func (s *Store) ParticipantByID(ctx context.Context, id ledger.ParticipantID) (*ledger.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanParticipant(s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM participants WHERE id = ?", id))
}

func (s *Store) ParticipantByEmail(ctx context.Context, email string) (*ledger.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.participantByEmailLocked(ctx, email)
}

func (s *Store) participantByEmailLocked(ctx context.Context, email string) (*ledger.Participant, error) {
	return scanParticipant(s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM participants WHERE email = ?", email))
}

func scanParticipant(row *sql.Row) (*ledger.Participant, error) {
	var p ledger.Participant
	var createdAt string

	err := row.Scan(&p.ID, &p.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) Participants(ctx context.Context) ([]ledger.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, email, created_at FROM participants ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var out []ledger.Participant
	for rows.Next() {
		var p ledger.Participant
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Email, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// PROGRAM SOURCE (ledger.ProgramSource interface)
// =============================================================================

// SaveProgram upserts a program period. Activating a period stamps
// activated_at so ActiveProgram can resolve last-wins if more than one row
// is ever marked active.
func (s *Store) SaveProgram(ctx context.Context, p ledger.ProgramPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var activatedAt *string
	if p.Active {
		t := time.Now().UTC().Format(time.RFC3339Nano)
		activatedAt = &t
	}

	query := `
		INSERT INTO program_settings
		(program_year, application_fee, program_fee, active, opens_at,
		 closes_at, allow_payments, payment_instructions, activated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(program_year) DO UPDATE SET
			application_fee = excluded.application_fee,
			program_fee = excluded.program_fee,
			active = excluded.active,
			opens_at = excluded.opens_at,
			closes_at = excluded.closes_at,
			allow_payments = excluded.allow_payments,
			payment_instructions = excluded.payment_instructions,
			activated_at = COALESCE(excluded.activated_at, program_settings.activated_at)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ProgramYear, p.ApplicationFee, p.ProgramFee, p.Active,
		p.OpensAt.UTC().Format(time.RFC3339),
		p.ClosesAt.UTC().Format(time.RFC3339),
		p.AllowPayments, p.PaymentInstructions, activatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save program: %w", err)
	}
	return nil
}

// ActiveProgram returns the most recently activated active period.
// Uniqueness of the active flag is enforced upstream; when it is ever
// violated the newest activation wins.
func (s *Store) ActiveProgram(ctx context.Context) (*ledger.ProgramPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectPrograms+`
		WHERE active
		ORDER BY activated_at DESC, program_year DESC
		LIMIT 1
	`)
	return scanProgram(row)
}

func (s *Store) ProgramForYear(ctx context.Context, year int) (*ledger.ProgramPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectPrograms+" WHERE program_year = ?", year)
	return scanProgram(row)
}

const selectPrograms = `
	SELECT program_year, application_fee, program_fee, active, opens_at,
	       closes_at, allow_payments, payment_instructions
	FROM program_settings
`

func scanProgram(row *sql.Row) (*ledger.ProgramPeriod, error) {
	var p ledger.ProgramPeriod
	var opensAt, closesAt, instructions sql.NullString

	err := row.Scan(&p.ProgramYear, &p.ApplicationFee, &p.ProgramFee,
		&p.Active, &opensAt, &closesAt, &p.AllowPayments, &instructions)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrProgramUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan program: %w", err)
	}

	p.OpensAt, _ = time.Parse(time.RFC3339, opensAt.String)
	p.ClosesAt, _ = time.Parse(time.RFC3339, closesAt.String)
	p.PaymentInstructions = instructions.String
	return &p, nil
}

// =============================================================================
// REPORT RUNS
// =============================================================================

// ReportRun is one completed nightly paid-in-full report.
type ReportRun struct {
	ID           string
	RunDate      string // YYYY-MM-DD
	ProgramYear  int
	Participants int
	PaidInFull   int
	Outstanding  int
	CreatedAt    time.Time
}

// SaveReportRun records a run. One run per date and year; a rerun on the
// same date replaces the earlier counts.
func (s *Store) SaveReportRun(ctx context.Context, r ReportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO report_runs
		(id, run_date, program_year, participants, paid_in_full, outstanding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_date, program_year) DO UPDATE SET
			participants = excluded.participants,
			paid_in_full = excluded.paid_in_full,
			outstanding = excluded.outstanding,
			created_at = excluded.created_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.RunDate, r.ProgramYear, r.Participants, r.PaidInFull,
		r.Outstanding, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save report run: %w", err)
	}
	return nil
}

// ReportRuns returns runs, newest first.
func (s *Store) ReportRuns(ctx context.Context, limit int) ([]ReportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_date, program_year, participants, paid_in_full, outstanding, created_at
		FROM report_runs
		ORDER BY run_date DESC, program_year DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query report runs: %w", err)
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		var r ReportRun
		var createdAt string
		if err := rows.Scan(&r.ID, &r.RunDate, &r.ProgramYear, &r.Participants,
			&r.PaidInFull, &r.Outstanding, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
