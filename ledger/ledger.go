/*
ledger.go - Append-only payment record log

PURPOSE:
  The Ledger is the immutable source of truth for what has been paid.
  Every processor callback that carries a new transaction id becomes one
  record here. Balance is always computed by summing records; there is no
  separate balance field that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete
  2. EXACTLY-ONCE: one record per external transaction id
  3. AUDITABLE: records keep the callback's values as received

CORRECTIONS:
  A mistaken or refunded payment is not edited. The processor issues a new
  transaction (negative amount for refunds) and both records remain.

SEE ALSO:
  - store.go: low-level persistence interface
  - processor/ingest.go: the only writer
*/
package ledger

import "context"

// =============================================================================
// LEDGER
// =============================================================================

// Ledger records and reads payment records.
type Ledger interface {
	// Record appends a record. A duplicate transaction id returns
	// ErrDuplicateTransaction; the caller treats that as "already
	// processed", not as a failure.
	Record(ctx context.Context, rec PaymentRecord) error

	// Query returns a participant's records for a program year,
	// chronologically. Read-only.
	Query(ctx context.Context, id ParticipantID, year int) ([]PaymentRecord, error)

	// QueryRecent returns the newest records for a program year. Read-only.
	QueryRecent(ctx context.Context, year int, limit int) ([]PaymentRecord, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

// Record delegates straight to the store. Deduplication lives in the
// store's constrained insert so that concurrent deliveries of the same
// transaction id resolve to exactly one record.
func (l *DefaultLedger) Record(ctx context.Context, rec PaymentRecord) error {
	return l.Store.Append(ctx, rec)
}

func (l *DefaultLedger) Query(ctx context.Context, id ParticipantID, year int) ([]PaymentRecord, error) {
	return l.Store.ByParticipant(ctx, id, year)
}

func (l *DefaultLedger) QueryRecent(ctx context.Context, year int, limit int) ([]PaymentRecord, error) {
	return l.Store.Recent(ctx, year, limit)
}
