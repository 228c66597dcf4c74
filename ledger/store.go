/*
store.go - Persistence interface for payment records

PURPOSE:
  Defines the interface between the ledger and the database. The Store
  keeps append-only semantics for records; different implementations can
  use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  - Append(): the ONLY write on records. No Update(), no Delete().
  - Corrections arrive as new records (a refund is a new negative amount).

IDEMPOTENCY:
  The transaction id is the natural idempotency key. Uniqueness is enforced
  by the store in a single constrained insert, atomic with the write itself.
  A read-then-write check would race under concurrent callback delivery;
  implementations must not do that.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite (unique index on the id)
  - ledger/store/memory.go: in-memory for testing

SEE ALSO:
  - ledger.go: higher-level contract using Store
*/
package ledger

import "context"

// =============================================================================
// STORE - Record persistence (append-only)
// =============================================================================

// Store handles persistence of payment records.
type Store interface {
	// Append persists a record. Returns ErrDuplicateTransaction (possibly
	// wrapped) if the transaction id already exists. The uniqueness check
	// is atomic with the insert.
	Append(ctx context.Context, rec PaymentRecord) error

	// ByParticipant returns a participant's records for a program year,
	// ordered by RecordedAt ascending.
	ByParticipant(ctx context.Context, id ParticipantID, year int) ([]PaymentRecord, error)

	// ByYear returns all records for a program year, ordered by RecordedAt
	// ascending. Used by the report aggregator.
	ByYear(ctx context.Context, year int) ([]PaymentRecord, error)

	// Recent returns the newest records for a program year, ordered by
	// RecordedAt descending, at most limit rows.
	Recent(ctx context.Context, year int, limit int) ([]PaymentRecord, error)
}

// =============================================================================
// PARTICIPANT DIRECTORY
// =============================================================================

// ParticipantDirectory resolves participants. The full account system is an
// external collaborator; this is the slice of it the core needs to derive
// order numbers and payer identity, and to iterate the participant set for
// batch reporting.
type ParticipantDirectory interface {
	ParticipantByID(ctx context.Context, id ParticipantID) (*Participant, error)
	ParticipantByEmail(ctx context.Context, email string) (*Participant, error)

	// Participants returns the full participant set. O(participants);
	// intended for batch and admin use, not per-request hot paths.
	Participants(ctx context.Context) ([]Participant, error)
}
