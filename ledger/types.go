/*
Package ledger provides the payment ledger core.

PURPOSE:
  This package contains the domain types and algorithms for recording
  externally confirmed payment transactions and computing balances from
  them. The ledger is the source of truth for what has been paid; balance
  is always derived by summing records, never stored.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: an amount in integer minor currency units
  - PaymentRecord: an immutable ledger entry mirroring a processor callback
  - Participant: the minimal registry entry the core needs per payer
  - BalanceSnapshot: derived balance state for a participant and year

DESIGN PRINCIPLES:
  1. Immutability: records are never updated, corrections are new records
  2. Precision: all money math is integer cents; decimal only at the
     presentation boundary
  3. Fidelity: callback values are stored as received, the ledger records
     what the processor said, it does not validate it

SEE ALSO:
  - ledger.go: Record/Query contract and the default implementation
  - balance.go: Balance computation from records
  - period.go: Program period configuration consumed by balance math
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CENTS - Integer minor currency units
// =============================================================================

// Cents is a signed amount in minor currency units. Negative amounts are
// permitted (refunds arrive as new negative records).
type Cents int64

var hundred = decimal.NewFromInt(100)

// FromDollars converts whole major units to cents.
func FromDollars(n int64) Cents {
	return Cents(n * 100)
}

// Decimal returns the amount in major units as a decimal value.
// Presentation use only.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(hundred)
}

// Dollars formats the amount in major units with two decimal places.
func (c Cents) Dollars() string {
	return c.Decimal().StringFixed(2)
}

// WholeDollars truncates toward zero to whole major units.
func (c Cents) WholeDollars() int64 {
	return int64(c) / 100
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ParticipantID int64

// Participant is the registry entry the core needs: a numeric identity and
// the contact handle the order number is derived from. Account management
// and authentication live outside this system.
type Participant struct {
	ID        ParticipantID
	Email     string
	CreatedAt time.Time
}

// =============================================================================
// PAYMENT RECORD - Immutable ledger entry
// =============================================================================

// TransactionStatus is the interpreted state of a record. The processor's
// raw status code is kept verbatim on the record; this enum is derived.
type TransactionStatus string

const (
	StatusSuccessful TransactionStatus = "successful"
	StatusPending    TransactionStatus = "pending"
	StatusFailed     TransactionStatus = "failed"
)

// Processor status codes observed on the wire.
const (
	statusCodeSuccess = "1"
	statusCodePending = "2"
)

// PaymentRecord is one externally confirmed transaction. Created exactly
// once, at ingest time, from the processor's callback. Never updated or
// deleted.
//
// RawAmount holds transactionTotalAmount exactly as received. Amount is the
// permissive integer-cents parse of it; an unparseable amount contributes
// zero to balances but the raw value is preserved for audit.
type PaymentRecord struct {
	ID            string
	TransactionID string
	ParticipantID ParticipantID
	ProgramYear   int

	TransactionType string
	StatusCode      string
	RawAmount       string
	Amount          Cents
	TransactionDate string
	AccountType     string
	ResultCode      string
	ResultMessage   string

	// OrderNumber round-trips through the processor and identifies the
	// participant on the way back.
	OrderNumber       string
	PayerIdentity     string
	ExternalTimestamp string
	ExternalSignature string

	RecordedAt time.Time
}

// Status interprets the processor's raw status code. Anything other than
// the known success/pending codes counts as failed.
func (r PaymentRecord) Status() TransactionStatus {
	switch r.StatusCode {
	case statusCodeSuccess:
		return StatusSuccessful
	case statusCodePending:
		return StatusPending
	default:
		return StatusFailed
	}
}

// Successful reports whether the record counts toward balances.
func (r PaymentRecord) Successful() bool {
	return r.Status() == StatusSuccessful
}

// =============================================================================
// BALANCE SNAPSHOT - Derived, never persisted
// =============================================================================

// BalanceSnapshot is a pure function of the ledger and the program period.
// Recomputed on every query; there is no cache to invalidate.
type BalanceSnapshot struct {
	ParticipantID ParticipantID
	ProgramYear   int
	TotalCost     Cents
	TotalPaid     Cents
	BalanceDue    Cents
	PaidInFull    bool
}

// ParticipantSummary is one row of the administrative report.
type ParticipantSummary struct {
	ParticipantID ParticipantID
	Email         string
	TotalPaid     Cents
	BalanceDue    Cents
	PaidInFull    bool
}
