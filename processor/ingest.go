/*
ingest.go - Idempotent recording of processor callbacks

PURPOSE:
  Maps the processor's callback fields onto a PaymentRecord and appends it
  to the ledger exactly once per transaction id.

PERMISSIVENESS:
  The processor is the authoritative source of what happened. Malformed or
  partial fields are stored as received, not rejected; the only field that
  drives behavior is transactionId, which must be present and unseen.
  An unparseable amount is preserved verbatim in RawAmount and contributes
  zero to balances.

STATE MACHINE (per transactionId):
  Unseen -> Recorded, terminal. Corrections arrive as new transaction ids.
*/
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nelp/payment-engine/ledger"
)

// ErrMissingTransactionID is returned when a callback carries no
// transaction id. Without it there is nothing to deduplicate on.
var ErrMissingTransactionID = errors.New("callback missing transactionId")

// Outcome distinguishes a fresh record from a redelivery. Either way the
// participant lands on the same summary view; only the success notice
// differs.
type Outcome string

const (
	Recorded        Outcome = "recorded"
	AlreadyRecorded Outcome = "already_recorded"
)

// =============================================================================
// INGESTOR
// =============================================================================

type Ingestor struct {
	Ledger       ledger.Ledger
	Participants ledger.ParticipantDirectory

	// Now stamps RecordedAt; injected for tests.
	Now func() time.Time
}

func NewIngestor(l ledger.Ledger, dir ledger.ParticipantDirectory, now func() time.Time) *Ingestor {
	if now == nil {
		now = time.Now
	}
	return &Ingestor{Ledger: l, Participants: dir, Now: now}
}

// Ingest records one callback under the given program period. The program
// year comes from the caller's resolved period, never from the callback or
// the wall clock. A duplicate transaction id returns AlreadyRecorded with
// no error.
func (in *Ingestor) Ingest(ctx context.Context, fields url.Values, program ledger.ProgramPeriod) (Outcome, ledger.PaymentRecord, error) {
	txID := fields.Get("transactionId")
	if txID == "" {
		return "", ledger.PaymentRecord{}, ErrMissingTransactionID
	}

	participant, err := in.resolveParticipant(ctx, fields.Get("orderNumber"))
	if err != nil {
		return "", ledger.PaymentRecord{}, err
	}

	raw := fields.Get("transactionTotalAmount")
	rec := ledger.PaymentRecord{
		ID:            uuid.NewString(),
		TransactionID: txID,
		ParticipantID: participant.ID,
		ProgramYear:   program.ProgramYear,

		TransactionType: fields.Get("transactionType"),
		StatusCode:      fields.Get("transactionStatus"),
		RawAmount:       raw,
		Amount:          parseCents(raw),
		TransactionDate: fields.Get("transactionDate"),
		AccountType:     fields.Get("transactionAcountType"),
		ResultCode:      fields.Get("transactionResultCode"),
		ResultMessage:   fields.Get("transactionResultMessage"),

		OrderNumber:       fields.Get("orderNumber"),
		PayerIdentity:     participant.Email,
		ExternalTimestamp: fields.Get("timestamp"),
		ExternalSignature: fields.Get("hash"),

		RecordedAt: in.Now().UTC(),
	}

	if err := in.Ledger.Record(ctx, rec); err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return AlreadyRecorded, rec, nil
		}
		return "", ledger.PaymentRecord{}, err
	}
	return Recorded, rec, nil
}

func (in *Ingestor) resolveParticipant(ctx context.Context, orderNumber string) (*ledger.Participant, error) {
	id, err := ParseOrderNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	p, err := in.Participants.ParticipantByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order number %q: %w", orderNumber, err)
	}
	return p, nil
}

// parseCents reads a callback amount in minor units. Integer first, then a
// decimal fallback truncated toward zero, then zero. Never an error;
// RawAmount keeps whatever actually arrived.
func parseCents(raw string) ledger.Cents {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return ledger.Cents(n)
	}
	if d, err := decimal.NewFromString(trimmed); err == nil {
		return ledger.Cents(d.IntPart())
	}
	return 0
}
