/*
signer.go - Signed redirect URL construction

PURPOSE:
  Builds the tamper-evident URL that redirects a participant to the
  payment processor. The processor recomputes the digest over the same
  field values; any mismatch rejects the payment request.

WIRE CONTRACT:
  Field order and exact names are part of the processor's published
  contract and must not be reordered or renamed:

    orderNumber, orderType, orderDescription, amountDue, redirectUrl,
    redirectUrlParameters, retriesAllowed, timestamp, hash

  The digest is SHA-256 over the concatenation of all field VALUES
  (names excluded), including the credential key. The rendered URL carries
  every field except the raw key, plus the digest as `hash`.

DETERMINISM:
  The timestamp is the only time-varying input and is injected via Now, so
  identical inputs and a fixed clock produce an identical hash.
*/
package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nelp/payment-engine/ledger"
)

// CallbackParameters is the fixed list of parameter names the processor
// echoes back to the callback URL. Verbatim from the processor contract,
// embedded space and historical "Acount" spelling included.
const CallbackParameters = "transactionType,transactionStatus,transactionId," +
	"transactionTotalAmount,transactionDate," +
	"transactionAcountType, transactionResultCode," +
	"transactionResultMessage,orderNumber"

// =============================================================================
// ORDER NUMBERS
// =============================================================================

// OrderNumber derives the stable per-participant account tag that round
// trips through the processor: the local part of the contact handle plus
// the numeric id. The id suffix keeps it collision-free even when two
// participants share a local part.
func OrderNumber(email string, id ledger.ParticipantID) string {
	local, _, _ := strings.Cut(email, "@")
	return fmt.Sprintf("%s-%d", local, id)
}

// ParseOrderNumber recovers the participant id from an order number. The
// local part may itself contain dashes, so the id is everything after the
// last one.
func ParseOrderNumber(orderNumber string) (ledger.ParticipantID, error) {
	i := strings.LastIndex(orderNumber, "-")
	if i < 0 || i == len(orderNumber)-1 {
		return 0, fmt.Errorf("order number %q: %w", orderNumber, ledger.ErrParticipantNotFound)
	}
	id, err := strconv.ParseInt(orderNumber[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("order number %q: %w", orderNumber, ledger.ErrParticipantNotFound)
	}
	return ledger.ParticipantID(id), nil
}

// =============================================================================
// REDIRECT SIGNER
// =============================================================================

// RedirectSigner builds signed processor redirect URLs. It performs no
// network I/O; the browser follows the URL it produces.
type RedirectSigner struct {
	Credentials CredentialSet

	// Now supplies the signing timestamp. Injected so tests can fix it.
	Now func() time.Time
}

func NewRedirectSigner(cs CredentialSet, now func() time.Time) *RedirectSigner {
	if now == nil {
		now = time.Now
	}
	return &RedirectSigner{Credentials: cs, Now: now}
}

type signedField struct {
	name  string
	value string
}

// BuildRedirect constructs the signed URL sending a participant to the
// processor to pay amount cents. Returns ErrMissingCredentials when the
// selected credential set is unusable.
func (s *RedirectSigner) BuildRedirect(participant ledger.Participant, amount ledger.Cents) (string, error) {
	creds, err := s.Credentials.Select()
	if err != nil {
		return "", err
	}

	timestamp := s.Now().UnixMilli()

	// Order matters: the signature covers the serialized field order.
	fields := []signedField{
		{"orderNumber", OrderNumber(participant.Email, participant.ID)},
		{"orderType", s.Credentials.OrderType},
		{"orderDescription", s.Credentials.OrderDescription},
		{"amountDue", strconv.FormatInt(int64(amount), 10)},
		{"redirectUrl", s.Credentials.CallbackURL},
		{"redirectUrlParameters", CallbackParameters},
		{"retriesAllowed", strconv.Itoa(s.Credentials.RetriesAllowed)},
		{"timestamp", strconv.FormatInt(timestamp, 10)},
		{"key", creds.Key},
	}

	var concat strings.Builder
	for _, f := range fields {
		concat.WriteString(f.value)
	}
	digest := sha256.Sum256([]byte(concat.String()))

	// url.Values would re-sort the parameters; build by hand to keep the
	// contract order. The raw key never appears in the URL.
	var query strings.Builder
	for _, f := range fields {
		if f.name == "key" {
			continue
		}
		query.WriteString(f.name)
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(f.value))
		query.WriteByte('&')
	}
	query.WriteString("hash=")
	query.WriteString(hex.EncodeToString(digest[:]))

	return creds.BaseURL + "?" + query.String(), nil
}
