/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Callers match with errors.Is; the processor and api packages wrap these
  with their own context.

ERROR CATEGORIES:
  1. Duplicate detection - expected outcomes, not faults
  2. Resolution failures - missing program period or participant
  3. Store errors beyond these surface unchanged to the caller

SEE ALSO:
  - ledger.go: returns ErrDuplicateTransaction
  - balance.go: returns ErrProgramUnavailable
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateTransaction is returned when a record with the same
	// transaction id already exists. Expected for redelivered callbacks;
	// callers treat it as "already processed", never as a fault.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrProgramUnavailable is returned when no program period matches the
	// requested year, or no program is active. Balance math must surface
	// this explicitly rather than defaulting to zero.
	ErrProgramUnavailable = errors.New("no matching program period")

	// ErrParticipantNotFound is returned when a participant cannot be
	// resolved, typically from a callback order number.
	ErrParticipantNotFound = errors.New("participant not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// DuplicateTransactionError carries the colliding transaction id.
type DuplicateTransactionError struct {
	TransactionID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %q already recorded", e.TransactionID)
}

func (e *DuplicateTransactionError) Unwrap() error {
	return ErrDuplicateTransaction
}

// IsClientError reports whether the error is an expected outcome of valid
// but redundant or unresolvable input, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrProgramUnavailable) ||
		errors.Is(err, ErrParticipantNotFound)
}
