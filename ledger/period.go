package ledger

import (
	"context"
	"time"
)

// =============================================================================
// PROGRAM PERIOD - Yearly fee configuration, owned externally
// =============================================================================

// ProgramPeriod is a read-only snapshot of one program year's configuration.
// The core never mutates it; it is resolved once per request and threaded
// through balance and signing calls.
//
// Fees are configured upstream in whole major units (a 500 application fee
// is five hundred dollars). Everything derived from them is integer cents.
type ProgramPeriod struct {
	ProgramYear    int
	ApplicationFee int64
	ProgramFee     int64
	Active         bool
	OpensAt        time.Time
	ClosesAt       time.Time

	// AllowPayments gates payment initiation independently of Active.
	AllowPayments       bool
	PaymentInstructions string
}

// TotalCost is the full amount owed for the program year, in cents.
func (p ProgramPeriod) TotalCost() Cents {
	return FromDollars(p.ApplicationFee + p.ProgramFee)
}

// ApplicationFeeCents is the default payment amount, in cents.
func (p ProgramPeriod) ApplicationFeeCents() Cents {
	return FromDollars(p.ApplicationFee)
}

// Open reports whether the enrollment window contains t.
func (p ProgramPeriod) Open(t time.Time) bool {
	return !t.Before(p.OpensAt) && !t.After(p.ClosesAt)
}

// ProgramSource resolves program periods. The configuration itself is an
// external collaborator; the core consumes it read-only.
//
// At most one period should be active at a time, but that is enforced
// upstream. If more than one is ever found, implementations return the most
// recently activated one; if none is active, ActiveProgram returns
// ErrProgramUnavailable, never a zero-value period.
type ProgramSource interface {
	ActiveProgram(ctx context.Context) (*ProgramPeriod, error)
	ProgramForYear(ctx context.Context, year int) (*ProgramPeriod, error)
}
