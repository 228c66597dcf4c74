/*
balance.go - Balance computation from ledger records

PURPOSE:
  Pure computation over the ledger and a program period producing balance
  due and paid-in-full status. No state of its own; every call recomputes
  from records.

ALGORITHM:
  totalPaid  = sum of Amount over successful records for participant+year
  balanceDue = program.TotalCost() - totalPaid

  All sums and comparisons are integer cents. Conversion to dollars happens
  only at the presentation boundary (api/dto.go), never here.

EDGE CASES:
  - No program period for the year: ErrProgramUnavailable, never zero.
  - Failed and pending records never change the balance.
  - PaidInFull truncates toward zero to whole dollars first; sub-dollar
    remainders count as paid.
*/
package ledger

import "context"

// =============================================================================
// BALANCE ENGINE
// =============================================================================

// Engine computes balances. Programs is resolved per call; the engine keeps
// no ambient "current program" state.
type Engine struct {
	Ledger   Ledger
	Programs ProgramSource
}

func NewEngine(l Ledger, p ProgramSource) *Engine {
	return &Engine{Ledger: l, Programs: p}
}

// resolve returns the period for year, or the active period when year is 0.
func (e *Engine) resolve(ctx context.Context, year int) (*ProgramPeriod, error) {
	if year == 0 {
		return e.Programs.ActiveProgram(ctx)
	}
	return e.Programs.ProgramForYear(ctx, year)
}

// TotalPaid sums successful records for a participant and year, in cents.
func (e *Engine) TotalPaid(ctx context.Context, id ParticipantID, year int) (Cents, error) {
	recs, err := e.Ledger.Query(ctx, id, year)
	if err != nil {
		return 0, err
	}
	var paid Cents
	for _, r := range recs {
		if r.Successful() {
			paid += r.Amount
		}
	}
	return paid, nil
}

// BalanceDue returns the program's total cost minus successful payments.
// year 0 means the currently active program.
func (e *Engine) BalanceDue(ctx context.Context, id ParticipantID, year int) (Cents, error) {
	snap, err := e.Snapshot(ctx, id, year)
	if err != nil {
		return 0, err
	}
	return snap.BalanceDue, nil
}

// IsPaidInFull reports whether the balance due, truncated toward zero to
// whole dollars, is zero.
func (e *Engine) IsPaidInFull(ctx context.Context, id ParticipantID, year int) (bool, error) {
	snap, err := e.Snapshot(ctx, id, year)
	if err != nil {
		return false, err
	}
	return snap.PaidInFull, nil
}

// Snapshot computes the full derived balance state for a participant.
func (e *Engine) Snapshot(ctx context.Context, id ParticipantID, year int) (BalanceSnapshot, error) {
	program, err := e.resolve(ctx, year)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	paid, err := e.TotalPaid(ctx, id, program.ProgramYear)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	due := program.TotalCost() - paid
	return BalanceSnapshot{
		ParticipantID: id,
		ProgramYear:   program.ProgramYear,
		TotalCost:     program.TotalCost(),
		TotalPaid:     paid,
		BalanceDue:    due,
		PaidInFull:    due.WholeDollars() == 0,
	}, nil
}

// ZeroBalanceParticipants returns every participant whose balance due for
// the year truncates to zero dollars. O(participants); batch and admin use
// only, never a per-request hot path.
func (e *Engine) ZeroBalanceParticipants(ctx context.Context, dir ParticipantDirectory, year int) ([]Participant, error) {
	all, err := dir.Participants(ctx)
	if err != nil {
		return nil, err
	}
	var zero []Participant
	for _, p := range all {
		paid, err := e.IsPaidInFull(ctx, p.ID, year)
		if err != nil {
			return nil, err
		}
		if paid {
			zero = append(zero, p)
		}
	}
	return zero, nil
}
