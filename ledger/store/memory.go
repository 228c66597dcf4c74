// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/nelp/payment-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Store, ledger.ParticipantDirectory and
// ledger.ProgramSource. The transaction id check and the insert happen under
// one lock, mirroring the constrained insert the SQLite store relies on.
type Memory struct {
	mu           sync.RWMutex
	records      []ledger.PaymentRecord
	byTxID       map[string]bool
	participants map[ledger.ParticipantID]ledger.Participant
	programs     []ledger.ProgramPeriod
}

func NewMemory() *Memory {
	return &Memory{
		byTxID:       make(map[string]bool),
		participants: make(map[ledger.ParticipantID]ledger.Participant),
	}
}

// Append adds a record. Duplicate transaction ids are rejected atomically.
func (m *Memory) Append(_ context.Context, rec ledger.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byTxID[rec.TransactionID] {
		return &ledger.DuplicateTransactionError{TransactionID: rec.TransactionID}
	}
	m.byTxID[rec.TransactionID] = true
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) ByParticipant(_ context.Context, id ledger.ParticipantID, year int) ([]ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.PaymentRecord
	for _, r := range m.records {
		if r.ParticipantID == id && r.ProgramYear == year {
			out = append(out, r)
		}
	}
	sortByRecordedAsc(out)
	return out, nil
}

func (m *Memory) ByYear(_ context.Context, year int) ([]ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.PaymentRecord
	for _, r := range m.records {
		if r.ProgramYear == year {
			out = append(out, r)
		}
	}
	sortByRecordedAsc(out)
	return out, nil
}

func (m *Memory) Recent(_ context.Context, year int, limit int) ([]ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.PaymentRecord
	for _, r := range m.records {
		if r.ProgramYear == year {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByRecordedAsc(recs []ledger.PaymentRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].RecordedAt.Before(recs[j].RecordedAt)
	})
}

// =============================================================================
// PARTICIPANT DIRECTORY
// =============================================================================

func (m *Memory) AddParticipant(p ledger.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = p
}

func (m *Memory) ParticipantByID(_ context.Context, id ledger.ParticipantID) (*ledger.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, ledger.ErrParticipantNotFound
	}
	return &p, nil
}

func (m *Memory) ParticipantByEmail(_ context.Context, email string) (*ledger.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.participants {
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, ledger.ErrParticipantNotFound
}

func (m *Memory) Participants(_ context.Context) ([]ledger.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// PROGRAM SOURCE
// =============================================================================

// AddProgram appends a period. Order matters: when more than one period is
// active, the most recently added active period wins, matching the
// last-write-wins tolerance of the production store.
func (m *Memory) AddProgram(p ledger.ProgramPeriod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs = append(m.programs, p)
}

func (m *Memory) ActiveProgram(_ context.Context) (*ledger.ProgramPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.programs) - 1; i >= 0; i-- {
		if m.programs[i].Active {
			p := m.programs[i]
			return &p, nil
		}
	}
	return nil, ledger.ErrProgramUnavailable
}

func (m *Memory) ProgramForYear(_ context.Context, year int) (*ledger.ProgramPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.programs) - 1; i >= 0; i-- {
		if m.programs[i].ProgramYear == year {
			p := m.programs[i]
			return &p, nil
		}
	}
	return nil, ledger.ErrProgramUnavailable
}
