package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelp/payment-engine/ledger"
	"github.com/nelp/payment-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestReports(t *testing.T) (*ledger.Reports, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.AddProgram(ledger.ProgramPeriod{
		ProgramYear:    2024,
		ApplicationFee: 500,
		ProgramFee:     1000,
		Active:         true,
	})
	mem.AddParticipant(ledger.Participant{ID: 1, Email: "alice@example.org"})
	mem.AddParticipant(ledger.Participant{ID: 2, Email: "bob@example.org"})
	mem.AddParticipant(ledger.Participant{ID: 3, Email: "carol@example.org"})
	return ledger.NewReports(mem, mem, mem), mem
}

func seedPayments(t *testing.T, mem *store.Memory, amounts map[ledger.ParticipantID]ledger.Cents) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	for id, cents := range amounts {
		i++
		rec := payment("tx-seed-"+string(rune('a'+i)), id, 2024, "1", cents, at.Add(time.Duration(i)*time.Minute))
		require.NoError(t, mem.Append(ctx, rec))
	}
}

// =============================================================================
// SORTING
// =============================================================================

func TestReports_SortByTotalPaid_Numeric(t *testing.T) {
	// GIVEN: Payments of 900, 10000, and 2500 cents
	// WHEN: Sorting by total paid ascending
	// THEN: Order is numeric (900 < 2500 < 10000), never lexical

	reports, mem := newTestReports(t)
	seedPayments(t, mem, map[ledger.ParticipantID]ledger.Cents{
		1: 10000,
		2: 900,
		3: 2500,
	})

	page, err := reports.Summaries(context.Background(), 2024, ledger.SortByTotalPaid, ledger.Ascending, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, ledger.ParticipantID(2), page.Rows[0].ParticipantID)
	assert.Equal(t, ledger.ParticipantID(3), page.Rows[1].ParticipantID)
	assert.Equal(t, ledger.ParticipantID(1), page.Rows[2].ParticipantID)
}

func TestReports_SortDescending_TiesBreakByIDAscending(t *testing.T) {
	// GIVEN: Two participants with identical totals
	// WHEN: Sorting by total paid descending
	// THEN: The tie breaks by participant id ascending either direction

	reports, mem := newTestReports(t)
	seedPayments(t, mem, map[ledger.ParticipantID]ledger.Cents{
		1: 5000,
		2: 5000,
		3: 9000,
	})

	page, err := reports.Summaries(context.Background(), 2024, ledger.SortByTotalPaid, ledger.Descending, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, ledger.ParticipantID(3), page.Rows[0].ParticipantID)
	assert.Equal(t, ledger.ParticipantID(1), page.Rows[1].ParticipantID)
	assert.Equal(t, ledger.ParticipantID(2), page.Rows[2].ParticipantID)
}

func TestReports_SortByBalanceDue(t *testing.T) {
	// GIVEN: Participants with different balances due
	// WHEN: Sorting by balance due ascending
	// THEN: The most paid-up participant comes first

	reports, mem := newTestReports(t)
	seedPayments(t, mem, map[ledger.ParticipantID]ledger.Cents{
		1: 150000, // due 0
		2: 50000,  // due 100000
	})

	page, err := reports.Summaries(context.Background(), 2024, ledger.SortByBalanceDue, ledger.Ascending, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, ledger.ParticipantID(1), page.Rows[0].ParticipantID)
	assert.True(t, page.Rows[0].PaidInFull)
	assert.Equal(t, ledger.Cents(100000), page.Rows[1].BalanceDue)
}

// =============================================================================
// PAGINATION
// =============================================================================

func TestReports_Pagination_ClampsOutOfRangePages(t *testing.T) {
	// GIVEN: Three participants and a page size of 2
	// WHEN: Requesting pages beyond either end of the range
	// THEN: The page clamps into [1, totalPages]

	reports, mem := newTestReports(t)
	seedPayments(t, mem, map[ledger.ParticipantID]ledger.Cents{
		1: 100, 2: 200, 3: 300,
	})
	ctx := context.Background()

	page, err := reports.Summaries(ctx, 2024, ledger.SortByTotalPaid, ledger.Ascending, 99, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Rows, 1)

	page, err = reports.Summaries(ctx, 2024, ledger.SortByTotalPaid, ledger.Ascending, -5, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Rows, 2)
}

func TestReports_EnvelopeCounts(t *testing.T) {
	// GIVEN: One fully paid participant and one outstanding
	// WHEN: Building the report
	// THEN: PaidInFull and Outstanding counts cover all rows, not just the page

	reports, mem := newTestReports(t)
	seedPayments(t, mem, map[ledger.ParticipantID]ledger.Cents{
		1: 150000,
		2: 10000,
	})

	page, err := reports.Summaries(context.Background(), 2024, ledger.SortByTotalPaid, ledger.Ascending, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalRows)
	assert.Equal(t, 1, page.PaidInFull)
	assert.Equal(t, 1, page.Outstanding)
	assert.Equal(t, 2024, page.ProgramYear)
}

func TestReports_UnknownYear_ReturnsError(t *testing.T) {
	reports, _ := newTestReports(t)
	_, err := reports.Summaries(context.Background(), 1999, ledger.SortByTotalPaid, ledger.Ascending, 1, 20)
	assert.ErrorIs(t, err, ledger.ErrProgramUnavailable)
}

// =============================================================================
// RECENT PAYMENTS
// =============================================================================

func TestReports_RecentPayments_NewestFirst(t *testing.T) {
	// GIVEN: Three payments recorded over an hour
	// WHEN: Requesting the two most recent
	// THEN: The newest two come back, newest first

	reports, mem := newTestReports(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Append(ctx, payment("tx-1", 1, 2024, "1", 100, base)))
	require.NoError(t, mem.Append(ctx, payment("tx-2", 2, 2024, "1", 200, base.Add(30*time.Minute))))
	require.NoError(t, mem.Append(ctx, payment("tx-3", 3, 2024, "1", 300, base.Add(time.Hour))))

	recs, err := reports.RecentPayments(ctx, 2024, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "tx-3", recs[0].TransactionID)
	assert.Equal(t, "tx-2", recs[1].TransactionID)
}
