/*
report.go - Read-side aggregation for administrative review

PURPOSE:
  Joins per-participant payment totals with balance computation into
  sorted, paginated summaries. No business rules of its own; everything it
  reports is derived from the ledger and the balance engine.

SORTING:
  totalPaid and balanceDue compare numerically in cents, never lexically on
  formatted currency. Ties break by participant id ascending so page
  boundaries are deterministic.

PAGINATION:
  The requested page clamps into [1, ceil(count/pageSize)]. An out-of-range
  page silently clamps; this is a read-only, low-stakes view.
*/
package ledger

import (
	"context"
	"sort"
)

// =============================================================================
// SORT / PAGE PARAMETERS
// =============================================================================

type SortKey string

const (
	SortByParticipant SortKey = "participant"
	SortByTotalPaid   SortKey = "total_paid"
	SortByBalanceDue  SortKey = "balance_due"
)

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

const DefaultPageSize = 20

// SummaryPage is one page of the administrative report plus the envelope
// counts the dashboard displays.
type SummaryPage struct {
	Rows        []ParticipantSummary
	Page        int
	PageSize    int
	TotalRows   int
	TotalPages  int
	PaidInFull  int
	Outstanding int
	ProgramYear int
}

// =============================================================================
// REPORT AGGREGATOR
// =============================================================================

type Reports struct {
	Store        Store
	Programs     ProgramSource
	Participants ParticipantDirectory
}

func NewReports(store Store, programs ProgramSource, participants ParticipantDirectory) *Reports {
	return &Reports{Store: store, Programs: programs, Participants: participants}
}

// Summaries builds the per-participant totals report for a program year.
// Participants appear once they have at least one successful record for the
// year, matching the dashboard this feeds.
func (r *Reports) Summaries(ctx context.Context, year int, key SortKey, order SortOrder, page, pageSize int) (SummaryPage, error) {
	program, err := r.Programs.ProgramForYear(ctx, year)
	if err != nil {
		return SummaryPage{}, err
	}

	recs, err := r.Store.ByYear(ctx, year)
	if err != nil {
		return SummaryPage{}, err
	}

	paidBy := make(map[ParticipantID]Cents)
	for _, rec := range recs {
		if rec.Successful() {
			paidBy[rec.ParticipantID] += rec.Amount
		}
	}

	rows := make([]ParticipantSummary, 0, len(paidBy))
	totalCost := program.TotalCost()
	for id, paid := range paidBy {
		due := totalCost - paid
		row := ParticipantSummary{
			ParticipantID: id,
			TotalPaid:     paid,
			BalanceDue:    due,
			PaidInFull:    due.WholeDollars() == 0,
		}
		if p, err := r.Participants.ParticipantByID(ctx, id); err == nil && p != nil {
			row.Email = p.Email
		}
		rows = append(rows, row)
	}

	sortSummaries(rows, key, order)

	paidInFull := 0
	for _, row := range rows {
		if row.PaidInFull {
			paidInFull++
		}
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(rows)
	totalPages := (total + pageSize - 1) / pageSize
	page = clampPage(page, totalPages)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return SummaryPage{
		Rows:        rows[start:end],
		Page:        page,
		PageSize:    pageSize,
		TotalRows:   total,
		TotalPages:  totalPages,
		PaidInFull:  paidInFull,
		Outstanding: total - paidInFull,
		ProgramYear: year,
	}, nil
}

// RecentPayments returns the newest records for a year, for the dashboard's
// recent-activity table.
func (r *Reports) RecentPayments(ctx context.Context, year int, limit int) ([]PaymentRecord, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return r.Store.Recent(ctx, year, limit)
}

func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if totalPages > 0 && page > totalPages {
		return totalPages
	}
	return page
}

func sortSummaries(rows []ParticipantSummary, key SortKey, order SortOrder) {
	less := func(a, b ParticipantSummary) bool {
		switch key {
		case SortByParticipant:
			if a.Email != b.Email {
				return a.Email < b.Email
			}
		case SortByBalanceDue:
			if a.BalanceDue != b.BalanceDue {
				return a.BalanceDue < b.BalanceDue
			}
		default: // SortByTotalPaid
			if a.TotalPaid != b.TotalPaid {
				return a.TotalPaid < b.TotalPaid
			}
		}
		// Tie-break by participant id ascending regardless of direction,
		// so ordering is deterministic.
		return a.ParticipantID < b.ParticipantID
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if order == Descending {
			// Flip only the primary key comparison, keep ties ascending.
			a, b := rows[i], rows[j]
			if primaryEqual(a, b, key) {
				return a.ParticipantID < b.ParticipantID
			}
			return less(b, a)
		}
		return less(rows[i], rows[j])
	})
}

func primaryEqual(a, b ParticipantSummary, key SortKey) bool {
	switch key {
	case SortByParticipant:
		return a.Email == b.Email
	case SortByBalanceDue:
		return a.BalanceDue == b.BalanceDue
	default:
		return a.TotalPaid == b.TotalPaid
	}
}
