/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific formatting (amounts as dollar strings)
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNT FORMATTING:
  All amounts leave the API twice: as integer cents (*_cents) for clients
  that do math, and as a fixed two-decimal dollar string for display. The
  dollar string is the only place decimal formatting happens.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types these mirror
*/
package api

import (
	"time"

	"github.com/nelp/payment-engine/ledger"
	"github.com/nelp/payment-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ParticipantDTO represents a participant in API responses.
type ParticipantDTO struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateParticipantRequest is the request to register a participant.
type CreateParticipantRequest struct {
	Email string `json:"email"`
}

// ProgramDTO represents a program period in API responses. Fees are in
// whole dollars as configured; total cost carries both representations.
type ProgramDTO struct {
	ProgramYear         int    `json:"program_year"`
	ApplicationFee      int64  `json:"application_fee"`
	ProgramFee          int64  `json:"program_fee"`
	TotalCostCents      int64  `json:"total_cost_cents"`
	TotalCost           string `json:"total_cost"`
	Active              bool   `json:"active"`
	OpensAt             string `json:"opens_at"`
	ClosesAt            string `json:"closes_at"`
	AllowPayments       bool   `json:"allow_payments"`
	PaymentInstructions string `json:"payment_instructions,omitempty"`
}

// PaymentDTO represents one ledger record.
type PaymentDTO struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	ParticipantID int64  `json:"participant_id"`
	ProgramYear   int    `json:"program_year"`
	Status        string `json:"status"`
	StatusCode    string `json:"status_code"`
	AmountCents   int64  `json:"amount_cents"`
	Amount        string `json:"amount"`
	Date          string `json:"date,omitempty"`
	AccountType   string `json:"account_type,omitempty"`
	ResultMessage string `json:"result_message,omitempty"`
	OrderNumber   string `json:"order_number,omitempty"`
	PayerIdentity string `json:"payer_identity,omitempty"`
	RecordedAt    string `json:"recorded_at"`
}

// PaymentSummaryDTO is the participant-facing payment summary view.
type PaymentSummaryDTO struct {
	Participant         ParticipantDTO `json:"participant"`
	ProgramYear         int            `json:"program_year"`
	TotalCost           string         `json:"total_cost"`
	TotalPaid           string         `json:"total_paid"`
	BalanceDue          string         `json:"balance_due"`
	BalanceDueCents     int64          `json:"balance_due_cents"`
	PaidInFull          bool           `json:"paid_in_full"`
	PaymentsAllowed     bool           `json:"payments_allowed"`
	PaymentInstructions string         `json:"payment_instructions,omitempty"`
	Payments            []PaymentDTO   `json:"payments"`
	Notice              string         `json:"notice,omitempty"`
}

// SummaryRowDTO is one row of the administrative report.
type SummaryRowDTO struct {
	ParticipantID  int64  `json:"participant_id"`
	Email          string `json:"email"`
	TotalPaidCents int64  `json:"total_paid_cents"`
	TotalPaid      string `json:"total_paid"`
	BalanceCents   int64  `json:"balance_due_cents"`
	BalanceDue     string `json:"balance_due"`
	PaidInFull     bool   `json:"paid_in_full"`
}

// SummaryPageDTO is one page of the administrative report.
type SummaryPageDTO struct {
	Rows        []SummaryRowDTO `json:"rows"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
	TotalRows   int             `json:"total_rows"`
	TotalPages  int             `json:"total_pages"`
	PaidInFull  int             `json:"paid_in_full"`
	Outstanding int             `json:"outstanding"`
	ProgramYear int             `json:"program_year"`
}

// ReportRunDTO represents a nightly paid-in-full report run.
type ReportRunDTO struct {
	ID           string `json:"id"`
	RunDate      string `json:"run_date"`
	ProgramYear  int    `json:"program_year"`
	Participants int    `json:"participants"`
	PaidInFull   int    `json:"paid_in_full"`
	Outstanding  int    `json:"outstanding"`
	CreatedAt    string `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toParticipantDTO(p ledger.Participant) ParticipantDTO {
	return ParticipantDTO{
		ID:        int64(p.ID),
		Email:     p.Email,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toProgramDTO(p ledger.ProgramPeriod) ProgramDTO {
	return ProgramDTO{
		ProgramYear:         p.ProgramYear,
		ApplicationFee:      p.ApplicationFee,
		ProgramFee:          p.ProgramFee,
		TotalCostCents:      int64(p.TotalCost()),
		TotalCost:           p.TotalCost().Dollars(),
		Active:              p.Active,
		OpensAt:             p.OpensAt.Format(time.RFC3339),
		ClosesAt:            p.ClosesAt.Format(time.RFC3339),
		AllowPayments:       p.AllowPayments,
		PaymentInstructions: p.PaymentInstructions,
	}
}

func toPaymentDTO(rec ledger.PaymentRecord) PaymentDTO {
	return PaymentDTO{
		ID:            rec.ID,
		TransactionID: rec.TransactionID,
		ParticipantID: int64(rec.ParticipantID),
		ProgramYear:   rec.ProgramYear,
		Status:        string(rec.Status()),
		StatusCode:    rec.StatusCode,
		AmountCents:   int64(rec.Amount),
		Amount:        rec.Amount.Dollars(),
		Date:          rec.TransactionDate,
		AccountType:   rec.AccountType,
		ResultMessage: rec.ResultMessage,
		OrderNumber:   rec.OrderNumber,
		PayerIdentity: rec.PayerIdentity,
		RecordedAt:    rec.RecordedAt.Format(time.RFC3339),
	}
}

func toPaymentDTOs(recs []ledger.PaymentRecord) []PaymentDTO {
	dtos := make([]PaymentDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toPaymentDTO(rec)
	}
	return dtos
}

func toSummaryRowDTO(row ledger.ParticipantSummary) SummaryRowDTO {
	return SummaryRowDTO{
		ParticipantID:  int64(row.ParticipantID),
		Email:          row.Email,
		TotalPaidCents: int64(row.TotalPaid),
		TotalPaid:      row.TotalPaid.Dollars(),
		BalanceCents:   int64(row.BalanceDue),
		BalanceDue:     row.BalanceDue.Dollars(),
		PaidInFull:     row.PaidInFull,
	}
}

func toSummaryPageDTO(page ledger.SummaryPage) SummaryPageDTO {
	rows := make([]SummaryRowDTO, len(page.Rows))
	for i, row := range page.Rows {
		rows[i] = toSummaryRowDTO(row)
	}
	return SummaryPageDTO{
		Rows:        rows,
		Page:        page.Page,
		PageSize:    page.PageSize,
		TotalRows:   page.TotalRows,
		TotalPages:  page.TotalPages,
		PaidInFull:  page.PaidInFull,
		Outstanding: page.Outstanding,
		ProgramYear: page.ProgramYear,
	}
}

func toReportRunDTO(run sqlite.ReportRun) ReportRunDTO {
	return ReportRunDTO{
		ID:           run.ID,
		RunDate:      run.RunDate,
		ProgramYear:  run.ProgramYear,
		Participants: run.Participants,
		PaidInFull:   run.PaidInFull,
		Outstanding:  run.Outstanding,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
	}
}
