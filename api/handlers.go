/*
handlers.go - HTTP API handlers for the payment engine

PURPOSE:
  Exposes the ledger, balance engine, redirect signer, and report
  aggregator via HTTP. Handles request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Payment flow:
    GET/POST /make_payment       Redirect to the signed processor URL
    GET/POST /payment_receipt    Processor callback, records and redirects
    GET      /payment_show       Participant payment summary

  Participants:
    GET    /api/participants         List participants
    POST   /api/participants         Register participant
    GET    /api/participants/{id}    Participant details

  Programs:
    GET    /api/programs/active      Currently active program period
    GET    /api/programs/{year}      Program period for a year

  Admin:
    GET    /api/admin/summaries        Sorted, paginated totals report
    GET    /api/admin/payments/recent  Newest ledger records
    GET    /api/admin/zero_balance     Paid-in-full participants
    GET    /api/admin/report_runs      Nightly report history

CALLBACK CONTRACT:
  The processor delivers callback fields as query parameters on GET or
  form fields on POST; both are accepted and merged. The callback is
  answered with a redirect to /payment_show either way, so the processor's
  browser handoff always lands the participant on their summary.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Payments closed for the program period
  - 404: Participant or program year not found
  - 503: No active program period configured
  - 500: Internal errors

SECURITY NOTE:
  Authentication is terminated upstream; participant identity arrives as
  a trusted participant_id parameter. The callback itself is
  unauthenticated by contract and relies on transaction id idempotency.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - processor/: Redirect signing and callback ingestion
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/nelp/payment-engine/ledger"
	"github.com/nelp/payment-engine/processor"
	"github.com/nelp/payment-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Ledger   ledger.Ledger
	Engine   *ledger.Engine
	Reports  *ledger.Reports
	Signer   *processor.RedirectSigner
	Ingestor *processor.Ingestor
	Log      *logrus.Logger
}

// NewHandler wires the domain services around a store.
func NewHandler(store *sqlite.Store, creds processor.CredentialSet, log *logrus.Logger) *Handler {
	l := ledger.NewLedger(store)
	return &Handler{
		Store:    store,
		Ledger:   l,
		Engine:   ledger.NewEngine(l, store),
		Reports:  ledger.NewReports(store, store, store),
		Signer:   processor.NewRedirectSigner(creds, nil),
		Ingestor: processor.NewIngestor(l, store, nil),
		Log:      log,
	}
}

// =============================================================================
// PAYMENT FLOW HANDLERS
// =============================================================================

// MakePayment redirects the participant to the processor with a signed URL.
// The amount parameter is in whole dollars and defaults to the application
// fee of the active program.
func (h *Handler) MakePayment(w http.ResponseWriter, r *http.Request) {
	fields, err := callbackFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request parameters", err)
		return
	}

	participant, ok := h.resolveParticipant(w, r, fields.Get("participant_id"))
	if !ok {
		return
	}

	program, err := h.Store.ActiveProgram(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "No active program period", err)
		return
	}
	if !program.AllowPayments || !program.Open(h.Signer.Now()) {
		writeError(w, http.StatusForbidden, "Payments are not currently accepted", nil)
		return
	}

	amount := program.ApplicationFeeCents()
	if raw := fields.Get("amount"); raw != "" {
		dollars, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || dollars <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid amount (whole dollars)", err)
			return
		}
		amount = ledger.FromDollars(dollars)
	}

	redirect, err := h.Signer.BuildRedirect(*participant, amount)
	if err != nil {
		h.Log.WithError(err).Error("failed to build payment redirect")
		writeError(w, http.StatusInternalServerError, "Payment redirect unavailable", nil)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"participant_id": participant.ID,
		"program_year":   program.ProgramYear,
		"amount_cents":   int64(amount),
	}).Info("payment initiated")

	http.Redirect(w, r, redirect, http.StatusFound)
}

// PaymentReceipt is the processor callback. It records the transaction
// idempotently and sends the participant to their summary. A redelivered
// transaction id lands on the same summary without the success notice.
func (h *Handler) PaymentReceipt(w http.ResponseWriter, r *http.Request) {
	fields, err := callbackFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid callback parameters", err)
		return
	}

	program, err := h.Store.ActiveProgram(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "No active program period", err)
		return
	}

	outcome, rec, err := h.Ingestor.Ingest(r.Context(), fields, *program)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrMissingTransactionID):
			writeError(w, http.StatusBadRequest, "Callback missing transactionId", err)
		case errors.Is(err, ledger.ErrParticipantNotFound):
			writeError(w, http.StatusNotFound, "Unknown order number", err)
		default:
			h.Log.WithError(err).Error("failed to record payment callback")
			writeError(w, http.StatusInternalServerError, "Failed to record payment", nil)
		}
		return
	}

	h.Log.WithFields(logrus.Fields{
		"transaction_id": rec.TransactionID,
		"participant_id": rec.ParticipantID,
		"program_year":   rec.ProgramYear,
		"status":         rec.Status(),
		"amount_cents":   int64(rec.Amount),
		"outcome":        outcome,
	}).Info("payment callback received")

	dest := "/payment_show?participant_id=" + strconv.FormatInt(int64(rec.ParticipantID), 10)
	if outcome == processor.Recorded {
		dest += "&notice=payment_recorded"
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// PaymentShow returns the participant's payment summary: balance state,
// payment history, and the program's payment instructions.
func (h *Handler) PaymentShow(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.resolveParticipant(w, r, r.URL.Query().Get("participant_id"))
	if !ok {
		return
	}

	snap, err := h.Engine.Snapshot(r.Context(), participant.ID, yearParam(r))
	if err != nil {
		if errors.Is(err, ledger.ErrProgramUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "No active program period", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}

	program, err := h.Store.ProgramForYear(r.Context(), snap.ProgramYear)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load program", err)
		return
	}

	recs, err := h.Ledger.Query(r.Context(), participant.ID, snap.ProgramYear)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payments", err)
		return
	}

	notice := ""
	if r.URL.Query().Get("notice") == "payment_recorded" {
		notice = "Thank you, your payment has been recorded."
	}

	writeJSON(w, http.StatusOK, PaymentSummaryDTO{
		Participant:         toParticipantDTO(*participant),
		ProgramYear:         snap.ProgramYear,
		TotalCost:           snap.TotalCost.Dollars(),
		TotalPaid:           snap.TotalPaid.Dollars(),
		BalanceDue:          snap.BalanceDue.Dollars(),
		BalanceDueCents:     int64(snap.BalanceDue),
		PaidInFull:          snap.PaidInFull,
		PaymentsAllowed:     program.AllowPayments && program.Open(h.Signer.Now()),
		PaymentInstructions: program.PaymentInstructions,
		Payments:            toPaymentDTOs(recs),
		Notice:              notice,
	})
}

// =============================================================================
// PARTICIPANT HANDLERS
// =============================================================================

// ListParticipants returns all registered participants.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.Store.Participants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list participants", err)
		return
	}

	dtos := make([]ParticipantDTO, len(participants))
	for i, p := range participants {
		dtos[i] = toParticipantDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateParticipant registers a participant. Registering an existing email
// returns the existing participant.
func (h *Handler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req CreateParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "Valid email is required", nil)
		return
	}

	p, err := h.Store.SaveParticipant(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register participant", err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantDTO(p))
}

// GetParticipant returns a single participant.
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.resolveParticipant(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(*participant))
}

// =============================================================================
// PROGRAM HANDLERS
// =============================================================================

// GetActiveProgram returns the currently active program period.
func (h *Handler) GetActiveProgram(w http.ResponseWriter, r *http.Request) {
	program, err := h.Store.ActiveProgram(r.Context())
	if err != nil {
		if errors.Is(err, ledger.ErrProgramUnavailable) {
			writeError(w, http.StatusNotFound, "No active program period", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load program", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramDTO(*program))
}

// GetProgram returns the program period for a year.
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid program year", err)
		return
	}

	program, err := h.Store.ProgramForYear(r.Context(), year)
	if err != nil {
		if errors.Is(err, ledger.ErrProgramUnavailable) {
			writeError(w, http.StatusNotFound, "No program for that year", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load program", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramDTO(*program))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetSummaries returns the sorted, paginated per-participant totals report.
// Query parameters: year, sort_column, sort_order, page.
func (h *Handler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	year, ok := h.resolveYear(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	key := ledger.SortByTotalPaid
	switch q.Get("sort_column") {
	case "participant":
		key = ledger.SortByParticipant
	case "balance_due":
		key = ledger.SortByBalanceDue
	}

	order := ledger.Descending
	if q.Get("sort_order") == "asc" {
		order = ledger.Ascending
	}

	page, _ := strconv.Atoi(q.Get("page"))

	summary, err := h.Reports.Summaries(r.Context(), year, key, order, page, ledger.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryPageDTO(summary))
}

// GetRecentPayments returns the newest ledger records for a year.
func (h *Handler) GetRecentPayments(w http.ResponseWriter, r *http.Request) {
	year, ok := h.resolveYear(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.Reports.RecentPayments(r.Context(), year, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(recs))
}

// GetZeroBalance returns every participant whose balance due truncates to
// zero whole dollars.
func (h *Handler) GetZeroBalance(w http.ResponseWriter, r *http.Request) {
	year, ok := h.resolveYear(w, r)
	if !ok {
		return
	}

	zero, err := h.Engine.ZeroBalanceParticipants(r.Context(), h.Store, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balances", err)
		return
	}

	dtos := make([]ParticipantDTO, len(zero))
	for i, p := range zero {
		dtos[i] = toParticipantDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReportRuns returns the nightly report history, newest first.
func (h *Handler) GetReportRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Store.ReportRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load report runs", err)
		return
	}

	dtos := make([]ReportRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toReportRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// callbackFields merges query and form parameters. The processor delivers
// the callback as GET query parameters or a POST form depending on its
// configuration; both spell the same fields.
func callbackFields(r *http.Request) (url.Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.Form, nil
}

// resolveParticipant loads a participant by id string, writing the error
// response itself when it fails.
func (h *Handler) resolveParticipant(w http.ResponseWriter, r *http.Request, idStr string) (*ledger.Participant, bool) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid participant_id", err)
		return nil, false
	}

	participant, err := h.Store.ParticipantByID(r.Context(), ledger.ParticipantID(id))
	if err != nil {
		if errors.Is(err, ledger.ErrParticipantNotFound) {
			writeError(w, http.StatusNotFound, "Participant not found", nil)
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to load participant", err)
		return nil, false
	}
	return participant, true
}

// yearParam reads the optional year query parameter; 0 means the active
// program.
func yearParam(r *http.Request) int {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	return year
}

// resolveYear turns the optional year parameter into a concrete program
// year, defaulting to the active program's.
func (h *Handler) resolveYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	if year := yearParam(r); year != 0 {
		return year, true
	}
	program, err := h.Store.ActiveProgram(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "No active program period", err)
		return 0, false
	}
	return program.ProgramYear, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
