package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelp/payment-engine/api"
	"github.com/nelp/payment-engine/ledger"
	"github.com/nelp/payment-engine/processor"
	"github.com/nelp/payment-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	creds := processor.CredentialSet{
		Mode: processor.ModeProduction,
		Production: processor.Credentials{
			Key:     "prod-key",
			BaseURL: "https://processor.example.com/pay",
		},
		OrderType:        "program-fees",
		OrderDescription: "Program participation fee",
		CallbackURL:      "https://payments.example.org/payment_receipt",
		RetriesAllowed:   3,
	}

	handler := api.NewHandler(store, creds, log)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, store
}

// noRedirect returns a client that surfaces redirects instead of following
// them, so tests can assert on Location headers.
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func seedProgram(t *testing.T, store *sqlite.Store, allowPayments bool) {
	t.Helper()
	require.NoError(t, store.SaveProgram(context.Background(), ledger.ProgramPeriod{
		ProgramYear:         2024,
		ApplicationFee:      500,
		ProgramFee:          1000,
		Active:              true,
		OpensAt:             time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		ClosesAt:            time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC),
		AllowPayments:       allowPayments,
		PaymentInstructions: "Pay online.",
	}))
}

func seedParticipant(t *testing.T, store *sqlite.Store, email string) ledger.Participant {
	t.Helper()
	p, err := store.SaveParticipant(context.Background(), email)
	require.NoError(t, err)
	return p
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// =============================================================================
// PAYMENT FLOW
// =============================================================================

func TestMakePayment_RedirectsToSignedProcessorURL(t *testing.T) {
	// GIVEN: An open program accepting payments
	// WHEN: A participant initiates a payment
	// THEN: They are redirected to the processor with a signed URL

	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "jane.doe@example.org")

	resp, err := noRedirect().Get(srv.URL + "/make_payment?participant_id=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://processor.example.com/pay?"))
	assert.Contains(t, loc, "orderNumber=jane.doe-1")
	// Default amount is the application fee in cents.
	assert.Contains(t, loc, "amountDue=50000")
	assert.Contains(t, loc, "hash=")
	assert.NotContains(t, loc, "prod-key")
}

func TestMakePayment_ExplicitAmountInDollars(t *testing.T) {
	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "jane.doe@example.org")

	resp, err := noRedirect().Get(srv.URL + "/make_payment?participant_id=1&amount=1000")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "amountDue=100000")
}

func TestMakePayment_ForbiddenWhenPaymentsClosed(t *testing.T) {
	srv, store := newTestServer(t)
	seedProgram(t, store, false)
	seedParticipant(t, store, "jane.doe@example.org")

	resp, err := noRedirect().Get(srv.URL + "/make_payment?participant_id=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPaymentReceipt_RecordsAndRedirects(t *testing.T) {
	// GIVEN: A registered participant and an active program
	// WHEN: The processor delivers a callback, then redelivers it
	// THEN: The first delivery records and carries the success notice,
	//       the redelivery redirects without it, and one record exists

	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "jane.doe@example.org")

	fields := url.Values{
		"transactionType":        {"sale"},
		"transactionStatus":      {"1"},
		"transactionId":          {"tx-500"},
		"transactionTotalAmount": {"50000"},
		"transactionDate":        {"2024-03-15"},
		"orderNumber":            {"jane.doe-1"},
	}

	resp, err := noRedirect().Get(srv.URL + "/payment_receipt?" + fields.Encode())
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.Contains(t, loc, "/payment_show?participant_id=1")
	assert.Contains(t, loc, "notice=payment_recorded")

	// Redelivery: POST form this time, same transaction id.
	resp, err = noRedirect().Post(srv.URL+"/payment_receipt",
		"application/x-www-form-urlencoded", bytes.NewBufferString(fields.Encode()))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.NotContains(t, resp.Header.Get("Location"), "notice=")

	recs, err := store.ByParticipant(context.Background(), 1, 2024)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestPaymentReceipt_MissingTransactionID(t *testing.T) {
	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "jane.doe@example.org")

	resp, err := noRedirect().Get(srv.URL + "/payment_receipt?orderNumber=jane.doe-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaymentShow_SummaryReflectsLedger(t *testing.T) {
	// GIVEN: A participant who paid 500.00 of a 1500.00 program
	// WHEN: Viewing the payment summary
	// THEN: Totals, balance, and history are derived from the ledger

	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "jane.doe@example.org")

	require.NoError(t, store.Append(context.Background(), ledger.PaymentRecord{
		ID: "rec-1", TransactionID: "tx-1", ParticipantID: 1, ProgramYear: 2024,
		StatusCode: "1", Amount: 50000, RawAmount: "50000",
		RecordedAt: time.Now().UTC(),
	}))

	resp, err := http.Get(srv.URL + "/payment_show?participant_id=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary struct {
		ProgramYear     int    `json:"program_year"`
		TotalPaid       string `json:"total_paid"`
		BalanceDue      string `json:"balance_due"`
		PaidInFull      bool   `json:"paid_in_full"`
		PaymentsAllowed bool   `json:"payments_allowed"`
		Payments        []struct {
			TransactionID string `json:"transaction_id"`
			Amount        string `json:"amount"`
		} `json:"payments"`
	}
	decode(t, resp, &summary)

	assert.Equal(t, 2024, summary.ProgramYear)
	assert.Equal(t, "500.00", summary.TotalPaid)
	assert.Equal(t, "1000.00", summary.BalanceDue)
	assert.False(t, summary.PaidInFull)
	assert.True(t, summary.PaymentsAllowed)
	require.Len(t, summary.Payments, 1)
	assert.Equal(t, "500.00", summary.Payments[0].Amount)
}

// =============================================================================
// PARTICIPANTS AND PROGRAMS
// =============================================================================

func TestCreateParticipant_AndFetch(t *testing.T) {
	srv, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"email":"Sam@Example.org"}`)
	resp, err := http.Post(srv.URL+"/api/participants", "application/json", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	decode(t, resp, &created)
	assert.Equal(t, "sam@example.org", created.Email, "email is normalized")
	require.NotZero(t, created.ID)

	resp, err = http.Get(srv.URL + "/api/participants/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/participants/999")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetActiveProgram(t *testing.T) {
	srv, store := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/programs/active")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	seedProgram(t, store, true)

	resp, err = http.Get(srv.URL + "/api/programs/active")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var program struct {
		ProgramYear    int    `json:"program_year"`
		TotalCost      string `json:"total_cost"`
		TotalCostCents int64  `json:"total_cost_cents"`
	}
	decode(t, resp, &program)
	assert.Equal(t, 2024, program.ProgramYear)
	assert.Equal(t, "1500.00", program.TotalCost)
	assert.Equal(t, int64(150000), program.TotalCostCents)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdminSummaries_SortedAndPaged(t *testing.T) {
	// GIVEN: Two participants with different totals
	// WHEN: Requesting the summaries sorted by total paid descending
	// THEN: The bigger payer comes first and the counts are filled in

	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "alice@example.org")
	seedParticipant(t, store, "bob@example.org")
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, ledger.PaymentRecord{
		ID: "rec-1", TransactionID: "tx-1", ParticipantID: 1, ProgramYear: 2024,
		StatusCode: "1", Amount: 150000, RecordedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.Append(ctx, ledger.PaymentRecord{
		ID: "rec-2", TransactionID: "tx-2", ParticipantID: 2, ProgramYear: 2024,
		StatusCode: "1", Amount: 25000, RecordedAt: time.Now().UTC(),
	}))

	resp, err := http.Get(srv.URL + "/api/admin/summaries?sort_column=total_paid&sort_order=desc")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Rows []struct {
			Email      string `json:"email"`
			TotalPaid  string `json:"total_paid"`
			PaidInFull bool   `json:"paid_in_full"`
		} `json:"rows"`
		PaidInFull  int `json:"paid_in_full"`
		Outstanding int `json:"outstanding"`
	}
	decode(t, resp, &page)

	require.Len(t, page.Rows, 2)
	assert.Equal(t, "alice@example.org", page.Rows[0].Email)
	assert.Equal(t, "1500.00", page.Rows[0].TotalPaid)
	assert.True(t, page.Rows[0].PaidInFull)
	assert.Equal(t, 1, page.PaidInFull)
	assert.Equal(t, 1, page.Outstanding)
}

func TestAdminZeroBalance(t *testing.T) {
	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "alice@example.org")
	seedParticipant(t, store, "bob@example.org")

	require.NoError(t, store.Append(context.Background(), ledger.PaymentRecord{
		ID: "rec-1", TransactionID: "tx-1", ParticipantID: 2, ProgramYear: 2024,
		StatusCode: "1", Amount: 150000, RecordedAt: time.Now().UTC(),
	}))

	resp, err := http.Get(srv.URL + "/api/admin/zero_balance")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var zero []struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	decode(t, resp, &zero)
	require.Len(t, zero, 1)
	assert.Equal(t, "bob@example.org", zero[0].Email)
}

func TestAdminRecentPayments(t *testing.T) {
	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "alice@example.org")
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, ledger.PaymentRecord{
		ID: "rec-1", TransactionID: "tx-1", ParticipantID: 1, ProgramYear: 2024,
		StatusCode: "1", Amount: 100, RecordedAt: base,
	}))
	require.NoError(t, store.Append(ctx, ledger.PaymentRecord{
		ID: "rec-2", TransactionID: "tx-2", ParticipantID: 1, ProgramYear: 2024,
		StatusCode: "1", Amount: 200, RecordedAt: base.Add(time.Hour),
	}))

	resp, err := http.Get(srv.URL + "/api/admin/payments/recent?limit=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []struct {
		TransactionID string `json:"transaction_id"`
	}
	decode(t, resp, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, "tx-2", recs[0].TransactionID)
}

// =============================================================================
// REPORT SCHEDULER
// =============================================================================

func TestReportScheduler_RunNow_RecordsCounts(t *testing.T) {
	// GIVEN: Two participants, one fully paid
	// WHEN: Running the paid-in-full report
	// THEN: A report run row records the counts and shows up on the API

	srv, store := newTestServer(t)
	seedProgram(t, store, true)
	seedParticipant(t, store, "alice@example.org")
	seedParticipant(t, store, "bob@example.org")

	require.NoError(t, store.Append(context.Background(), ledger.PaymentRecord{
		ID: "rec-1", TransactionID: "tx-1", ParticipantID: 1, ProgramYear: 2024,
		StatusCode: "1", Amount: 150000, RecordedAt: time.Now().UTC(),
	}))

	log := logrus.New()
	log.SetOutput(io.Discard)
	l := ledger.NewLedger(store)
	scheduler := api.NewReportScheduler(store, ledger.NewEngine(l, store), "0 2 * * *", log)
	scheduler.RunNow()

	resp, err := http.Get(srv.URL + "/api/admin/report_runs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []struct {
		ProgramYear  int `json:"program_year"`
		Participants int `json:"participants"`
		PaidInFull   int `json:"paid_in_full"`
		Outstanding  int `json:"outstanding"`
	}
	decode(t, resp, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, 2024, runs[0].ProgramYear)
	assert.Equal(t, 2, runs[0].Participants)
	assert.Equal(t, 1, runs[0].PaidInFull)
	assert.Equal(t, 1, runs[0].Outstanding)
}
