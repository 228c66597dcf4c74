/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /make_payment, /payment_receipt, /payment_show
                        Participant payment flow (processor-facing)
  /api/participants/*   Participant registry
  /api/programs/*       Program period configuration (read-only)
  /api/admin/*          Administrative reports

SECURITY NOTE:
  Authentication is terminated upstream (reverse proxy). The payment
  callback endpoints are public by contract.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Payment flow. The processor may call back with GET or POST.
	r.Get("/make_payment", h.MakePayment)
	r.Post("/make_payment", h.MakePayment)
	r.Get("/payment_receipt", h.PaymentReceipt)
	r.Post("/payment_receipt", h.PaymentReceipt)
	r.Get("/payment_show", h.PaymentShow)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/participants", func(r chi.Router) {
			r.Get("/", h.ListParticipants)
			r.Post("/", h.CreateParticipant)
			r.Get("/{id}", h.GetParticipant)
		})

		r.Route("/programs", func(r chi.Router) {
			r.Get("/active", h.GetActiveProgram)
			r.Get("/{year}", h.GetProgram)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/summaries", h.GetSummaries)
			r.Get("/payments/recent", h.GetRecentPayments)
			r.Get("/zero_balance", h.GetZeroBalance)
			r.Get("/report_runs", h.GetReportRuns)
		})
	})

	return r
}
