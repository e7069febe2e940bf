// Package handler is the HTTP boundary of the engine. It decodes requests, calls
// the services and maps their errors to status codes; it owns no business rules.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/set-night/loyaltyledger/internal/metrics"
	"github.com/set-night/loyaltyledger/internal/middleware"
	"github.com/set-night/loyaltyledger/internal/service"
)

// Handler holds all dependencies needed by the route handlers.
type Handler struct {
	loyalty        *service.LoyaltyService
	accounts       *service.AccountService
	redemptions    *service.RedemptionService
	ledger         *service.Ledger
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	requestTimeout time.Duration
	ping           func(*http.Request) error
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Loyalty        *service.LoyaltyService
	Accounts       *service.AccountService
	Redemptions    *service.RedemptionService
	Ledger         *service.Ledger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	// Ping checks storage for /healthz; nil always reports healthy.
	Ping func(*http.Request) error
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		loyalty:        deps.Loyalty,
		accounts:       deps.Accounts,
		redemptions:    deps.Redemptions,
		ledger:         deps.Ledger,
		metrics:        deps.Metrics,
		gatherer:       deps.Gatherer,
		requestTimeout: deps.RequestTimeout,
		ping:           deps.Ping,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(h.metrics))

	r.Get("/healthz", h.Health)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if h.requestTimeout > 0 {
			r.Use(chimw.Timeout(h.requestTimeout))
		}

		r.Post("/orders/completed", h.OrderCompleted)
		r.Get("/tenants/{tenantId}/users/{userId}/account", h.GetAccountByUser)

		r.Route("/accounts/{accountId}", func(r chi.Router) {
			r.Use(middleware.AccountLoader(h.accounts, writeError))

			r.Get("/", h.GetAccount)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/balance/verify", h.VerifyBalance)
			r.Get("/rewards", h.AvailableRewards)
			r.Get("/redemptions", h.ListRedemptions)
			r.Post("/redemptions", h.Redeem)
			r.Post("/birthday", h.Birthday)
			r.Post("/referrals", h.Referral)
			r.Put("/notifications", h.UpdateNotifications)
			r.Post("/deactivate", h.Deactivate)
			r.Post("/reactivate", h.Reactivate)
		})

		r.Route("/redemptions/{redemptionId}", func(r chi.Router) {
			r.Post("/approve", h.ApproveRedemption)
			r.Post("/deny", h.DenyRedemption)
			r.Post("/fulfill", h.FulfillRedemption)
		})
	})
	return r
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
