package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/middleware"
)

// GetAccountByUser handles GET /v1/tenants/{tenantId}/users/{userId}/account.
func (h *Handler) GetAccountByUser(w http.ResponseWriter, r *http.Request) {
	acc, err := h.loyalty.GetAccount(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "tenantId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

// GetAccount handles GET /v1/accounts/{accountId}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAccount(middleware.GetAccount(r.Context())))
}

// ListTransactions handles GET /v1/accounts/{accountId}/transactions?limit=&offset=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}
	acc := middleware.GetAccount(r.Context())
	txns, err := h.loyalty.History(r.Context(), acc.ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransaction(&txns[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// VerifyBalance handles GET /v1/accounts/{accountId}/balance/verify.
func (h *Handler) VerifyBalance(w http.ResponseWriter, r *http.Request) {
	check, err := h.ledger.VerifyBalance(r.Context(), middleware.GetAccount(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stored":     check.Stored,
		"ledger":     check.Ledger,
		"consistent": check.Consistent,
	})
}

// AvailableRewards handles GET /v1/accounts/{accountId}/rewards.
func (h *Handler) AvailableRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.loyalty.AvailableRewards(r.Context(), middleware.GetAccount(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]rewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		out = append(out, toReward(rw))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": out})
}

type birthdayRequest struct {
	Year int `json:"year"`
}

// Birthday handles POST /v1/accounts/{accountId}/birthday.
func (h *Handler) Birthday(w http.ResponseWriter, r *http.Request) {
	var req birthdayRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Year <= 0 {
		writeError(w, fmtBadRequest("year is required"))
		return
	}
	txn, err := h.loyalty.OnBirthday(r.Context(), middleware.GetAccount(r.Context()).ID, req.Year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransaction(txn))
}

type referralRequest struct {
	ReferredUserID string `json:"referredUserId"`
}

// Referral handles POST /v1/accounts/{accountId}/referrals.
func (h *Handler) Referral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	txn, err := h.loyalty.OnReferral(r.Context(), middleware.GetAccount(r.Context()).ID, req.ReferredUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransaction(txn))
}

// UpdateNotifications handles PUT /v1/accounts/{accountId}/notifications.
func (h *Handler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var prefs domain.NotificationPreferences
	if err := decode(r, &prefs); err != nil {
		writeError(w, err)
		return
	}
	acc, err := h.accounts.UpdateNotificationPreferences(r.Context(), middleware.GetAccount(r.Context()).ID, prefs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

// Deactivate handles POST /v1/accounts/{accountId}/deactivate.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.Deactivate(r.Context(), middleware.GetAccount(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

// Reactivate handles POST /v1/accounts/{accountId}/reactivate.
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.Reactivate(r.Context(), middleware.GetAccount(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmtBadRequest("invalid %s", key)
	}
	return n, nil
}
