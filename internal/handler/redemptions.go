package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/middleware"
	"github.com/set-night/loyaltyledger/internal/service"
)

type redeemRequest struct {
	RewardID string  `json:"rewardId"`
	OrderID  *string `json:"orderId,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// Redeem handles POST /v1/accounts/{accountId}/redemptions.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rewardID, err := uuid.Parse(req.RewardID)
	if err != nil {
		writeError(w, domain.ErrRewardNotFound)
		return
	}
	red, err := h.redemptions.Redeem(r.Context(), middleware.GetAccount(r.Context()).ID, rewardID, service.RedeemOptions{
		OrderID: req.OrderID,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRedemption(red))
}

// ListRedemptions handles GET /v1/accounts/{accountId}/redemptions.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.loyalty.Redemptions(r.Context(), middleware.GetAccount(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]redemptionResponse, 0, len(list))
	for i := range list {
		out = append(out, toRedemption(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"redemptions": out})
}

// ApproveRedemption handles POST /v1/redemptions/{redemptionId}/approve.
func (h *Handler) ApproveRedemption(w http.ResponseWriter, r *http.Request) {
	h.resolveRedemption(w, r, h.redemptions.Approve)
}

// FulfillRedemption handles POST /v1/redemptions/{redemptionId}/fulfill.
func (h *Handler) FulfillRedemption(w http.ResponseWriter, r *http.Request) {
	h.resolveRedemption(w, r, h.redemptions.Fulfill)
}

type denyRequest struct {
	Reason string `json:"reason"`
}

// DenyRedemption handles POST /v1/redemptions/{redemptionId}/deny.
func (h *Handler) DenyRedemption(w http.ResponseWriter, r *http.Request) {
	var req denyRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	h.resolveRedemption(w, r, func(ctx context.Context, id uuid.UUID) (*domain.Redemption, error) {
		return h.redemptions.Deny(ctx, id, req.Reason)
	})
}

func (h *Handler) resolveRedemption(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID) (*domain.Redemption, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "redemptionId"))
	if err != nil {
		writeError(w, domain.ErrRedemptionNotFound)
		return
	}
	red, err := apply(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemption(red))
}

func fmtBadRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
