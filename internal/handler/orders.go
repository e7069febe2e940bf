package handler

import (
	"net/http"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/shopspring/decimal"
)

type orderCompletedRequest struct {
	OrderID     string          `json:"orderId"`
	TenantID    string          `json:"tenantId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// OrderCompleted handles POST /v1/orders/completed. A replayed order answers 200
// with the original award and replayed=true.
func (h *Handler) OrderCompleted(w http.ResponseWriter, r *http.Request) {
	var req orderCompletedRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.loyalty.OnOrderCompleted(r.Context(), domain.Order{
		ID:          req.OrderID,
		TenantID:    req.TenantID,
		CustomerID:  req.CustomerID,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toAward(res))
}
