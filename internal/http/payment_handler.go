package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/service"
)

// PaymentAPI receives payment provider callbacks.
type PaymentAPI interface {
	ApplyPaymentUpdate(ctx context.Context, in service.PaymentUpdate) (*domain.Order, error)
}

type PaymentHandler struct {
	payments PaymentAPI
	timeout  time.Duration
	logger   *slog.Logger
}

func NewPaymentHandler(payments PaymentAPI, timeout time.Duration, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, timeout: timeout, logger: logger}
}

// POST /api/v1/payments/callback
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req service.PaymentUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.payments.ApplyPaymentUpdate(ctx, req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(ctx, "payment callback applied",
		"order_id", order.ID, "payment_status", order.PaymentStatus)
	respondJSON(w, http.StatusOK, order)
}
