package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/service"
	"github.com/go-chi/chi/v5"
)

type CheckoutAPI interface {
	ValidateCheckout(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error)
	CreateCheckoutSession(ctx context.Context, userID string, in service.CreateCheckoutInput) (*domain.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error)
	ApplyCoupon(ctx context.Context, userID, sessionID, code string) (*domain.CheckoutSession, error)
	RemoveCoupon(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error)
	GetDeliveryCharges(ctx context.Context, userID, address string) (*domain.DeliveryQuote, error)
	ConfirmCheckout(ctx context.Context, userID, sessionID string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutAPI
	timeout  time.Duration
	logger   *slog.Logger
}

func NewCheckoutHandler(checkout CheckoutAPI, timeout time.Duration, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, timeout: timeout, logger: logger}
}

type ApplyCouponRequestDTO struct {
	CouponCode string `json:"coupon_code" validate:"required,max=64"`
}

// POST /api/v1/checkout/validate
func (h *CheckoutHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	snapshot, err := h.checkout.ValidateCheckout(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req service.CreateCheckoutInput
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.checkout.CreateCheckoutSession(ctx, id.UserID, req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// GET /api/v1/checkout/{checkout_id}
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	session, err := h.checkout.GetCheckoutSession(ctx, id.UserID, chi.URLParam(r, "checkout_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// POST /api/v1/checkout/{checkout_id}/apply-coupon
func (h *CheckoutHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req ApplyCouponRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.checkout.ApplyCoupon(ctx, id.UserID, chi.URLParam(r, "checkout_id"), req.CouponCode)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// DELETE /api/v1/checkout/{checkout_id}/remove-coupon
func (h *CheckoutHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	session, err := h.checkout.RemoveCoupon(ctx, id.UserID, chi.URLParam(r, "checkout_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GET /api/v1/checkout/delivery-charges?address=...
func (h *CheckoutHandler) DeliveryCharges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	quote, err := h.checkout.GetDeliveryCharges(ctx, id.UserID, r.URL.Query().Get("address"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// POST /api/v1/checkout/{checkout_id}/confirm
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	order, err := h.checkout.ConfirmCheckout(ctx, id.UserID, chi.URLParam(r, "checkout_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}
