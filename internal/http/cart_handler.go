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

// CartAPI is the cart aggregate as the HTTP layer uses it.
type CartAPI interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, in service.AddItemInput) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
	ValidateCart(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error)
	SetDeliveryAddress(ctx context.Context, userID, address string) (*domain.Cart, error)
	SetNotes(ctx context.Context, userID, notes string) (*domain.Cart, error)
	GetSummary(ctx context.Context, userID string) (*domain.CartSummary, error)
}

type CartHandler struct {
	carts   CartAPI
	timeout time.Duration
	logger  *slog.Logger
}

func NewCartHandler(carts CartAPI, timeout time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout, logger: logger}
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"min=1,max=99"`
}

type DeliveryAddressRequestDTO struct {
	DeliveryAddress string `json:"delivery_address" validate:"max=500"`
}

type NotesRequestDTO struct {
	Notes string `json:"notes" validate:"max=500"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.GetCart(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req service.AddItemInput
	if !decodeJSON(w, r, &req) {
		return
	}
	cart, err := h.carts.AddItem(ctx, id.UserID, req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

// PATCH /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "item_id")
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	cart, err := h.carts.UpdateItemQuantity(ctx, id.UserID, itemID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.RemoveItem(ctx, id.UserID, chi.URLParam(r, "item_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.ClearCart(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// POST /api/v1/cart/validate
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	snapshot, err := h.carts.ValidateCart(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// PATCH /api/v1/cart/address
func (h *CartHandler) SetDeliveryAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req DeliveryAddressRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	cart, err := h.carts.SetDeliveryAddress(ctx, id.UserID, req.DeliveryAddress)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// PATCH /api/v1/cart/notes
func (h *CartHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req NotesRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	cart, err := h.carts.SetNotes(ctx, id.UserID, req.Notes)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// GET /api/v1/cart/summary
func (h *CartHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	summary, err := h.carts.GetSummary(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
	}
	return id, ok
}
