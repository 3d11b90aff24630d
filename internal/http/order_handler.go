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

type OrderAPI interface {
	ListOrders(ctx context.Context, userID string, role domain.Role, filter domain.OrderFilter) ([]*domain.Order, error)
	GetOrder(ctx context.Context, orderID, userID string, role domain.Role) (*domain.Order, error)
	GetTracking(ctx context.Context, orderID, userID string) (*service.Tracking, error)
	GetInvoice(ctx context.Context, orderID, userID string, role domain.Role) (*service.Invoice, error)
	CancelOrder(ctx context.Context, orderID, userID, reason string) (*domain.Order, error)
	RateOrder(ctx context.Context, orderID, userID string, rating int, review string) (*domain.Order, error)
	Reorder(ctx context.Context, orderID, userID string) (*service.ReorderResult, error)
	GetReceipt(ctx context.Context, orderID string) (*service.Receipt, error)
	AddInternalNote(ctx context.Context, orderID, adminID, note string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID, to, adminID, notes string) (*domain.Order, error)
	AssignDriver(ctx context.Context, orderID, driverID string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderAPI
	timeout time.Duration
	logger  *slog.Logger
}

func NewOrdersHandler(orders OrderAPI, timeout time.Duration, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout, logger: logger}
}

type CancelOrderRequestDTO struct {
	Reason string `json:"reason" validate:"max=500"`
}

type RateOrderRequestDTO struct {
	Rating int    `json:"rating" validate:"min=1,max=5"`
	Review string `json:"review" validate:"max=1000"`
}

type InternalNoteRequestDTO struct {
	Note string `json:"note" validate:"required,max=1000"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=500"`
}

type AssignDriverRequestDTO struct {
	DriverID string `json:"driver_id" validate:"required"`
}

// GET /api/v1/orders?status=&store_id=&from=&to=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := domain.OrderFilter{
		Status:  domain.OrderStatus(q.Get("status")),
		StoreID: q.Get("store_id"),
	}
	if id.IsAdmin() {
		filter.UserID = q.Get("user_id")
	}
	var err error
	if filter.From, err = parseDateParam(q.Get("from"), false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD or RFC 3339")
		return
	}
	if filter.To, err = parseDateParam(q.Get("to"), true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD or RFC 3339")
		return
	}

	orders, err := h.orders.ListOrders(ctx, id.UserID, id.Role, filter)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// parseDateParam accepts a calendar date or a full timestamp. A bare date used
// as the end of a range covers the whole day.
func parseDateParam(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "order_id"), id.UserID, id.Role)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/orders/{order_id}/tracking
func (h *OrdersHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	tracking, err := h.orders.GetTracking(ctx, chi.URLParam(r, "order_id"), id.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tracking)
}

// GET /api/v1/orders/{order_id}/invoice
func (h *OrdersHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	invoice, err := h.orders.GetInvoice(ctx, chi.URLParam(r, "order_id"), id.UserID, id.Role)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req CancelOrderRequestDTO
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.CancelOrder(ctx, chi.URLParam(r, "order_id"), id.UserID, req.Reason)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/rate
func (h *OrdersHandler) Rate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req RateOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.RateOrder(ctx, chi.URLParam(r, "order_id"), id.UserID, req.Rating, req.Review)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/reorder
func (h *OrdersHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	result, err := h.orders.Reorder(ctx, chi.URLParam(r, "order_id"), id.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GET /api/v1/orders/{order_id}/receipt (admin)
func (h *OrdersHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	receipt, err := h.orders.GetReceipt(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

// POST /api/v1/orders/{order_id}/notes (admin)
func (h *OrdersHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req InternalNoteRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.AddInternalNote(ctx, chi.URLParam(r, "order_id"), id.UserID, req.Note)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// PATCH /api/v1/orders/{order_id}/status (admin)
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "order_id"), req.Status, id.UserID, req.Notes)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/orders/{order_id}/assign (admin)
func (h *OrdersHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AssignDriverRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.AssignDriver(ctx, chi.URLParam(r, "order_id"), req.DriverID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
