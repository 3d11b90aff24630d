package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
	"github.com/fjod/go_food/internal/telemetry"
	"github.com/shopspring/decimal"
)

// ChangedByPayment marks history entries written by the payment callback.
const ChangedByPayment = "payment"

// TransitionInput describes one status change. CancelledBy and Reason only
// apply when To is cancelled.
type TransitionInput struct {
	OrderID     string
	To          domain.OrderStatus
	ChangedBy   string
	Notes       string
	CancelledBy domain.CancelledBy
	Reason      string
}

// PaymentUpdate is a payment provider callback for one order.
type PaymentUpdate struct {
	OrderID   string               `json:"order_id" validate:"required"`
	Status    domain.PaymentStatus `json:"status" validate:"required,oneof=completed failed refunded"`
	Reference string               `json:"reference" validate:"max=128"`
}

type Tracking struct {
	OrderID            string                      `json:"order_id"`
	OrderNumber        string                      `json:"order_number"`
	Status             domain.OrderStatus          `json:"status"`
	EstimatedReadyTime *time.Time                  `json:"estimated_ready_time,omitempty"`
	ActualReadyTime    *time.Time                  `json:"actual_ready_time,omitempty"`
	PickedUpAt         *time.Time                  `json:"picked_up_at,omitempty"`
	History            []domain.OrderStatusHistory `json:"history"`
}

type InvoiceStore struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Invoice is the structured invoice of an order. Rendering is up to the client.
type Invoice struct {
	InvoiceNumber    string               `json:"invoice_number"`
	OrderID          string               `json:"order_id"`
	OrderNumber      string               `json:"order_number"`
	IssuedAt         time.Time            `json:"issued_at"`
	Store            InvoiceStore         `json:"store"`
	CustomerID       string               `json:"customer_id"`
	DeliveryAddress  string               `json:"delivery_address,omitempty"`
	Items            []domain.OrderItem   `json:"items"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	Tax              decimal.Decimal      `json:"tax"`
	DeliveryFee      decimal.Decimal      `json:"delivery_fee"`
	Discount         decimal.Decimal      `json:"discount"`
	Total            decimal.Decimal      `json:"total"`
	CouponCode       string               `json:"coupon_code,omitempty"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	PaymentStatus    domain.PaymentStatus `json:"payment_status"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	Status           domain.OrderStatus   `json:"status"`
}

// Receipt is the admin view of an order with its full history.
type Receipt struct {
	Order   *domain.Order               `json:"order"`
	Store   *domain.Store               `json:"store,omitempty"`
	History []domain.OrderStatusHistory `json:"history"`
}

// CartMerger is the part of the cart aggregate reorder writes through.
type CartMerger interface {
	MergeItems(ctx context.Context, userID, storeID string, items []domain.CartItem) (*domain.Cart, error)
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type OrderService struct {
	orders   repository.OrderRepository
	history  repository.HistoryRepository
	outbox   repository.OutboxRepository
	catalog  repository.CatalogRepository
	tx       repository.Transactor
	carts    CartMerger
	resolver lineResolver
	settings Settings
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// OrderDeps groups the stores a status change writes in one transaction.
type OrderDeps struct {
	Orders  repository.OrderRepository
	History repository.HistoryRepository
	Outbox  repository.OutboxRepository
	Catalog repository.CatalogRepository
	Tx      repository.Transactor
}

func NewOrderService(deps OrderDeps, carts CartMerger, settings Settings, logger *slog.Logger, metrics *telemetry.Metrics) *OrderService {
	return &OrderService{
		orders:   deps.Orders,
		history:  deps.History,
		outbox:   deps.Outbox,
		catalog:  deps.Catalog,
		tx:       deps.Tx,
		carts:    carts,
		resolver: lineResolver{catalog: deps.Catalog},
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// TransitionStatus is the only path that changes an order's status. The order is
// written only if it still holds the status that was read, together with the
// history entry and the outbox event.
func (s *OrderService) TransitionStatus(ctx context.Context, in TransitionInput) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, in)
}

// UpdateStatus is the store/admin entry point.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, to, adminID, notes string) (*domain.Order, error) {
	status, ok := domain.ParseOrderStatus(to)
	if !ok {
		return nil, domain.BadRequest("unknown order status %q", to)
	}
	in := TransitionInput{OrderID: orderID, To: status, ChangedBy: adminID, Notes: notes}
	if status == domain.OrderStatusCancelled {
		in.CancelledBy = domain.CancelledByAdmin
		in.Reason = notes
	}
	return s.TransitionStatus(ctx, in)
}

// CancelOrder lets the owner cancel within the cancellation window.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID, reason string) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, domain.Forbidden("you do not have permission to cancel this order")
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, domain.InvalidState("order is already cancelled")
	}
	if !order.Status.IsCancellable() {
		return nil, domain.InvalidState("order cannot be cancelled in status %s", order.Status)
	}
	if s.now().Sub(order.CreatedAt) > s.settings.CancellationWindow {
		return nil, domain.InvalidState("order can only be cancelled within %d minutes of placement",
			int(s.settings.CancellationWindow.Minutes()))
	}

	reason = strings.TrimSpace(reason)
	notes := "Cancelled by customer"
	if reason != "" {
		notes += ": " + reason
	}
	return s.transition(ctx, order, TransitionInput{
		OrderID:     orderID,
		To:          domain.OrderStatusCancelled,
		ChangedBy:   userID,
		Notes:       notes,
		CancelledBy: domain.CancelledByCustomer,
		Reason:      reason,
	})
}

// RateOrder records the one rating a completed order may receive.
func (s *OrderService) RateOrder(ctx context.Context, orderID, userID string, rating int, review string) (*domain.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.BadRequest("rating must be between 1 and 5")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, domain.Forbidden("you do not have permission to rate this order")
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, domain.InvalidState("only completed orders can be rated")
	}
	if order.Rating != nil {
		return nil, domain.InvalidState("order has already been rated")
	}

	r := domain.Rating{Rating: rating, Review: strings.TrimSpace(review), RatedAt: s.now()}
	if err := s.orders.SetRating(ctx, orderID, r); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, domain.InvalidState("order has already been rated")
		}
		return nil, fmt.Errorf("rate order: %w", err)
	}
	order.Rating = &r
	s.logger.InfoContext(ctx, "order rated", "order_id", orderID, "rating", rating)
	return order, nil
}

// ApplyPaymentUpdate records a payment outcome. A completed payment confirms a
// pending order but never moves an order that has already advanced.
func (s *OrderService) ApplyPaymentUpdate(ctx context.Context, in PaymentUpdate) (*domain.Order, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		order, err := s.loadOrder(ctx, in.OrderID)
		if err != nil {
			return nil, err
		}
		next, changed, err := s.applyPayment(ctx, order, in)
		if err != nil || !changed {
			return next, err
		}

		err = s.commit(ctx, next, order.Status, ChangedByPayment, paymentNote(in))
		if errors.Is(err, repository.ErrStatusConflict) {
			s.logger.DebugContext(ctx, "payment update lost a status race", "order_id", in.OrderID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("apply payment update: %w", err)
		}
		s.logger.InfoContext(ctx, "payment update applied",
			"order_id", next.ID, "payment_status", next.PaymentStatus, "status", next.Status)
		if next.Status != order.Status {
			s.metrics.StatusChanged(ctx, order.Status.String(), next.Status.String())
		}
		return next, nil
	}
	return nil, domain.InvalidState("order was modified concurrently, please retry")
}

func (s *OrderService) applyPayment(ctx context.Context, order *domain.Order, in PaymentUpdate) (*domain.Order, bool, error) {
	now := s.now()
	next := *order
	next.UpdatedAt = now
	if in.Reference != "" {
		next.PaymentReference = in.Reference
	}

	switch in.Status {
	case domain.PaymentStatusCompleted:
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			return order, false, nil
		}
		next.PaymentStatus = domain.PaymentStatusCompleted
		switch order.Status {
		case domain.OrderStatusPendingPayment:
			s.applySideFields(ctx, &next, TransitionInput{To: domain.OrderStatusConfirmed}, now)
		case domain.OrderStatusCancelled:
			next.FlagRefund()
		}
	case domain.PaymentStatusFailed:
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			return nil, false, domain.InvalidState("payment for this order is already completed")
		}
		if order.PaymentStatus == domain.PaymentStatusFailed {
			return order, false, nil
		}
		next.PaymentStatus = domain.PaymentStatusFailed
		if order.Status == domain.OrderStatusPendingPayment {
			s.applySideFields(ctx, &next, TransitionInput{
				To:          domain.OrderStatusCancelled,
				CancelledBy: domain.CancelledBySystem,
				Reason:      "payment failed",
			}, now)
		}
	case domain.PaymentStatusRefunded:
		if order.PaymentStatus == domain.PaymentStatusRefunded {
			return order, false, nil
		}
		if order.PaymentStatus != domain.PaymentStatusCompleted {
			return nil, false, domain.InvalidState("order has no completed payment to refund")
		}
		next.PaymentStatus = domain.PaymentStatusRefunded
		if next.RefundAmount.IsZero() {
			next.RefundAmount = next.Total
		}
		next.RefundStatus = domain.RefundStatusProcessed
	default:
		return nil, false, domain.BadRequest("unsupported payment status %q", in.Status)
	}
	return &next, true, nil
}

func paymentNote(in PaymentUpdate) string {
	switch in.Status {
	case domain.PaymentStatusCompleted:
		return "Payment received"
	case domain.PaymentStatusFailed:
		return "Payment failed"
	}
	return "Payment " + string(in.Status)
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, role domain.Role, filter domain.OrderFilter) ([]*domain.Order, error) {
	if role != domain.RoleAdmin {
		filter.UserID = userID
	}
	if filter.Status != "" {
		if _, ok := domain.ParseOrderStatus(string(filter.Status)); !ok {
			return nil, domain.BadRequest("unknown order status %q", filter.Status)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, domain.BadRequest("date range end is before its start")
	}
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string, role domain.Role) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleAdmin && !order.IsOwnedBy(userID) {
		return nil, domain.Forbidden("you do not have permission to view this order")
	}
	return order, nil
}

func (s *OrderService) GetTracking(ctx context.Context, orderID, userID string) (*Tracking, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, domain.Forbidden("you do not have permission to track this order")
	}
	history, err := s.history.ListHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	return &Tracking{
		OrderID:            order.ID,
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		EstimatedReadyTime: order.EstimatedReadyTime,
		ActualReadyTime:    order.ActualReadyTime,
		PickedUpAt:         order.PickedUpAt,
		History:            history,
	}, nil
}

func (s *OrderService) GetInvoice(ctx context.Context, orderID, userID string, role domain.Role) (*Invoice, error) {
	order, err := s.GetOrder(ctx, orderID, userID, role)
	if err != nil {
		return nil, err
	}
	inv := &Invoice{
		InvoiceNumber:    "INV-" + strings.TrimPrefix(order.OrderNumber, "ORD-"),
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		IssuedAt:         order.CreatedAt,
		CustomerID:       order.UserID,
		DeliveryAddress:  order.DeliveryAddress,
		Items:            order.Items,
		Subtotal:         order.Subtotal,
		Tax:              order.Tax,
		DeliveryFee:      order.DeliveryFee,
		Discount:         order.Discount,
		Total:            order.Total,
		CouponCode:       order.CouponCode,
		PaymentMethod:    order.PaymentMethod,
		PaymentStatus:    order.PaymentStatus,
		PaymentReference: order.PaymentReference,
		Status:           order.Status,
	}
	if store := s.store(ctx, order.StoreID); store != nil {
		inv.Store = InvoiceStore{Name: store.Name, Address: store.Address, City: store.City, Phone: store.Phone}
	}
	return inv, nil
}

func (s *OrderService) GetReceipt(ctx context.Context, orderID string) (*Receipt, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	history, err := s.history.ListHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	return &Receipt{Order: order, Store: s.store(ctx, order.StoreID), History: history}, nil
}

func (s *OrderService) AddInternalNote(ctx context.Context, orderID, adminID, note string) (*domain.Order, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.BadRequest("note is required")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	entry := domain.InternalNote{Note: note, Author: adminID, CreatedAt: s.now()}
	if err := s.orders.AddInternalNote(ctx, orderID, entry); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, domain.NotFound("order not found")
		}
		return nil, fmt.Errorf("add internal note: %w", err)
	}
	order.InternalNotes = append(order.InternalNotes, entry)
	return order, nil
}

var driverAssignable = []domain.OrderStatus{
	domain.OrderStatusConfirmed,
	domain.OrderStatusPreparing,
	domain.OrderStatusReady,
}

func (s *OrderService) AssignDriver(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, domain.BadRequest("driver ID is required")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !statusIn(order.Status, driverAssignable) {
		return nil, domain.InvalidState("driver cannot be assigned to an order in status %s", order.Status)
	}
	if err := s.orders.AssignDriver(ctx, orderID, driverID, driverAssignable); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, domain.InvalidState("order status changed, driver was not assigned")
		}
		return nil, fmt.Errorf("assign driver: %w", err)
	}
	order.DriverID = driverID
	return order, nil
}

func (s *OrderService) transition(ctx context.Context, order *domain.Order, in TransitionInput) (*domain.Order, error) {
	from := order.Status
	if !domain.CanTransitionTo(from, in.To) {
		return nil, domain.InvalidState("cannot change order status from %s to %s", from, in.To)
	}

	next := *order
	now := s.now()
	next.UpdatedAt = now
	s.applySideFields(ctx, &next, in, now)

	err := s.commit(ctx, &next, from, in.ChangedBy, in.Notes)
	if errors.Is(err, repository.ErrStatusConflict) {
		current, rerr := s.loadOrder(ctx, order.ID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, domain.InvalidState("order status is now %s, cannot change it to %s", current.Status, in.To)
	}
	if err != nil {
		return nil, fmt.Errorf("transition order: %w", err)
	}

	s.metrics.StatusChanged(ctx, from.String(), next.Status.String())
	s.logger.InfoContext(ctx, "order status changed",
		"order_id", next.ID, "from", from, "to", next.Status, "changed_by", in.ChangedBy)
	return &next, nil
}

// applySideFields moves o to in.To and sets the timestamps that belong to it.
func (s *OrderService) applySideFields(ctx context.Context, o *domain.Order, in TransitionInput, now time.Time) {
	o.Status = in.To
	switch in.To {
	case domain.OrderStatusConfirmed:
		eta := now.Add(s.prepTime(ctx, o.StoreID))
		o.EstimatedReadyTime = &eta
	case domain.OrderStatusReady:
		o.ActualReadyTime = &now
	case domain.OrderStatusPickedUp:
		o.PickedUpAt = &now
	case domain.OrderStatusCancelled:
		by := in.CancelledBy
		if by == "" {
			by = domain.CancelledByAdmin
		}
		o.CancelledAt = &now
		o.CancelledBy = by
		o.CancellationReason = in.Reason
		o.FlagRefund()
	}
}

// commit writes the order conditionally on expected. A status change also
// appends history and queues an event in the same transaction.
func (s *OrderService) commit(ctx context.Context, next *domain.Order, expected domain.OrderStatus, changedBy, notes string) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.UpdateOrderState(ctx, next, expected); err != nil {
			return err
		}
		if next.Status == expected {
			return nil
		}
		if err := s.history.AppendHistory(ctx, &domain.OrderStatusHistory{
			ID:        repository.NewID(),
			OrderID:   next.ID,
			Status:    next.Status,
			Notes:     notes,
			ChangedBy: changedBy,
			CreatedAt: next.UpdatedAt,
		}); err != nil {
			return err
		}
		eventType := domain.EventOrderStatusChanged
		if next.Status == domain.OrderStatusCancelled {
			eventType = domain.EventOrderCancelled
		}
		event, err := domain.NewOrderEvent(eventType, next, expected, next.UpdatedAt)
		if err != nil {
			return err
		}
		return s.outbox.InsertEvent(ctx, event)
	})
}

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := validateID(orderID, "order"); err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, domain.NotFound("order not found")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *OrderService) store(ctx context.Context, storeID string) *domain.Store {
	store, err := s.catalog.GetStore(ctx, storeID)
	if err != nil {
		s.logger.WarnContext(ctx, "store lookup failed", "store_id", storeID, "error", err)
		return nil
	}
	return store
}

func (s *OrderService) prepTime(ctx context.Context, storeID string) time.Duration {
	if store := s.store(ctx, storeID); store != nil && store.AvgPrepTime() > 0 {
		return store.AvgPrepTime()
	}
	return s.settings.DefaultPrepTime
}

func statusIn(status domain.OrderStatus, set []domain.OrderStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
