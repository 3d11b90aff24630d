package http

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fjod/go_food/internal/auth"
	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type CartMock struct {
	m        sync.RWMutex
	cart     *domain.Cart
	err      error
	lastUser string
	lastAdd  service.AddItemInput
}

func (c *CartMock) record(userID string) (*domain.Cart, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.lastUser = userID
	if c.err != nil {
		return nil, c.err
	}
	return c.cart, nil
}

func (c *CartMock) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	return c.record(userID)
}

func (c *CartMock) AddItem(_ context.Context, userID string, in service.AddItemInput) (*domain.Cart, error) {
	c.m.Lock()
	c.lastAdd = in
	c.m.Unlock()
	return c.record(userID)
}

func (c *CartMock) UpdateItemQuantity(_ context.Context, userID, _ string, _ int) (*domain.Cart, error) {
	return c.record(userID)
}

func (c *CartMock) RemoveItem(_ context.Context, userID, _ string) (*domain.Cart, error) {
	return c.record(userID)
}

func (c *CartMock) ClearCart(_ context.Context, userID string) (*domain.Cart, error) {
	return c.record(userID)
}

func (c *CartMock) ValidateCart(_ context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	if _, err := c.record(userID); err != nil {
		return nil, err
	}
	return &domain.CheckoutSnapshot{}, nil
}

func (c *CartMock) SetDeliveryAddress(_ context.Context, userID, _ string) (*domain.Cart, error) {
	return c.record(userID)
}

func (c *CartMock) SetNotes(_ context.Context, userID, _ string) (*domain.Cart, error) {
	return c.record(userID)
}

func (c *CartMock) GetSummary(_ context.Context, userID string) (*domain.CartSummary, error) {
	if _, err := c.record(userID); err != nil {
		return nil, err
	}
	return &domain.CartSummary{}, nil
}

type CheckoutMock struct {
	m       sync.RWMutex
	session *domain.CheckoutSession
	order   *domain.Order
	err     error
	coupon  string
}

func (c *CheckoutMock) ValidateCheckout(context.Context, string) (*domain.CheckoutSnapshot, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	return &domain.CheckoutSnapshot{}, nil
}

func (c *CheckoutMock) CreateCheckoutSession(context.Context, string, service.CreateCheckoutInput) (*domain.CheckoutSession, error) {
	return c.result()
}

func (c *CheckoutMock) GetCheckoutSession(context.Context, string, string) (*domain.CheckoutSession, error) {
	return c.result()
}

func (c *CheckoutMock) ApplyCoupon(_ context.Context, _, _, code string) (*domain.CheckoutSession, error) {
	c.m.Lock()
	c.coupon = code
	c.m.Unlock()
	return c.result()
}

func (c *CheckoutMock) RemoveCoupon(context.Context, string, string) (*domain.CheckoutSession, error) {
	return c.result()
}

func (c *CheckoutMock) GetDeliveryCharges(context.Context, string, string) (*domain.DeliveryQuote, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	return &domain.DeliveryQuote{}, nil
}

func (c *CheckoutMock) ConfirmCheckout(context.Context, string, string) (*domain.Order, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.order, nil
}

func (c *CheckoutMock) result() (*domain.CheckoutSession, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

type OrderMock struct {
	m          sync.RWMutex
	order      *domain.Order
	orders     []*domain.Order
	err        error
	lastFilter domain.OrderFilter
	lastStatus string
	lastReason string
}

func (o *OrderMock) result() (*domain.Order, error) {
	o.m.RLock()
	defer o.m.RUnlock()
	if o.err != nil {
		return nil, o.err
	}
	return o.order, nil
}

func (o *OrderMock) ListOrders(_ context.Context, _ string, _ domain.Role, filter domain.OrderFilter) ([]*domain.Order, error) {
	o.m.Lock()
	defer o.m.Unlock()
	o.lastFilter = filter
	if o.err != nil {
		return nil, o.err
	}
	return o.orders, nil
}

func (o *OrderMock) GetOrder(context.Context, string, string, domain.Role) (*domain.Order, error) {
	return o.result()
}

func (o *OrderMock) GetTracking(context.Context, string, string) (*service.Tracking, error) {
	order, err := o.result()
	if err != nil {
		return nil, err
	}
	return &service.Tracking{OrderID: order.ID, Status: order.Status}, nil
}

func (o *OrderMock) GetInvoice(context.Context, string, string, domain.Role) (*service.Invoice, error) {
	order, err := o.result()
	if err != nil {
		return nil, err
	}
	return &service.Invoice{OrderID: order.ID}, nil
}

func (o *OrderMock) CancelOrder(_ context.Context, _, _, reason string) (*domain.Order, error) {
	o.m.Lock()
	o.lastReason = reason
	o.m.Unlock()
	return o.result()
}

func (o *OrderMock) RateOrder(context.Context, string, string, int, string) (*domain.Order, error) {
	return o.result()
}

func (o *OrderMock) Reorder(context.Context, string, string) (*service.ReorderResult, error) {
	if _, err := o.result(); err != nil {
		return nil, err
	}
	return &service.ReorderResult{Added: 1}, nil
}

func (o *OrderMock) GetReceipt(context.Context, string) (*service.Receipt, error) {
	order, err := o.result()
	if err != nil {
		return nil, err
	}
	return &service.Receipt{Order: order}, nil
}

func (o *OrderMock) AddInternalNote(context.Context, string, string, string) (*domain.Order, error) {
	return o.result()
}

func (o *OrderMock) UpdateStatus(_ context.Context, _, to, _, _ string) (*domain.Order, error) {
	o.m.Lock()
	o.lastStatus = to
	o.m.Unlock()
	return o.result()
}

func (o *OrderMock) AssignDriver(context.Context, string, string) (*domain.Order, error) {
	return o.result()
}

func (o *OrderMock) ApplyPaymentUpdate(_ context.Context, in service.PaymentUpdate) (*domain.Order, error) {
	order, err := o.result()
	if err != nil {
		return nil, err
	}
	out := *order
	out.PaymentStatus = in.Status
	return &out, nil
}

type AuthMock struct {
	session *auth.Session
	err     error
}

func (a AuthMock) Register(context.Context, auth.RegisterInput) (*auth.Session, error) {
	return a.session, a.err
}

func (a AuthMock) Login(context.Context, auth.LoginInput) (*auth.Session, error) {
	return a.session, a.err
}

func (a AuthMock) Refresh(context.Context, string) (*auth.Session, error) {
	return a.session, a.err
}
