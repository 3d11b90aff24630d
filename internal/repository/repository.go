package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_food/internal/domain"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCheckoutNotFound = errors.New("checkout session not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrAddOnNotFound    = errors.New("add-on not found")
	ErrStoreNotFound    = errors.New("store not found")
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrVersionConflict means the document changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrStatusConflict means the document is no longer in the expected status.
	ErrStatusConflict = errors.New("status conflict")
	ErrDuplicateOrder = errors.New("order already exists for checkout")
	ErrDuplicateEmail = errors.New("email already registered")
)

// CartRepository stores carts. Writes are conditional on the version that was read.
type CartRepository interface {
	GetActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetCartByID(ctx context.Context, cartID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, cart *domain.Cart) error
	ReplaceCart(ctx context.Context, cart *domain.Cart, expectedVersion int64) error
	MarkConverted(ctx context.Context, cartID string, expectedVersion int64) error
}

type CheckoutRepository interface {
	CreateSession(ctx context.Context, session *domain.CheckoutSession) error
	GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
	// UpdateOpenSession replaces a session that is still open.
	UpdateOpenSession(ctx context.Context, session *domain.CheckoutSession) error
	MarkConfirmed(ctx context.Context, sessionID, orderID string, at time.Time) error
	MarkExpired(ctx context.Context, sessionID string, at time.Time) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderByCheckout(ctx context.Context, checkoutID string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	// UpdateOrderState writes the status, payment and lifecycle fields of the
	// order only if it is still in the expected status.
	UpdateOrderState(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error
	SetRating(ctx context.Context, orderID string, rating domain.Rating) error
	AddInternalNote(ctx context.Context, orderID string, note domain.InternalNote) error
	AssignDriver(ctx context.Context, orderID, driverID string, allowed []domain.OrderStatus) error
}

type HistoryRepository interface {
	AppendHistory(ctx context.Context, entry *domain.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error)
}

type OutboxRepository interface {
	InsertEvent(ctx context.Context, event *domain.OutboxEvent) error
	FetchUnprocessed(ctx context.Context, limit int64) ([]domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, eventID string, at time.Time) error
}

// CatalogRepository is the read-only view of products, add-ons, stores and coupons.
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	GetAddOn(ctx context.Context, addOnID string) (*domain.AddOn, error)
	GetStore(ctx context.Context, storeID string) (*domain.Store, error)
	GetCoupon(ctx context.Context, code string) (*domain.Coupon, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}

// Transactor runs fn inside one multi-document transaction. Repository calls made
// with the ctx passed to fn take part in it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
