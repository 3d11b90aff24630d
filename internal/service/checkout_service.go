package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_food/internal/cache"
	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
	"github.com/fjod/go_food/internal/telemetry"
	"github.com/shopspring/decimal"
)

type CreateCheckoutInput struct {
	PaymentMethod   domain.PaymentMethod `json:"payment_method" validate:"required,oneof=cash card wallet"`
	DeliveryAddress string               `json:"delivery_address" validate:"max=500"`
	CouponCode      string               `json:"coupon_code" validate:"max=64"`
	Notes           string               `json:"notes" validate:"max=500"`
}

type CheckoutService struct {
	carts    repository.CartRepository
	sessions repository.CheckoutRepository
	orders   repository.OrderRepository
	history  repository.HistoryRepository
	outbox   repository.OutboxRepository
	catalog  repository.CatalogRepository
	tx       repository.Transactor
	cache    cache.CartCache
	resolver lineResolver
	delivery DeliveryFeeCalculator
	settings Settings
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// CheckoutDeps groups the stores the checkout flow writes in one transaction.
type CheckoutDeps struct {
	Carts    repository.CartRepository
	Sessions repository.CheckoutRepository
	Orders   repository.OrderRepository
	History  repository.HistoryRepository
	Outbox   repository.OutboxRepository
	Catalog  repository.CatalogRepository
	Tx       repository.Transactor
	Cache    cache.CartCache
}

func NewCheckoutService(deps CheckoutDeps, delivery DeliveryFeeCalculator, settings Settings, logger *slog.Logger, metrics *telemetry.Metrics) *CheckoutService {
	return &CheckoutService{
		carts:    deps.Carts,
		sessions: deps.Sessions,
		orders:   deps.Orders,
		history:  deps.History,
		outbox:   deps.Outbox,
		catalog:  deps.Catalog,
		tx:       deps.Tx,
		cache:    deps.Cache,
		resolver: lineResolver{catalog: deps.Catalog},
		delivery: delivery,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// ValidateCheckout returns the cart repriced at current catalog prices, or an
// UnavailableItemsError listing every line that can no longer be bought.
func (s *CheckoutService) ValidateCheckout(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(ctx, s.resolver, cart, s.settings.TaxRate, s.now())
}

func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID string, in CreateCheckoutInput) (*domain.CheckoutSession, error) {
	if !in.PaymentMethod.Valid() {
		return nil, domain.BadRequest("payment method must be one of cash, card, wallet")
	}

	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshot, err := buildSnapshot(ctx, s.resolver, cart, s.settings.TaxRate, s.now())
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(in.DeliveryAddress)
	if address == "" {
		address = cart.DeliveryAddress
	}
	quote, err := s.delivery.Quote(ctx, snapshot.StoreID, address, snapshot.Subtotal)
	if err != nil {
		return nil, err
	}
	if quote.MinOrderAmount.IsPositive() && snapshot.Subtotal.LessThan(quote.MinOrderAmount) {
		return nil, domain.InvalidState("minimum order amount for this store is %s", quote.MinOrderAmount.StringFixed(2))
	}

	now := s.now()
	notes := in.Notes
	if notes == "" {
		notes = cart.Notes
	}
	session := &domain.CheckoutSession{
		ID:              repository.NewID(),
		UserID:          userID,
		StoreID:         snapshot.StoreID,
		CartID:          snapshot.CartID,
		CartVersion:     snapshot.CartVersion,
		Items:           snapshot.Items,
		Subtotal:        snapshot.Subtotal,
		DeliveryFee:     quote.DeliveryFee,
		DeliveryAddress: address,
		PaymentMethod:   in.PaymentMethod,
		Notes:           notes,
		Status:          domain.CheckoutStatusOpen,
		ExpiresAt:       now.Add(s.settings.CheckoutTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if code := normalizeCoupon(in.CouponCode); code != "" {
		if err := s.applyCoupon(ctx, session, code); err != nil {
			return nil, err
		}
	}
	session.Recalculate(s.settings.TaxRate)

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.InfoContext(ctx, "checkout session created",
		"user_id", userID, "checkout_id", session.ID, "total", session.Total.StringFixed(2))
	return session, nil
}

func (s *CheckoutService) GetCheckoutSession(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error) {
	if err := validateID(sessionID, "checkout"); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			return nil, domain.NotFound("checkout session not found")
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	if session.UserID != userID {
		return nil, domain.Forbidden("you do not have permission to access this checkout session")
	}
	return session, nil
}

func (s *CheckoutService) ApplyCoupon(ctx context.Context, userID, sessionID, code string) (*domain.CheckoutSession, error) {
	code = normalizeCoupon(code)
	if code == "" {
		return nil, domain.BadRequest("coupon code is required")
	}
	session, err := s.openSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CouponCode == code {
		return nil, domain.InvalidState("coupon %s is already applied", code)
	}
	if err := s.applyCoupon(ctx, session, code); err != nil {
		return nil, err
	}
	session.Recalculate(s.settings.TaxRate)
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// RemoveCoupon drops the discount. A session without a coupon is returned as is.
func (s *CheckoutService) RemoveCoupon(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.openSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CouponCode == "" {
		return session, nil
	}
	session.CouponCode = ""
	session.Discount = decimal.Zero
	session.Recalculate(s.settings.TaxRate)
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetDeliveryCharges quotes delivery for the store of the user's active cart.
func (s *CheckoutService) GetDeliveryCharges(ctx context.Context, userID, address string) (*domain.DeliveryQuote, error) {
	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.InvalidState("cart is empty")
	}
	return s.delivery.Quote(ctx, cart.StoreID, address, cart.Subtotal)
}

// ConfirmCheckout turns an open session into an order. The cart flip, order
// insert, first history entry, session close and order.created event commit
// together. Confirming an already confirmed session returns its order.
func (s *CheckoutService) ConfirmCheckout(ctx context.Context, userID, sessionID string) (*domain.Order, error) {
	session, err := s.GetCheckoutSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.CheckoutStatusConfirmed {
		return s.existingOrder(ctx, session)
	}
	now := s.now()
	if session.IsExpired(now) {
		s.expire(ctx, session, now)
		return nil, domain.InvalidState("checkout session has expired")
	}

	var (
		order  *domain.Order
		placed bool
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, placed = nil, false
		current, err := s.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.Status == domain.CheckoutStatusConfirmed {
			order, err = s.orders.GetOrder(ctx, current.OrderID)
			return err
		}
		if current.Status != domain.CheckoutStatusOpen {
			return domain.InvalidState("checkout session is no longer open")
		}

		cart, err := s.carts.GetCartByID(ctx, current.CartID)
		if err != nil {
			if errors.Is(err, repository.ErrCartNotFound) {
				return domain.InvalidState("cart no longer exists")
			}
			return err
		}
		if cart.Status != domain.CartStatusActive || cart.Version != current.CartVersion {
			return domain.InvalidState("cart changed since checkout started, please review your order")
		}
		if err := s.carts.MarkConverted(ctx, cart.ID, current.CartVersion); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return domain.InvalidState("cart changed since checkout started, please review your order")
			}
			return err
		}

		created := domain.NewOrderFromSession(repository.NewID(), current, now)
		if err := s.orders.CreateOrder(ctx, created); err != nil {
			if errors.Is(err, repository.ErrDuplicateOrder) {
				order, err = s.orders.GetOrderByCheckout(ctx, current.ID)
				return err
			}
			return err
		}
		if err := s.history.AppendHistory(ctx, &domain.OrderStatusHistory{
			ID:        repository.NewID(),
			OrderID:   created.ID,
			Status:    domain.OrderStatusPendingPayment,
			Notes:     "Order placed",
			ChangedBy: userID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := s.sessions.MarkConfirmed(ctx, current.ID, created.ID, now); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return domain.InvalidState("checkout session is no longer open")
			}
			return err
		}
		event, err := domain.NewOrderEvent(domain.EventOrderCreated, created, "", now)
		if err != nil {
			return err
		}
		if err := s.outbox.InsertEvent(ctx, event); err != nil {
			return err
		}
		order, placed = created, true
		return nil
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, fmt.Errorf("confirm checkout: %w", err)
	}

	s.invalidateCart(ctx, userID)
	if placed {
		s.metrics.OrderPlaced(ctx, order.StoreID)
		s.logger.InfoContext(ctx, "order placed",
			"user_id", userID, "order_id", order.ID, "order_number", order.OrderNumber, "checkout_id", sessionID)
	}
	return order, nil
}

func (s *CheckoutService) existingOrder(ctx context.Context, session *domain.CheckoutSession) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, session.OrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		order, err = s.orders.GetOrderByCheckout(ctx, session.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("get confirmed order: %w", err)
	}
	return order, nil
}

func (s *CheckoutService) expire(ctx context.Context, session *domain.CheckoutSession, now time.Time) {
	if session.Status != domain.CheckoutStatusOpen {
		return
	}
	if err := s.sessions.MarkExpired(ctx, session.ID, now); err != nil && !errors.Is(err, repository.ErrStatusConflict) {
		s.logger.WarnContext(ctx, "failed to expire checkout session", "checkout_id", session.ID, "error", err)
	}
}

func (s *CheckoutService) activeCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.GetActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, domain.InvalidState("cart is empty")
		}
		return nil, fmt.Errorf("get active cart: %w", err)
	}
	return cart, nil
}

func (s *CheckoutService) openSession(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.GetCheckoutSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if session.IsExpired(now) {
		s.expire(ctx, session, now)
		return nil, domain.InvalidState("checkout session has expired")
	}
	if session.Status != domain.CheckoutStatusOpen {
		return nil, domain.InvalidState("checkout session is no longer open")
	}
	return session, nil
}

func (s *CheckoutService) saveSession(ctx context.Context, session *domain.CheckoutSession) error {
	if err := s.sessions.UpdateOpenSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return domain.InvalidState("checkout session is no longer open")
		}
		return fmt.Errorf("update checkout session: %w", err)
	}
	return nil
}

// applyCoupon validates the coupon against the session and sets the discount.
func (s *CheckoutService) applyCoupon(ctx context.Context, session *domain.CheckoutSession, code string) error {
	coupon, err := s.catalog.GetCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return domain.NotFound("invalid coupon code")
		}
		return fmt.Errorf("get coupon: %w", err)
	}

	switch {
	case !coupon.IsActive:
		return domain.InvalidState("coupon %s is not active", code)
	case !coupon.ExpiresAt.IsZero() && s.now().After(coupon.ExpiresAt):
		return domain.InvalidState("coupon %s has expired", code)
	case coupon.StoreID != "" && coupon.StoreID != session.StoreID:
		return domain.InvalidState("coupon %s is not valid for this store", code)
	case coupon.MinOrderAmount.IsPositive() && session.Subtotal.LessThan(coupon.MinOrderAmount):
		return domain.InvalidState("coupon %s requires a minimum order of %s", code, coupon.MinOrderAmount.StringFixed(2))
	}

	session.CouponCode = code
	session.Discount = domain.CouponDiscount(coupon, session.Subtotal)
	return nil
}

func (s *CheckoutService) invalidateCart(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "cart cache invalidate failed", "user_id", userID, "error", err)
	}
}

func normalizeCoupon(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
