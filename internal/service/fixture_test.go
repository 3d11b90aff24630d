package service

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture wires all three services to in-memory stores and a controllable clock.
type fixture struct {
	now time.Time

	carts    *mockCartRepository
	cache    *mockCache
	catalog  *mockCatalog
	sessions *mockSessionRepository
	orders   *mockOrderRepository
	history  *mockHistoryRepository
	outbox   *mockOutboxRepository
	tx       *mockTransactor

	cartSvc     *CartService
	checkoutSvc *CheckoutService
	orderSvc    *OrderService

	storeID, otherStoreID string
	burgerID, friesID     string
	saladID               string
	cheeseID, baconID     string
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s, got %s", want, got.String())
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:          time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		carts:        newMockCartRepository(),
		cache:        newMockCache(),
		catalog:      newMockCatalog(),
		sessions:     newMockSessionRepository(),
		orders:       newMockOrderRepository(),
		history:      &mockHistoryRepository{},
		outbox:       &mockOutboxRepository{},
		tx:           &mockTransactor{},
		storeID:      repository.NewID(),
		otherStoreID: repository.NewID(),
		burgerID:     repository.NewID(),
		friesID:      repository.NewID(),
		saladID:      repository.NewID(),
		cheeseID:     repository.NewID(),
		baconID:      repository.NewID(),
	}

	f.catalog.stores[f.storeID] = &domain.Store{
		ID: f.storeID, Name: "Burger Barn", Address: "1 Grill St", City: "Springfield",
		IsActive: true, DeliveryFee: money("3.00"), FreeDeliveryThreshold: money("50.00"),
		AvgPrepMinutes: 15,
	}
	f.catalog.stores[f.otherStoreID] = &domain.Store{
		ID: f.otherStoreID, Name: "Green Bowl", IsActive: true,
		DeliveryFee: money("2.50"), MinOrderAmount: money("10.00"),
	}
	f.catalog.addOns[f.cheeseID] = &domain.AddOn{ID: f.cheeseID, Name: "Cheese", Price: money("1.00"), IsAvailable: true}
	f.catalog.addOns[f.baconID] = &domain.AddOn{ID: f.baconID, Name: "Bacon", Price: money("2.00"), IsAvailable: true}
	f.catalog.products[f.burgerID] = &domain.Product{
		ID: f.burgerID, StoreID: f.storeID, Name: "Burger", BasePrice: money("8.50"), IsAvailable: true,
		CustomizationOptions: []domain.CustomizationOption{{
			Name: "size", Required: true,
			Choices: []domain.CustomizationChoice{
				{Name: "regular", PriceModifier: decimal.Zero},
				{Name: "large", PriceModifier: money("1.50")},
			},
		}},
		AddOnIDs: []string{f.cheeseID, f.baconID},
	}
	f.catalog.products[f.friesID] = &domain.Product{
		ID: f.friesID, StoreID: f.storeID, Name: "Fries", BasePrice: money("3.00"), IsAvailable: true,
	}
	f.catalog.products[f.saladID] = &domain.Product{
		ID: f.saladID, StoreID: f.otherStoreID, Name: "Salad", BasePrice: money("7.00"), IsAvailable: true,
	}

	f.catalog.coupons["SAVE10"] = &domain.Coupon{
		Code: "SAVE10", Type: domain.CouponTypePercentage, Value: money("10"), MaxDiscount: money("5.00"), IsActive: true,
	}
	f.catalog.coupons["FIVEOFF"] = &domain.Coupon{
		Code: "FIVEOFF", Type: domain.CouponTypeFixed, Value: money("5.00"), MinOrderAmount: money("20.00"), IsActive: true,
	}
	f.catalog.coupons["GREEN"] = &domain.Coupon{
		Code: "GREEN", Type: domain.CouponTypeFixed, Value: money("1.00"), StoreID: f.otherStoreID, IsActive: true,
	}
	f.catalog.coupons["OLD"] = &domain.Coupon{
		Code: "OLD", Type: domain.CouponTypeFixed, Value: money("1.00"), IsActive: true,
		ExpiresAt: f.now.Add(-time.Hour),
	}
	f.catalog.coupons["OFF"] = &domain.Coupon{
		Code: "OFF", Type: domain.CouponTypeFixed, Value: money("1.00"),
	}

	clock := func() time.Time { return f.now }
	settings := DefaultSettings()
	logger := discardLogger()
	delivery := NewStoreDeliveryRules(f.catalog, settings.DefaultPrepTime)

	f.cartSvc = NewCartService(f.carts, f.catalog, f.cache, delivery, settings, logger, nil)
	f.cartSvc.now = clock
	f.checkoutSvc = NewCheckoutService(CheckoutDeps{
		Carts: f.carts, Sessions: f.sessions, Orders: f.orders, History: f.history,
		Outbox: f.outbox, Catalog: f.catalog, Tx: f.tx, Cache: f.cache,
	}, delivery, settings, logger, nil)
	f.checkoutSvc.now = clock
	f.orderSvc = NewOrderService(OrderDeps{
		Orders: f.orders, History: f.history, Outbox: f.outbox, Catalog: f.catalog, Tx: f.tx,
	}, f.cartSvc, settings, logger, nil)
	f.orderSvc.now = clock
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) burger(qty int, size string, addOns ...string) AddItemInput {
	return AddItemInput{
		ProductID:     f.burgerID,
		Quantity:      qty,
		Customization: []SelectionInput{{Option: "size", Choice: size}},
		AddOnIDs:      addOns,
	}
}

func (f *fixture) addBurger(t *testing.T, userID string, qty int) *domain.Cart {
	t.Helper()
	cart, err := f.cartSvc.AddItem(context.Background(), userID, f.burger(qty, "regular"))
	require.NoError(t, err)
	return cart
}

// placeOrder runs the whole cart to order flow and returns a pending_payment order.
func (f *fixture) placeOrder(t *testing.T, userID string) *domain.Order {
	t.Helper()
	ctx := context.Background()
	f.addBurger(t, userID, 2)
	session, err := f.checkoutSvc.CreateCheckoutSession(ctx, userID, CreateCheckoutInput{
		PaymentMethod:   domain.PaymentMethodCard,
		DeliveryAddress: "42 Elm St",
	})
	require.NoError(t, err)
	order, err := f.checkoutSvc.ConfirmCheckout(ctx, userID, session.ID)
	require.NoError(t, err)
	return order
}

// seedOrder stores an order directly, bypassing checkout.
func (f *fixture) seedOrder(userID string, status domain.OrderStatus) *domain.Order {
	o := &domain.Order{
		ID:            repository.NewID(),
		OrderNumber:   domain.NewOrderNumber(f.now),
		UserID:        userID,
		StoreID:       f.storeID,
		CheckoutID:    repository.NewID(),
		Status:        status,
		PaymentMethod: domain.PaymentMethodCard,
		PaymentStatus: domain.PaymentStatusPending,
		Items: []domain.OrderItem{{
			ProductID: f.burgerID, ProductName: "Burger", Quantity: 1,
			UnitPrice: money("8.50"), TotalPrice: money("8.50"),
			Customization: []domain.Selection{{Option: "size", Choice: "regular", PriceModifier: decimal.Zero}},
		}},
		Subtotal:  money("8.50"),
		Tax:       money("0.85"),
		Total:     money("9.35"),
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	f.orders.put(o)
	return o
}
