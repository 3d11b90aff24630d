package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecalculateCart_TotalsInvariant(t *testing.T) {
	cart := &Cart{
		Items: []CartItem{
			{ID: "a", UnitPrice: dec("4.50"), Quantity: 2},
			{ID: "b", UnitPrice: dec("3.35"), Quantity: 3},
		},
		DeliveryFee: dec("2.99"),
		Discount:    dec("1.00"),
	}

	RecalculateCart(cart, DefaultTaxRate)

	assert.True(t, dec("9.00").Equal(cart.Items[0].TotalPrice))
	assert.True(t, dec("10.05").Equal(cart.Items[1].TotalPrice))
	assert.True(t, dec("19.05").Equal(cart.Subtotal))
	assert.True(t, dec("1.91").Equal(cart.Tax), cart.Tax.String())

	sum := decimal.Zero
	for _, item := range cart.Items {
		sum = sum.Add(item.TotalPrice)
	}
	assert.True(t, sum.Equal(cart.Subtotal))
	assert.True(t, cart.Subtotal.Add(cart.Tax).Add(cart.DeliveryFee).Sub(cart.Discount).Equal(cart.Total))
}

func TestRecalculateCart_EmptyCartIsZero(t *testing.T) {
	cart := &Cart{DeliveryFee: dec("2.99"), Discount: dec("1"), Total: dec("5")}

	RecalculateCart(cart, DefaultTaxRate)

	assert.True(t, cart.Subtotal.IsZero())
	assert.True(t, cart.Tax.IsZero())
	assert.True(t, cart.DeliveryFee.IsZero())
	assert.True(t, cart.Discount.IsZero())
	assert.True(t, cart.Total.IsZero())
}

func TestUnitPrice_SumsModifiersAndAddOns(t *testing.T) {
	price := UnitPrice(dec("5.00"),
		[]Selection{{Option: "size", Choice: "large", PriceModifier: dec("1.50")}},
		[]AddOnSelection{{ID: "x", Price: dec("0.75")}, {ID: "y", Price: dec("0.25")}},
	)
	assert.True(t, dec("7.50").Equal(price))
}

func TestConfigurationKey_OrderIndependent(t *testing.T) {
	a := CartItem{
		ProductID:     "p1",
		Customization: []Selection{{Option: "size", Choice: "L"}, {Option: "milk", Choice: "oat"}},
		AddOns:        []AddOnSelection{{ID: "a1"}, {ID: "a2"}},
	}
	b := CartItem{
		ProductID:     "p1",
		Customization: []Selection{{Option: "milk", Choice: "oat"}, {Option: "size", Choice: "L"}},
		AddOns:        []AddOnSelection{{ID: "a2"}, {ID: "a1"}},
	}
	c := CartItem{
		ProductID:     "p1",
		Customization: []Selection{{Option: "size", Choice: "M"}, {Option: "milk", Choice: "oat"}},
		AddOns:        []AddOnSelection{{ID: "a1"}, {ID: "a2"}},
	}

	assert.Equal(t, ConfigurationKey(a), ConfigurationKey(b))
	assert.NotEqual(t, ConfigurationKey(a), ConfigurationKey(c))
}

func TestCart_SwitchStore(t *testing.T) {
	cart := &Cart{StoreID: "s1", Items: []CartItem{{ID: "a"}}, DeliveryFee: dec("3"), Discount: dec("1")}

	assert.False(t, cart.SwitchStore("s1"))
	assert.Len(t, cart.Items, 1)

	assert.True(t, cart.SwitchStore("s2"))
	assert.Equal(t, "s2", cart.StoreID)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.DeliveryFee.IsZero())
	assert.True(t, cart.Discount.IsZero())
}

func TestCouponDiscount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal string
		want     string
	}{
		{"percentage", Coupon{Type: CouponTypePercentage, Value: dec("15")}, "33.33", "5.00"},
		{"percentage capped", Coupon{Type: CouponTypePercentage, Value: dec("50"), MaxDiscount: dec("10")}, "40", "10"},
		{"fixed", Coupon{Type: CouponTypeFixed, Value: dec("5")}, "40", "5"},
		{"fixed above subtotal", Coupon{Type: CouponTypeFixed, Value: dec("50")}, "40", "40"},
		{"unknown type", Coupon{Type: "bogus", Value: dec("5")}, "40", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CouponDiscount(&tt.coupon, dec(tt.subtotal))
			assert.True(t, dec(tt.want).Equal(got), got.String())
		})
	}
}

func TestNewOrderFromSession_CopiesSnapshot(t *testing.T) {
	now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	session := &CheckoutSession{
		ID:            "chk1",
		UserID:        "u1",
		StoreID:       "s1",
		CartID:        "c1",
		Items:         []CartItem{{ProductID: "p1", ProductName: "Latte", Quantity: 2, UnitPrice: dec("4"), TotalPrice: dec("8")}},
		Subtotal:      dec("8"),
		Tax:           dec("0.80"),
		Total:         dec("8.80"),
		PaymentMethod: PaymentMethodCard,
	}

	order := NewOrderFromSession("o1", session, now)

	require.Len(t, order.Items, 1)
	assert.Equal(t, OrderStatusPendingPayment, order.Status)
	assert.Equal(t, PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "chk1", order.CheckoutID)
	assert.True(t, dec("8.80").Equal(order.Total))
	assert.Regexp(t, regexp.MustCompile(`^ORD-20240131-[A-Z2-9]{6}$`), order.OrderNumber)

	session.Items[0].UnitPrice = dec("100")
	assert.True(t, dec("4").Equal(order.Items[0].UnitPrice))
}

func TestOrder_FlagRefund(t *testing.T) {
	unpaid := &Order{Total: dec("10"), PaymentStatus: PaymentStatusPending}
	assert.False(t, unpaid.FlagRefund())
	assert.Equal(t, RefundStatusNone, unpaid.RefundStatus)

	paid := &Order{Total: dec("10"), PaymentStatus: PaymentStatusCompleted}
	assert.True(t, paid.FlagRefund())
	assert.Equal(t, RefundStatusPending, paid.RefundStatus)
	assert.True(t, dec("10").Equal(paid.RefundAmount))
	assert.False(t, paid.FlagRefund())
}
