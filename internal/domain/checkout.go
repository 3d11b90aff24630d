package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutStatus string

const (
	CheckoutStatusOpen      CheckoutStatus = "open"
	CheckoutStatusConfirmed CheckoutStatus = "confirmed"
	CheckoutStatusExpired   CheckoutStatus = "expired"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusConfirmed || s == CheckoutStatusExpired
}

func (s CheckoutStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet:
		return true
	}
	return false
}

// CheckoutSnapshot is a validated cart re-priced at current catalog prices.
type CheckoutSnapshot struct {
	CartID      string          `json:"cart_id"`
	CartVersion int64           `json:"cart_version"`
	StoreID     string          `json:"store_id"`
	Items       []CartItem      `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	CapturedAt  time.Time       `json:"captured_at"`
}

type CheckoutSession struct {
	ID              string          `bson:"_id" json:"id"`
	UserID          string          `bson:"user_id" json:"user_id"`
	StoreID         string          `bson:"store_id" json:"store_id"`
	CartID          string          `bson:"cart_id" json:"cart_id"`
	CartVersion     int64           `bson:"cart_version" json:"cart_version"`
	Items           []CartItem      `bson:"items" json:"items"`
	Subtotal        decimal.Decimal `bson:"subtotal" json:"subtotal"`
	Tax             decimal.Decimal `bson:"tax" json:"tax"`
	DeliveryFee     decimal.Decimal `bson:"delivery_fee" json:"delivery_fee"`
	Discount        decimal.Decimal `bson:"discount" json:"discount"`
	Total           decimal.Decimal `bson:"total" json:"total"`
	CouponCode      string          `bson:"coupon_code,omitempty" json:"coupon_code,omitempty"`
	DeliveryAddress string          `bson:"delivery_address,omitempty" json:"delivery_address,omitempty"`
	PaymentMethod   PaymentMethod   `bson:"payment_method" json:"payment_method"`
	Notes           string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          CheckoutStatus  `bson:"status" json:"status"`
	OrderID         string          `bson:"order_id,omitempty" json:"order_id,omitempty"`
	ExpiresAt       time.Time       `bson:"expires_at" json:"expires_at"`
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updated_at"`
}

// IsExpired reports whether an open session has outlived its deadline.
func (s *CheckoutSession) IsExpired(now time.Time) bool {
	return s.Status == CheckoutStatusExpired || (s.Status == CheckoutStatusOpen && now.After(s.ExpiresAt))
}

// Recalculate refreshes tax and total after the discount or delivery fee changed.
func (s *CheckoutSession) Recalculate(taxRate decimal.Decimal) {
	t := ComputeTotals(s.Subtotal, taxRate, s.DeliveryFee, s.Discount)
	s.Tax, s.Total = t.Tax, t.Total
}

type DeliveryQuote struct {
	StoreID        string          `json:"store_id"`
	Pickup         bool            `json:"pickup"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	FreeDelivery   bool            `json:"free_delivery"`
	FreeThreshold  decimal.Decimal `json:"free_delivery_threshold"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	EstimatedTime  time.Duration   `json:"estimated_time"`
}
