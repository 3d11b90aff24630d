package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type RefundStatus string

const (
	RefundStatusNone      RefundStatus = ""
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
)

type CancelledBy string

const (
	CancelledByCustomer CancelledBy = "customer"
	CancelledByAdmin    CancelledBy = "admin"
	CancelledBySystem   CancelledBy = "system"
)

// OrderItem is frozen at order creation and never changes afterwards.
type OrderItem struct {
	ProductID     string           `bson:"product_id" json:"product_id"`
	ProductName   string           `bson:"product_name" json:"product_name"`
	Quantity      int              `bson:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal  `bson:"unit_price" json:"unit_price"`
	TotalPrice    decimal.Decimal  `bson:"total_price" json:"total_price"`
	Customization []Selection      `bson:"customization" json:"customization"`
	AddOns        []AddOnSelection `bson:"add_ons" json:"add_ons"`
	Notes         string           `bson:"notes,omitempty" json:"notes,omitempty"`
}

type InternalNote struct {
	Note      string    `bson:"note" json:"note"`
	Author    string    `bson:"author" json:"author"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Rating struct {
	Rating  int       `bson:"rating" json:"rating"`
	Review  string    `bson:"review,omitempty" json:"review,omitempty"`
	RatedAt time.Time `bson:"rated_at" json:"rated_at"`
}

type Order struct {
	ID                 string          `bson:"_id" json:"id"`
	OrderNumber        string          `bson:"order_number" json:"order_number"`
	UserID             string          `bson:"user_id" json:"user_id"`
	StoreID            string          `bson:"store_id" json:"store_id"`
	CheckoutID         string          `bson:"checkout_id" json:"checkout_id"`
	CartID             string          `bson:"cart_id" json:"cart_id"`
	Items              []OrderItem     `bson:"items" json:"items"`
	Subtotal           decimal.Decimal `bson:"subtotal" json:"subtotal"`
	Tax                decimal.Decimal `bson:"tax" json:"tax"`
	DeliveryFee        decimal.Decimal `bson:"delivery_fee" json:"delivery_fee"`
	Discount           decimal.Decimal `bson:"discount" json:"discount"`
	Total              decimal.Decimal `bson:"total" json:"total"`
	CouponCode         string          `bson:"coupon_code,omitempty" json:"coupon_code,omitempty"`
	Status             OrderStatus     `bson:"status" json:"status"`
	PaymentMethod      PaymentMethod   `bson:"payment_method" json:"payment_method"`
	PaymentStatus      PaymentStatus   `bson:"payment_status" json:"payment_status"`
	PaymentReference   string          `bson:"payment_reference,omitempty" json:"payment_reference,omitempty"`
	DeliveryAddress    string          `bson:"delivery_address,omitempty" json:"delivery_address,omitempty"`
	Notes              string          `bson:"notes,omitempty" json:"notes,omitempty"`
	InternalNotes      []InternalNote  `bson:"internal_notes,omitempty" json:"internal_notes,omitempty"`
	DriverID           string          `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	Rating             *Rating         `bson:"rating,omitempty" json:"rating,omitempty"`
	CreatedAt          time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `bson:"updated_at" json:"updated_at"`
	EstimatedReadyTime *time.Time      `bson:"estimated_ready_time,omitempty" json:"estimated_ready_time,omitempty"`
	ActualReadyTime    *time.Time      `bson:"actual_ready_time,omitempty" json:"actual_ready_time,omitempty"`
	PickedUpAt         *time.Time      `bson:"picked_up_at,omitempty" json:"picked_up_at,omitempty"`
	CancelledAt        *time.Time      `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CancellationReason string          `bson:"cancellation_reason,omitempty" json:"cancellation_reason,omitempty"`
	CancelledBy        CancelledBy     `bson:"cancelled_by,omitempty" json:"cancelled_by,omitempty"`
	RefundAmount       decimal.Decimal `bson:"refund_amount" json:"refund_amount"`
	RefundStatus       RefundStatus    `bson:"refund_status,omitempty" json:"refund_status,omitempty"`
}

// OrderStatusHistory is one entry of the append-only transition log.
type OrderStatusHistory struct {
	ID        string      `bson:"_id" json:"id"`
	OrderID   string      `bson:"order_id" json:"order_id"`
	Status    OrderStatus `bson:"status" json:"status"`
	Notes     string      `bson:"notes,omitempty" json:"notes,omitempty"`
	ChangedBy string      `bson:"changed_by" json:"changed_by"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// OrderItemsFromCart copies cart lines into frozen order lines.
func OrderItemsFromCart(items []CartItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItem{
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			TotalPrice:    item.TotalPrice,
			Customization: append([]Selection(nil), item.Customization...),
			AddOns:        append([]AddOnSelection(nil), item.AddOns...),
			Notes:         item.Notes,
		})
	}
	return out
}

// NewOrderFromSession builds a pending_payment order from a checkout session.
func NewOrderFromSession(id string, s *CheckoutSession, now time.Time) *Order {
	return &Order{
		ID:              id,
		OrderNumber:     NewOrderNumber(now),
		UserID:          s.UserID,
		StoreID:         s.StoreID,
		CheckoutID:      s.ID,
		CartID:          s.CartID,
		Items:           OrderItemsFromCart(s.Items),
		Subtotal:        s.Subtotal,
		Tax:             s.Tax,
		DeliveryFee:     s.DeliveryFee,
		Discount:        s.Discount,
		Total:           s.Total,
		CouponCode:      s.CouponCode,
		Status:          OrderStatusPendingPayment,
		PaymentMethod:   s.PaymentMethod,
		PaymentStatus:   PaymentStatusPending,
		DeliveryAddress: s.DeliveryAddress,
		Notes:           s.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNumber returns a human-readable reference like ORD-20240131-7KQ2XM.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = orderNumberAlphabet[int(buf[i])%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), buf)
}

// FlagRefund marks a paid order for refund. Unpaid orders are left untouched.
func (o *Order) FlagRefund() bool {
	if o.PaymentStatus != PaymentStatusCompleted || o.RefundStatus != RefundStatusNone {
		return false
	}
	o.RefundAmount = o.Total
	o.RefundStatus = RefundStatusPending
	return true
}

// IsOwnedBy reports whether the order belongs to the user.
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID == userID
}

// OrderFilter narrows order listings. Zero values mean no constraint.
type OrderFilter struct {
	UserID  string
	StoreID string
	Status  OrderStatus
	From    time.Time
	To      time.Time
}
