package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinItemQuantity = 1
	MaxItemQuantity = 99
)

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
)

// Selection is one chosen customization, priced when it was chosen.
type Selection struct {
	Option        string          `bson:"option" json:"option"`
	Choice        string          `bson:"choice" json:"choice"`
	PriceModifier decimal.Decimal `bson:"price_modifier" json:"price_modifier"`
}

type AddOnSelection struct {
	ID    string          `bson:"id" json:"id"`
	Name  string          `bson:"name" json:"name"`
	Price decimal.Decimal `bson:"price" json:"price"`
}

type CartItem struct {
	ID            string           `bson:"id" json:"id"`
	ProductID     string           `bson:"product_id" json:"product_id"`
	ProductName   string           `bson:"product_name" json:"product_name"`
	Quantity      int              `bson:"quantity" json:"quantity"`
	Customization []Selection      `bson:"customization" json:"customization"`
	AddOns        []AddOnSelection `bson:"add_ons" json:"add_ons"`
	Notes         string           `bson:"notes,omitempty" json:"notes,omitempty"`
	UnitPrice     decimal.Decimal  `bson:"unit_price" json:"unit_price"`
	TotalPrice    decimal.Decimal  `bson:"total_price" json:"total_price"`
	AddedAt       time.Time        `bson:"added_at" json:"added_at"`
}

type Cart struct {
	ID              string          `bson:"_id" json:"id"`
	UserID          string          `bson:"user_id" json:"user_id"`
	StoreID         string          `bson:"store_id" json:"store_id"`
	Status          CartStatus      `bson:"status" json:"status"`
	Items           []CartItem      `bson:"items" json:"items"`
	Subtotal        decimal.Decimal `bson:"subtotal" json:"subtotal"`
	Tax             decimal.Decimal `bson:"tax" json:"tax"`
	DeliveryFee     decimal.Decimal `bson:"delivery_fee" json:"delivery_fee"`
	Discount        decimal.Decimal `bson:"discount" json:"discount"`
	Total           decimal.Decimal `bson:"total" json:"total"`
	DeliveryAddress string          `bson:"delivery_address,omitempty" json:"delivery_address,omitempty"`
	Notes           string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Version         int64           `bson:"version" json:"version"`
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updated_at"`
}

// NewCart returns an empty active cart for the user. The id is left to the caller.
func NewCart(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:    userID,
		Status:    CartStatusActive,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the index of the line with the given id, or -1.
func (c *Cart) FindItem(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// FindSameConfiguration returns the index of a line holding the same product with
// the same selections and add-ons, or -1.
func (c *Cart) FindSameConfiguration(item CartItem) int {
	key := ConfigurationKey(item)
	for i := range c.Items {
		if ConfigurationKey(c.Items[i]) == key {
			return i
		}
	}
	return -1
}

// SwitchStore drops every line and the store-bound adjustments when the cart is
// moved to another store. It reports whether anything was dropped.
func (c *Cart) SwitchStore(storeID string) bool {
	if c.StoreID == storeID {
		return false
	}
	switched := c.StoreID != ""
	c.StoreID = storeID
	c.Items = []CartItem{}
	c.DeliveryFee = decimal.Zero
	c.Discount = decimal.Zero
	return switched
}

// Clear removes every line and zeroes the totals.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.DeliveryFee = decimal.Zero
	c.Discount = decimal.Zero
	c.Subtotal = decimal.Zero
	c.Tax = decimal.Zero
	c.Total = decimal.Zero
}

// TotalQuantity is the number of units across all lines.
func (c *Cart) TotalQuantity() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

type CartSummary struct {
	StoreID     string          `json:"store_id"`
	ItemCount   int             `json:"item_count"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

func (c *Cart) Summary() *CartSummary {
	return &CartSummary{
		StoreID:     c.StoreID,
		ItemCount:   len(c.Items),
		Quantity:    c.TotalQuantity(),
		Subtotal:    c.Subtotal,
		Tax:         c.Tax,
		DeliveryFee: c.DeliveryFee,
		Discount:    c.Discount,
		Total:       c.Total,
	}
}
