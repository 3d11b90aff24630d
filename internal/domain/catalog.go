package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Catalog records are owned by the catalog service; this module only reads them.

type CustomizationChoice struct {
	Name          string          `bson:"name" json:"name"`
	PriceModifier decimal.Decimal `bson:"price_modifier" json:"price_modifier"`
}

type CustomizationOption struct {
	Name     string                `bson:"name" json:"name"`
	Required bool                  `bson:"required" json:"required"`
	Choices  []CustomizationChoice `bson:"choices" json:"choices"`
}

// Choice looks up a choice by name.
func (o CustomizationOption) Choice(name string) (CustomizationChoice, bool) {
	for _, c := range o.Choices {
		if c.Name == name {
			return c, true
		}
	}
	return CustomizationChoice{}, false
}

type Product struct {
	ID                   string                `bson:"_id" json:"id"`
	StoreID              string                `bson:"store_id" json:"store_id"`
	CategoryID           string                `bson:"category_id" json:"category_id"`
	Name                 string                `bson:"name" json:"name"`
	BasePrice            decimal.Decimal       `bson:"base_price" json:"base_price"`
	IsAvailable          bool                  `bson:"is_available" json:"is_available"`
	CustomizationOptions []CustomizationOption `bson:"customization_options" json:"customization_options"`
	AddOnIDs             []string              `bson:"add_on_ids" json:"add_on_ids"`
}

// Option looks up a customization option by name.
func (p *Product) Option(name string) (CustomizationOption, bool) {
	for _, o := range p.CustomizationOptions {
		if o.Name == name {
			return o, true
		}
	}
	return CustomizationOption{}, false
}

// OffersAddOn reports whether the add-on is listed for this product.
func (p *Product) OffersAddOn(id string) bool {
	for _, a := range p.AddOnIDs {
		if a == id {
			return true
		}
	}
	return false
}

type AddOn struct {
	ID          string          `bson:"_id" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Price       decimal.Decimal `bson:"price" json:"price"`
	IsAvailable bool            `bson:"is_available" json:"is_available"`
}

type Store struct {
	ID                    string          `bson:"_id" json:"id"`
	Name                  string          `bson:"name" json:"name"`
	Address               string          `bson:"address" json:"address"`
	City                  string          `bson:"city" json:"city"`
	Phone                 string          `bson:"phone" json:"phone"`
	IsActive              bool            `bson:"is_active" json:"is_active"`
	DeliveryFee           decimal.Decimal `bson:"delivery_fee" json:"delivery_fee"`
	FreeDeliveryThreshold decimal.Decimal `bson:"free_delivery_threshold" json:"free_delivery_threshold"`
	MinOrderAmount        decimal.Decimal `bson:"min_order_amount" json:"min_order_amount"`
	AvgPrepMinutes        int             `bson:"avg_prep_minutes" json:"avg_prep_minutes"`
}

// AvgPrepTime is the store's average preparation time, zero when unset.
func (s *Store) AvgPrepTime() time.Duration {
	if s.AvgPrepMinutes <= 0 {
		return 0
	}
	return time.Duration(s.AvgPrepMinutes) * time.Minute
}

type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

type Coupon struct {
	Code           string          `bson:"_id" json:"code"`
	Type           CouponType      `bson:"type" json:"type"`
	Value          decimal.Decimal `bson:"value" json:"value"`
	MinOrderAmount decimal.Decimal `bson:"min_order_amount" json:"min_order_amount"`
	MaxDiscount    decimal.Decimal `bson:"max_discount" json:"max_discount"`
	StoreID        string          `bson:"store_id,omitempty" json:"store_id,omitempty"`
	ExpiresAt      time.Time       `bson:"expires_at" json:"expires_at"`
	IsActive       bool            `bson:"is_active" json:"is_active"`
}
