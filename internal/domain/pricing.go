package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is applied to the subtotal when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.10")

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// UnitPrice is base price plus every customization modifier and add-on price.
func UnitPrice(base decimal.Decimal, selections []Selection, addOns []AddOnSelection) decimal.Decimal {
	price := base
	for _, s := range selections {
		price = price.Add(s.PriceModifier)
	}
	for _, a := range addOns {
		price = price.Add(a.Price)
	}
	return price
}

// LineTotal multiplies the unit price by quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// Totals is the money block shared by carts, checkout sessions and orders.
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals applies total = subtotal + tax + deliveryFee - discount with the
// tax rounded to cents. An empty subtotal yields zero tax.
func ComputeTotals(subtotal, taxRate, deliveryFee, discount decimal.Decimal) Totals {
	tax := Round2(subtotal.Mul(taxRate))
	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: deliveryFee,
		Discount:    discount,
		Total:       subtotal.Add(tax).Add(deliveryFee).Sub(discount),
	}
}

// RecalculateCart refreshes every line total and the cart totals. An empty cart
// has every amount at zero.
func RecalculateCart(c *Cart, taxRate decimal.Decimal) {
	if len(c.Items) == 0 {
		c.Clear()
		return
	}
	subtotal := decimal.Zero
	for i := range c.Items {
		c.Items[i].TotalPrice = LineTotal(c.Items[i].UnitPrice, c.Items[i].Quantity)
		subtotal = subtotal.Add(c.Items[i].TotalPrice)
	}
	t := ComputeTotals(subtotal, taxRate, c.DeliveryFee, c.Discount)
	c.Subtotal, c.Tax, c.Total = t.Subtotal, t.Tax, t.Total
}

// ConfigurationKey identifies a product configuration independent of the order in
// which selections and add-ons were given.
func ConfigurationKey(item CartItem) string {
	selections := make([]string, 0, len(item.Customization))
	for _, s := range item.Customization {
		selections = append(selections, s.Option+"="+s.Choice)
	}
	sort.Strings(selections)

	addOns := make([]string, 0, len(item.AddOns))
	for _, a := range item.AddOns {
		addOns = append(addOns, a.ID)
	}
	sort.Strings(addOns)

	var b strings.Builder
	b.WriteString(item.ProductID)
	b.WriteByte('|')
	b.WriteString(strings.Join(selections, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(addOns, ","))
	return b.String()
}

// CouponDiscount computes the discount a coupon grants on the subtotal. It never
// exceeds the subtotal.
func CouponDiscount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.Type {
	case CouponTypePercentage:
		discount = Round2(subtotal.Mul(c.Value).Div(hundred))
		if c.MaxDiscount.IsPositive() && discount.GreaterThan(c.MaxDiscount) {
			discount = c.MaxDiscount
		}
	case CouponTypeFixed:
		discount = c.Value
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}
