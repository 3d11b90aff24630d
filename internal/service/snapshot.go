package service

import (
	"context"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/shopspring/decimal"
)

// buildSnapshot re-checks every line of the cart and reprices it. Any line that
// can no longer be bought fails the whole snapshot with an UnavailableItemsError.
func buildSnapshot(ctx context.Context, r lineResolver, cart *domain.Cart, taxRate decimal.Decimal, now time.Time) (*domain.CheckoutSnapshot, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, domain.InvalidState("cart is empty")
	}

	items := make([]domain.CartItem, 0, len(cart.Items))
	var unavailable []domain.UnavailableItem
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		priced, reason, err := r.Reprice(ctx, item, false)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			unavailable = append(unavailable, domain.UnavailableItem{
				ItemID:      item.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Reason:      reason,
			})
			continue
		}
		items = append(items, priced)
		subtotal = subtotal.Add(priced.TotalPrice)
	}
	if len(unavailable) > 0 {
		return nil, &domain.UnavailableItemsError{Items: unavailable}
	}

	totals := domain.ComputeTotals(subtotal, taxRate, cart.DeliveryFee, decimal.Zero)
	return &domain.CheckoutSnapshot{
		CartID:      cart.ID,
		CartVersion: cart.Version,
		StoreID:     cart.StoreID,
		Items:       items,
		Subtotal:    totals.Subtotal,
		Tax:         totals.Tax,
		DeliveryFee: totals.DeliveryFee,
		Discount:    totals.Discount,
		Total:       totals.Total,
		CapturedAt:  now,
	}, nil
}
