package service

import (
	"context"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
)

type ReorderResult struct {
	Cart    *domain.Cart             `json:"cart"`
	Added   int                      `json:"added"`
	Skipped []domain.UnavailableItem `json:"skipped,omitempty"`
}

// Reorder copies a past order into the active cart at today's prices. Lines whose
// product is gone or unavailable are skipped and reported; vanished choices and
// unavailable add-ons are dropped from the line.
func (s *OrderService) Reorder(ctx context.Context, orderID, userID string) (*ReorderResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, domain.Forbidden("you do not have permission to reorder this order")
	}
	if len(order.Items) == 0 {
		return nil, domain.BadRequest("no items found in this order")
	}

	now := s.now()
	lines := make([]domain.CartItem, 0, len(order.Items))
	var skipped []domain.UnavailableItem
	for _, item := range order.Items {
		line := domain.CartItem{
			ID:            repository.NewID(),
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			Customization: item.Customization,
			AddOns:        item.AddOns,
			Notes:         item.Notes,
			AddedAt:       now,
		}
		priced, reason, err := s.resolver.Reprice(ctx, line, true)
		if err != nil {
			return nil, err
		}
		if reason == "" && !s.sameStore(ctx, item.ProductID, order.StoreID) {
			reason = "product moved to another store"
		}
		if reason != "" {
			skipped = append(skipped, domain.UnavailableItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Reason:      reason,
			})
			continue
		}
		lines = append(lines, priced)
	}

	result := &ReorderResult{Added: len(lines), Skipped: skipped}
	if len(lines) == 0 {
		cart, err := s.carts.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		result.Cart = cart
		return result, nil
	}

	cart, err := s.carts.MergeItems(ctx, userID, order.StoreID, lines)
	if err != nil {
		return nil, err
	}
	result.Cart = cart
	s.logger.InfoContext(ctx, "order reordered",
		"order_id", orderID, "user_id", userID, "added", len(lines), "skipped", len(skipped))
	return result, nil
}

func (s *OrderService) sameStore(ctx context.Context, productID, storeID string) bool {
	p, err := s.catalog.GetProduct(ctx, productID)
	return err == nil && p.StoreID == storeID
}
