package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
	"github.com/shopspring/decimal"
)

// StoreDeliveryRules prices delivery from the store's own settings.
type StoreDeliveryRules struct {
	catalog         repository.CatalogRepository
	defaultPrepTime time.Duration
}

func NewStoreDeliveryRules(catalog repository.CatalogRepository, defaultPrepTime time.Duration) *StoreDeliveryRules {
	return &StoreDeliveryRules{catalog: catalog, defaultPrepTime: defaultPrepTime}
}

// Quote returns a zero fee for pickup (empty address) or when the subtotal reaches
// the store's free delivery threshold.
func (r *StoreDeliveryRules) Quote(ctx context.Context, storeID, address string, subtotal decimal.Decimal) (*domain.DeliveryQuote, error) {
	store, err := r.catalog.GetStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, repository.ErrStoreNotFound) {
			return nil, domain.NotFound("store not found")
		}
		return nil, fmt.Errorf("quote delivery: %w", err)
	}
	if !store.IsActive {
		return nil, domain.InvalidState("store %s is not accepting orders", store.Name)
	}

	quote := &domain.DeliveryQuote{
		StoreID:        store.ID,
		DeliveryFee:    decimal.Zero,
		FreeThreshold:  store.FreeDeliveryThreshold,
		MinOrderAmount: store.MinOrderAmount,
		EstimatedTime:  store.AvgPrepTime(),
	}
	if quote.EstimatedTime <= 0 {
		quote.EstimatedTime = r.defaultPrepTime
	}

	switch {
	case strings.TrimSpace(address) == "":
		quote.Pickup = true
	case store.FreeDeliveryThreshold.IsPositive() && subtotal.GreaterThanOrEqual(store.FreeDeliveryThreshold):
		quote.FreeDelivery = true
	default:
		quote.DeliveryFee = store.DeliveryFee
	}
	return quote, nil
}
