package service

import (
	"context"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	// maxWriteAttempts bounds the re-read loop after an optimistic write conflict.
	maxWriteAttempts = 3

	DefaultCancellationWindow = 5 * time.Minute
	DefaultCheckoutTTL        = 30 * time.Minute
	DefaultPrepTime           = 20 * time.Minute
)

// Settings are the business constants shared by the services.
type Settings struct {
	TaxRate            decimal.Decimal
	CancellationWindow time.Duration
	CheckoutTTL        time.Duration
	DefaultPrepTime    time.Duration
}

// DefaultSettings returns a 10% tax rate, a five minute cancellation window, 30
// minute checkout sessions and a 20 minute fallback preparation time.
func DefaultSettings() Settings {
	return Settings{
		TaxRate:            domain.DefaultTaxRate,
		CancellationWindow: DefaultCancellationWindow,
		CheckoutTTL:        DefaultCheckoutTTL,
		DefaultPrepTime:    DefaultPrepTime,
	}
}

// DeliveryFeeCalculator quotes the delivery fee for a store and address.
type DeliveryFeeCalculator interface {
	Quote(ctx context.Context, storeID, address string, subtotal decimal.Decimal) (*domain.DeliveryQuote, error)
}

func validateID(id, what string) error {
	if !repository.IsValidID(id) {
		return domain.BadRequest("invalid %s ID", what)
	}
	return nil
}
