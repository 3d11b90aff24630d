package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_food/internal/cache"
	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
	"github.com/fjod/go_food/internal/telemetry"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// errNoCart stops a mutation that must not create a cart.
var errNoCart = errors.New("no active cart")

type AddItemInput struct {
	ProductID     string           `json:"product_id" validate:"required"`
	Quantity      int              `json:"quantity" validate:"min=1,max=99"`
	Customization []SelectionInput `json:"customization" validate:"dive"`
	AddOnIDs      []string         `json:"add_on_ids"`
	Notes         string           `json:"notes" validate:"max=500"`
}

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	resolver lineResolver
	delivery DeliveryFeeCalculator
	taxRate  decimal.Decimal
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	catalog repository.CatalogRepository,
	cartCache cache.CartCache,
	delivery DeliveryFeeCalculator,
	settings Settings,
	logger *slog.Logger,
	metrics *telemetry.Metrics,
) *CartService {
	return &CartService{
		repo:     repo,
		cache:    cartCache,
		resolver: lineResolver{catalog: catalog},
		delivery: delivery,
		taxRate:  settings.TaxRate,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// GetCart returns the active cart, or an empty cart value when the user has none.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, gen, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		fill := errors.Is(err, cache.ErrCacheMiss)
		if !fill {
			s.logger.WarnContext(ctx, "cart cache get failed", "user_id", userID, "error", err)
		}

		cart, err = s.repo.GetActiveCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(userID, s.now()), nil
		}
		if err != nil {
			return nil, err
		}

		if fill {
			go s.fillCache(userID, cart, gen)
		}
		return cart, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return v.(*domain.Cart), nil
}

// AddItem prices the line at current catalog prices and merges it into the cart.
// A product from another store replaces the cart's contents.
func (s *CartService) AddItem(ctx context.Context, userID string, in AddItemInput) (*domain.Cart, error) {
	if err := validateQuantity(in.Quantity); err != nil {
		return nil, err
	}
	line, product, err := s.resolver.NewLine(ctx, in.ProductID, in.Quantity, in.Customization, in.AddOnIDs, in.Notes, s.now())
	if err != nil {
		return nil, err
	}

	cart, err := s.mutate(ctx, userID, true, func(cart *domain.Cart) error {
		if cart.SwitchStore(product.StoreID) {
			s.logger.InfoContext(ctx, "cart switched store", "user_id", userID, "store_id", product.StoreID)
		}
		return mergeLine(cart, line, false)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// MergeItems adds already priced lines for one store, applying the store switch
// rule. Merged quantities are capped at the line maximum.
func (s *CartService) MergeItems(ctx context.Context, userID, storeID string, items []domain.CartItem) (*domain.Cart, error) {
	return s.mutate(ctx, userID, true, func(cart *domain.Cart) error {
		cart.SwitchStore(storeID)
		for _, item := range items {
			if err := mergeLine(cart, item, true); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.BadRequest("quantity must be at least %d; remove the item instead", domain.MinItemQuantity)
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	return s.mutateExisting(ctx, userID, func(cart *domain.Cart) error {
		idx := cart.FindItem(itemID)
		if idx < 0 {
			return domain.NotFound("item not found in cart")
		}
		cart.Items[idx].Quantity = quantity
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	return s.mutateExisting(ctx, userID, func(cart *domain.Cart) error {
		idx := cart.FindItem(itemID)
		if idx < 0 {
			return domain.NotFound("item not found in cart")
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return nil
	})
}

// ClearCart empties the active cart. Without one it is a no-op.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.mutate(ctx, userID, false, func(cart *domain.Cart) error {
		cart.Clear()
		return nil
	})
	if errors.Is(err, errNoCart) {
		return domain.NewCart(userID, s.now()), nil
	}
	return cart, err
}

// ValidateCart re-checks availability with the same rules checkout applies.
func (s *CartService) ValidateCart(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	cart, err := s.repo.GetActiveCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, domain.InvalidState("cart is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("validate cart: %w", err)
	}
	return buildSnapshot(ctx, s.resolver, cart, s.taxRate, s.now())
}

// SetDeliveryAddress stores the address and reprices delivery. An empty address
// means pickup.
func (s *CartService) SetDeliveryAddress(ctx context.Context, userID, address string) (*domain.Cart, error) {
	return s.mutateNonEmpty(ctx, userID, func(cart *domain.Cart) error {
		cart.DeliveryAddress = strings.TrimSpace(address)
		return nil
	})
}

// requoteDelivery prices delivery for the cart's current subtotal, so crossing
// the free delivery threshold in either direction updates the fee.
func (s *CartService) requoteDelivery(ctx context.Context, cart *domain.Cart) error {
	if cart.IsEmpty() || cart.DeliveryAddress == "" {
		cart.DeliveryFee = decimal.Zero
		return nil
	}
	quote, err := s.delivery.Quote(ctx, cart.StoreID, cart.DeliveryAddress, cart.Subtotal)
	if err != nil {
		return err
	}
	cart.DeliveryFee = quote.DeliveryFee
	return nil
}

func (s *CartService) SetNotes(ctx context.Context, userID, notes string) (*domain.Cart, error) {
	return s.mutateNonEmpty(ctx, userID, func(cart *domain.Cart) error {
		cart.Notes = notes
		return nil
	})
}

func (s *CartService) GetSummary(ctx context.Context, userID string) (*domain.CartSummary, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cart.Summary(), nil
}

func (s *CartService) mutateExisting(ctx context.Context, userID string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.mutate(ctx, userID, false, fn)
	if errors.Is(err, errNoCart) {
		return nil, domain.NotFound("item not found in cart")
	}
	return cart, err
}

func (s *CartService) mutateNonEmpty(ctx context.Context, userID string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.mutate(ctx, userID, false, func(cart *domain.Cart) error {
		if cart.IsEmpty() {
			return domain.InvalidState("cart is empty")
		}
		return fn(cart)
	})
	if errors.Is(err, errNoCart) {
		return nil, domain.InvalidState("cart is empty")
	}
	return cart, err
}

// mutate reads the active cart, applies fn, recomputes totals and writes it back
// conditionally on the version read. A lost race re-reads and re-applies fn.
func (s *CartService) mutate(ctx context.Context, userID string, create bool, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		cart, err := s.repo.GetActiveCart(ctx, userID)
		isNew := false
		switch {
		case errors.Is(err, repository.ErrCartNotFound):
			if !create {
				return nil, errNoCart
			}
			cart = domain.NewCart(userID, s.now())
			cart.ID = repository.NewID()
			isNew = true
		case err != nil:
			return nil, fmt.Errorf("load cart: %w", err)
		}

		if err := fn(cart); err != nil {
			return nil, err
		}
		domain.RecalculateCart(cart, s.taxRate)
		if err := s.requoteDelivery(ctx, cart); err != nil {
			return nil, err
		}
		domain.RecalculateCart(cart, s.taxRate)
		cart.UpdatedAt = s.now()

		if isNew {
			err = s.repo.CreateCart(ctx, cart)
		} else {
			err = s.repo.ReplaceCart(ctx, cart, cart.Version)
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			s.metrics.CartConflict(ctx)
			s.logger.DebugContext(ctx, "cart write conflict", "user_id", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}

		s.invalidateCache(ctx, userID)
		return cart, nil
	}
	return nil, domain.InvalidState("cart was modified concurrently, please retry")
}

// fillCache stores a cart read under gen. A write that invalidated the entry
// in the meantime wins and the fill is dropped.
func (s *CartService) fillCache(userID string, cart *domain.Cart, gen cache.Generation) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.cache.Set(ctx, userID, cart, gen)
	if errors.Is(err, cache.ErrStale) {
		s.logger.Debug("cart cache fill dropped, cart changed", "user_id", userID)
		return
	}
	if err != nil {
		s.logger.Warn("cart cache set failed", "user_id", userID, "error", err)
	}
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "cart cache invalidate failed", "user_id", userID, "error", err)
	}
}

// mergeLine sums quantities into an identical configuration or appends the line.
func mergeLine(cart *domain.Cart, line domain.CartItem, capQuantity bool) error {
	idx := cart.FindSameConfiguration(line)
	if idx < 0 {
		if capQuantity && line.Quantity > domain.MaxItemQuantity {
			line.Quantity = domain.MaxItemQuantity
		}
		cart.Items = append(cart.Items, line)
		return nil
	}

	existing := &cart.Items[idx]
	quantity := existing.Quantity + line.Quantity
	if quantity > domain.MaxItemQuantity {
		if !capQuantity {
			return domain.BadRequest("quantity for %s cannot exceed %d", existing.ProductName, domain.MaxItemQuantity)
		}
		quantity = domain.MaxItemQuantity
	}
	existing.Quantity = quantity
	existing.UnitPrice = line.UnitPrice
	existing.ProductName = line.ProductName
	existing.Customization = line.Customization
	existing.AddOns = line.AddOns
	if line.Notes != "" {
		existing.Notes = line.Notes
	}
	return nil
}

func validateQuantity(quantity int) error {
	if quantity < domain.MinItemQuantity || quantity > domain.MaxItemQuantity {
		return domain.BadRequest("quantity must be between %d and %d", domain.MinItemQuantity, domain.MaxItemQuantity)
	}
	return nil
}
