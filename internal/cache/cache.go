package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_food/internal/domain"
)

// Generation counts invalidations of one user's cart entry. A fill is only
// stored if no invalidation happened since the generation it was read under.
type Generation int64

// CartCache holds the active cart per user. It is only ever a read shortcut:
// every write goes to the repository and then invalidates the entry.
type CartCache interface {
	// Get returns the cached cart. On ErrCacheMiss the returned generation is
	// the one a following Set must present.
	Get(ctx context.Context, userID string) (*domain.Cart, Generation, error)
	// Set stores cart unless the entry was invalidated after gen was read,
	// in which case it returns ErrStale and stores nothing.
	Set(ctx context.Context, userID string, cart *domain.Cart, gen Generation) error
	Invalidate(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrStale     = errors.New("cache entry invalidated since read")
)
