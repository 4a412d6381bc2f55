package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/internal/domain"
)

// CartCache caches a user's line items. Every invalidation bumps a per-user
// version; Set only writes when the version still matches the one observed
// before the items were read from the store.
type CartCache interface {
	Get(ctx context.Context, userID string) ([]domain.LineItem, error)
	Version(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, version int64, items []domain.LineItem) error
	Delete(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStale is returned by Set when the cart changed after the version was read.
	ErrStale = errors.New("cache entry stale")
)

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]domain.LineItem, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Version(context.Context, string) (int64, error) { return 0, nil }

func (NopCache) Set(context.Context, string, int64, []domain.LineItem) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }

func (NopCache) Ping(context.Context) error { return nil }
