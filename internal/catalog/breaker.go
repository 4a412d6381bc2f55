package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"go.uber.org/zap"
)

// BreakerCatalog guards a Catalog with a circuit breaker. Lookups that fail
// because the product does not exist count as successes.
type BreakerCatalog struct {
	next    Catalog
	breaker *circuitbreaker.Breaker
}

// NewBreakerCatalog wraps next. settings.IsSuccessful is overridden.
func NewBreakerCatalog(next Catalog, settings circuitbreaker.Settings, log *zap.Logger) *BreakerCatalog {
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled)
	}
	return &BreakerCatalog{next: next, breaker: circuitbreaker.New(settings, log)}
}

func (c *BreakerCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return guard(c.breaker, func() (*domain.Product, error) {
		return c.next.GetProduct(ctx, id)
	})
}

func (c *BreakerCatalog) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return guard(c.breaker, func() (*domain.Product, error) {
		return c.next.GetProductBySlug(ctx, slug)
	})
}

func (c *BreakerCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return guard(c.breaker, func() ([]domain.Product, error) {
		return c.next.ListProducts(ctx)
	})
}

func guard[T any](b *circuitbreaker.Breaker, fn func() (T, error)) (T, error) {
	v, err := circuitbreaker.Execute(b, fn)
	if circuitbreaker.IsRejected(err) {
		return v, fmt.Errorf("%w: catalog: %w", domain.ErrUnavailable, err)
	}
	return v, err
}
