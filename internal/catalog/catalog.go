// Package catalog is the read-only product lookup the cart depends on.
package catalog

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
)

var ErrProductNotFound = fmt.Errorf("product %w", domain.ErrNotFound)

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}
