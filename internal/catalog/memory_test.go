package catalog

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCatalog_Seeded(t *testing.T) {
	c := NewSeededMemoryCatalog()
	ctx := context.Background()

	products, err := c.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 5)
	for i, p := range products {
		assert.Equal(t, int64(i+1), p.ID)
	}

	horse, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Dokra Horse Figurine", horse.Name)
	// discount above base price is never charged
	assert.Equal(t, "2450", horse.EffectivePrice().String())

	pot, err := c.GetProductBySlug(ctx, "terracotta-decorative-pot")
	require.NoError(t, err)
	assert.Equal(t, int64(4), pot.ID)
}

func TestMemoryCatalog_NotFound(t *testing.T) {
	c := NewSeededMemoryCatalog()

	_, err := c.GetProduct(context.Background(), 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.GetProductBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryCatalog_PutDelete(t *testing.T) {
	c := NewMemoryCatalog()
	c.Put(domain.Product{ID: 9, Name: "Mat", Price: price(100)})

	p, err := c.GetProduct(context.Background(), 9)
	require.NoError(t, err)
	p.Name = "changed"

	again, err := c.GetProduct(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Mat", again.Name)

	c.Delete(9)
	_, err = c.GetProduct(context.Background(), 9)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
