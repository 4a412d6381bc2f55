package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryCatalog serves products from a map. Safe for concurrent use.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

func NewMemoryCatalog(products ...domain.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[int64]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// NewSeededMemoryCatalog returns a catalog holding the storefront's default products.
func NewSeededMemoryCatalog() *MemoryCatalog {
	return NewMemoryCatalog(SeedProducts()...)
}

// Put inserts or replaces a product.
func (c *MemoryCatalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryCatalog) Delete(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (c *MemoryCatalog) GetProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, ErrProductNotFound
}

func (c *MemoryCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	products := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		products = append(products, p)
	}
	c.mu.RUnlock()

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func discount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// SeedProducts is the handcrafted storefront range. Some discount prices sit
// above the base price; those are never charged.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{
			ID:            1,
			Name:          "Dokra Horse Figurine",
			Slug:          "dokra-horse-figurine",
			Description:   "Handcrafted brass horse using traditional lost-wax technique.",
			Image:         "https://images.unsplash.com/photo-1596462502278-27bfdc403348?auto=format&fit=crop&w=600&h=600&q=80",
			Price:         price(2450),
			DiscountPrice: discount(2950),
		},
		{
			ID:          2,
			Name:        "Dokra Elephant Figurine",
			Slug:        "dokra-elephant-figurine",
			Description: "Traditional brass elephant with detailed texture and patina finish.",
			Image:       "https://images.unsplash.com/photo-1612810806695-30f7a8258391?auto=format&fit=crop&w=600&h=600&q=80",
			Price:       price(3200),
		},
		{
			ID:          3,
			Name:        "Kantha Embroidered Wall Hanging",
			Slug:        "kantha-embroidered-wall-hanging",
			Description: "Traditional hand-stitched cotton fabric with nature motifs.",
			Image:       "https://images.unsplash.com/photo-1617713964959-d9a36bbc7b52?auto=format&fit=crop&w=600&h=600&q=80",
			Price:       price(3200),
		},
		{
			ID:            4,
			Name:          "Terracotta Decorative Pot",
			Slug:          "terracotta-decorative-pot",
			Description:   "Hand-sculpted clay pot with traditional Bengali motifs.",
			Image:         "https://images.unsplash.com/photo-1603204077779-bed963ea7d0e?auto=format&fit=crop&w=600&h=600&q=80",
			Price:         price(1850),
			DiscountPrice: discount(2100),
		},
		{
			ID:          5,
			Name:        "Shitalpati Floor Mat",
			Slug:        "shitalpati-floor-mat",
			Description: "Natural reed mat with cooling properties and geometric designs.",
			Image:       "https://images.unsplash.com/photo-1616486338812-3dadae4b4ace?auto=format&fit=crop&w=600&h=600&q=80",
			Price:       price(1650),
		},
	}
}
