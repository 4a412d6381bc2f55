package repository

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
)

var (
	ErrItemNotFound = fmt.Errorf("line item %w", domain.ErrNotFound)

	// ErrQuantityLimit is returned when a write would push a line item
	// above domain.MaxQuantity. The item is left unchanged.
	ErrQuantityLimit = fmt.Errorf("%w: quantity exceeds %d", domain.ErrInvalidArgument, domain.MaxQuantity)
)

func checkQuantity(quantity int) error {
	if quantity > domain.MaxQuantity {
		return ErrQuantityLimit
	}
	return nil
}

// CartRepository defines the interface for cart line item storage.
// Consumers define this interface, not the storage implementations.
type CartRepository interface {
	// ListItems returns the user's line items in insertion order.
	ListItems(ctx context.Context, userID string) ([]domain.LineItem, error)

	// AddItem merges quantity into the user's existing line item for the
	// product, or creates one. The check-and-insert is atomic. A merge that
	// would exceed domain.MaxQuantity fails with ErrQuantityLimit.
	AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.LineItem, error)

	GetItem(ctx context.Context, id string) (*domain.LineItem, error)
	UpdateItemQuantity(ctx context.Context, id string, quantity int) (*domain.LineItem, error)

	// RemoveItem deletes the line item and returns what was removed.
	RemoveItem(ctx context.Context, id string) (*domain.LineItem, error)

	// DeleteCart removes every line item of the user. An empty cart is not an error.
	DeleteCart(ctx context.Context, userID string) error

	Ping(ctx context.Context) error
}
