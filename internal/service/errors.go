package service

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
)

// classify passes taxonomy errors through and reports anything else coming
// out of the store or the catalog as unavailable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
}
