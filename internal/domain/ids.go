package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

const maxUserIDLength = 128

// MaxQuantity bounds a line item's quantity, including the sum of merged adds.
const MaxQuantity = math.MaxInt32

// NewLineItemID returns a time-ordered identifier, so sorting by id
// preserves insertion order.
func NewLineItemID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user_id must not be empty", ErrInvalidArgument)
	}
	if len(userID) > maxUserIDLength {
		return fmt.Errorf("%w: user_id must be at most %d characters", ErrInvalidArgument, maxUserIDLength)
	}
	return nil
}

func ValidateLineItemID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed line item id %q", ErrInvalidArgument, id)
	}
	return nil
}

func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than 0", ErrInvalidArgument)
	}
	if quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must be at most %d", ErrInvalidArgument, MaxQuantity)
	}
	return nil
}

func ValidateProductID(productID int64) error {
	if productID <= 0 {
		return fmt.Errorf("%w: product_id must be greater than 0", ErrInvalidArgument)
	}
	return nil
}
