package domain

import "time"

// LineItem is one product row in a user's cart. At most one line item exists
// per (UserID, ProductID) pair and Quantity is always at least 1.
type LineItem struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	ProductID int64     `json:"product_id" bson:"product_id"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// CartLine is a line item joined with the current snapshot of its product.
type CartLine struct {
	LineItem
	Product Product `json:"product"`
}

type CartView struct {
	UserID string     `json:"user_id"`
	Items  []CartLine `json:"items"`
	Totals
}

func NewCartView(userID string, lines []CartLine) *CartView {
	if lines == nil {
		lines = []CartLine{}
	}
	return &CartView{
		UserID: userID,
		Items:  lines,
		Totals: ComputeTotals(lines),
	}
}
