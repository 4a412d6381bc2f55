package domain

import "github.com/shopspring/decimal"

type Totals struct {
	TotalItems int             `json:"total_items"`
	CartTotal  decimal.Decimal `json:"cart_total"`
}

// ComputeTotals derives item count and price total from the given lines.
// Prices are read from the joined product on every call and are never cached.
func ComputeTotals(lines []CartLine) Totals {
	t := Totals{CartTotal: decimal.Zero}
	for _, l := range lines {
		t.TotalItems += l.Quantity
		t.CartTotal = t.CartTotal.Add(l.Product.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return t
}
