// Package pricing computes quote totals from tax-inclusive line prices.
// Everything here is pure: no I/O, no rounding. Rounding to persisted
// precision happens once, in the numeric guard, at the write boundary.
package pricing

// DiscountType selects how Discount.Value is interpreted. It is a UI-only
// choice: the persisted quote stores only the resulting absolute value.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAbsolute   DiscountType = "absolute"
)

// Discount spec as entered by the user.
type Discount struct {
	Type  DiscountType
	Value float64
}

// Line is one (unit price, quantity) pair. UnitPrice is gross (VAT-inclusive).
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Totals holds the derived figures persisted on a quote header.
type Totals struct {
	GrossSubtotal    float64
	NetSubtotal      float64
	DiscountValue    float64
	NetAfterDiscount float64
	VATAmount        float64
	Total            float64
}

// ComputeTotals backs VAT out of the gross line prices, applies the discount
// and re-applies VAT on the discounted net. vatRate is a percentage (e.g. 18).
// With no lines every output is zero. An absolute discount is clamped to the
// net subtotal so the discounted net is never negative.
func ComputeTotals(lines []Line, vatRate float64, d Discount) Totals {
	var t Totals
	for _, l := range lines {
		t.GrossSubtotal += l.UnitPrice * float64(l.Quantity)
	}
	if t.GrossSubtotal == 0 {
		return t
	}
	vatFactor := 1 + vatRate/100
	t.NetSubtotal = t.GrossSubtotal / vatFactor

	switch d.Type {
	case DiscountPercentage:
		t.DiscountValue = t.NetSubtotal * d.Value / 100
	case DiscountAbsolute:
		t.DiscountValue = d.Value
		if t.DiscountValue > t.NetSubtotal {
			t.DiscountValue = t.NetSubtotal
		}
	default:
		// no discount
	}
	t.NetAfterDiscount = t.NetSubtotal - t.DiscountValue
	if t.NetAfterDiscount < 0 {
		t.NetAfterDiscount = 0
	}
	t.VATAmount = t.NetAfterDiscount * vatRate / 100
	t.Total = t.NetAfterDiscount + t.VATAmount
	return t
}
