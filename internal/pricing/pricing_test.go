package pricing

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeTotalsNoDiscount(t *testing.T) {
	// 2 x 118 gross at 18% VAT: gross 236, net 200, vat 36, total 236
	lines := []Line{{UnitPrice: 118, Quantity: 2}}
	got := ComputeTotals(lines, 18, Discount{})
	if !almostEqual(got.GrossSubtotal, 236) {
		t.Fatalf("gross: got %v want 236", got.GrossSubtotal)
	}
	if !almostEqual(got.NetSubtotal, 200) {
		t.Fatalf("net: got %v want 200", got.NetSubtotal)
	}
	if got.DiscountValue != 0 {
		t.Fatalf("discount: got %v want 0", got.DiscountValue)
	}
	if !almostEqual(got.VATAmount, 36) {
		t.Fatalf("vat: got %v want 36", got.VATAmount)
	}
	if !almostEqual(got.Total, 236) {
		t.Fatalf("total: got %v want 236", got.Total)
	}
}

func TestComputeTotalsPercentageDiscount(t *testing.T) {
	// net 1000, 10% discount, 18% VAT -> discount 100, net 900, vat 162, total 1062
	lines := []Line{{UnitPrice: 1180, Quantity: 1}}
	got := ComputeTotals(lines, 18, Discount{Type: DiscountPercentage, Value: 10})
	if !almostEqual(got.NetSubtotal, 1000) {
		t.Fatalf("net: got %v want 1000", got.NetSubtotal)
	}
	if !almostEqual(got.DiscountValue, 100) {
		t.Fatalf("discount: got %v want 100", got.DiscountValue)
	}
	if !almostEqual(got.NetAfterDiscount, 900) {
		t.Fatalf("net after discount: got %v want 900", got.NetAfterDiscount)
	}
	if !almostEqual(got.VATAmount, 162) {
		t.Fatalf("vat: got %v want 162", got.VATAmount)
	}
	if !almostEqual(got.Total, 1062) {
		t.Fatalf("total: got %v want 1062", got.Total)
	}
}

func TestComputeTotalsAbsoluteDiscountClamped(t *testing.T) {
	lines := []Line{{UnitPrice: 118, Quantity: 1}}
	got := ComputeTotals(lines, 18, Discount{Type: DiscountAbsolute, Value: 5000})
	if got.NetAfterDiscount != 0 {
		t.Fatalf("net after discount: got %v want 0", got.NetAfterDiscount)
	}
	if got.Total != 0 {
		t.Fatalf("total: got %v want 0", got.Total)
	}
	if !almostEqual(got.DiscountValue, got.NetSubtotal) {
		t.Fatalf("discount %v should be clamped to net subtotal %v", got.DiscountValue, got.NetSubtotal)
	}
}

func TestComputeTotalsZeroLines(t *testing.T) {
	got := ComputeTotals(nil, 18, Discount{Type: DiscountPercentage, Value: 50})
	if got != (Totals{}) {
		t.Fatalf("expected all-zero totals, got %#v", got)
	}
}

func TestComputeTotalsIdempotent(t *testing.T) {
	lines := []Line{{UnitPrice: 99.99, Quantity: 3}, {UnitPrice: 0.07, Quantity: 11}}
	d := Discount{Type: DiscountPercentage, Value: 7.5}
	a := ComputeTotals(lines, 17, d)
	b := ComputeTotals(lines, 17, d)
	if a != b {
		t.Fatalf("same inputs produced different totals: %#v vs %#v", a, b)
	}
}

func TestComputeTotalsInvariant(t *testing.T) {
	cases := []struct {
		price   float64
		qty     int
		vatRate float64
	}{
		{10, 1, 0}, {118, 2, 18}, {0.01, 9999, 25}, {500, 3, 99.9},
	}
	for _, c := range cases {
		got := ComputeTotals([]Line{{UnitPrice: c.price, Quantity: c.qty}}, c.vatRate, Discount{})
		want := got.NetAfterDiscount * (1 + c.vatRate/100)
		if !almostEqual(got.Total, want) {
			t.Fatalf("vat=%v: total %v, want %v", c.vatRate, got.Total, want)
		}
		if got.Total < 0 {
			t.Fatalf("negative total %v", got.Total)
		}
	}
}
