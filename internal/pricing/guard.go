package pricing

import "math"

// Role is the semantic role of a value crossing the persistence boundary.
type Role int

const (
	Money Role = iota
	Quantity
	Percent
)

// Ceilings sit comfortably under the store's signed 32-bit column range.
const (
	maxMoney    = 1_000_000
	maxQuantity = 10_000
	maxPercent  = 100
)

// Clamp floors x to a non-negative integer bounded by the role's ceiling.
// NaN and infinities collapse to 0. Applied exactly once, immediately before
// a write; in-memory figures keep full precision.
func Clamp(x float64, role Role) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	v := math.Floor(x)
	if v < 0 {
		return 0
	}
	var ceil float64
	switch role {
	case Money:
		ceil = maxMoney
	case Quantity:
		ceil = maxQuantity
	case Percent:
		ceil = maxPercent
	default:
		ceil = maxMoney
	}
	if v > ceil {
		return ceil
	}
	return v
}
