package converter

import "math"

// Money moves through the engine as int64 cents so settlement arithmetic
// stays exact. Floats exist only at the JSON boundary.

func AmountToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func CentsToAmount(cents int64) float64 {
	return float64(cents) / 100
}
