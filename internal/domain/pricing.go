package domain

import "github.com/shopspring/decimal"

// TargetPrice computes the resting price offsetTicks away from the
// current top-of-book: below it for BUY, above it for SELL. The result is
// clamped to [MinPrice, MaxPrice] and rounded to the 0.001 tick grid.
func TargetPrice(current float64, side Side, offsetTicks int) float64 {
	cur := decimal.NewFromFloat(current)
	off := decimal.NewFromInt(int64(offsetTicks)).Mul(decimal.NewFromFloat(TickSize))

	var target decimal.Decimal
	if side == SideSell {
		target = cur.Add(off)
	} else {
		target = cur.Sub(off)
	}
	target = target.Round(3)

	min := decimal.NewFromFloat(MinPrice)
	max := decimal.NewFromFloat(MaxPrice)
	if target.LessThan(min) {
		target = min
	}
	if target.GreaterThan(max) {
		target = max
	}

	f, _ := target.Float64()
	return f
}

// DriftCents is the absolute distance between two prices in cents.
// Computed on decimals so 3-decimal prices never pick up float dust.
func DriftCents(oldPrice, newPrice float64) float64 {
	diff := decimal.NewFromFloat(newPrice).Sub(decimal.NewFromFloat(oldPrice)).Abs()
	f, _ := diff.Mul(decimal.NewFromInt(100)).Float64()
	return f
}
