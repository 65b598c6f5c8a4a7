package apportion

import "github.com/shopspring/decimal"

// ProportionCalculator computes rounded proportional shares and the part of a
// rounding residual a single item is allowed to absorb.
type ProportionCalculator struct{}

// Proportion returns portion/sum of total, rounded half-up to scale.
func (ProportionCalculator) Proportion(portion, sum, total decimal.Decimal, scale int32) (decimal.Decimal, error) {
	if sum.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	if portion.IsZero() || total.IsZero() {
		return decimal.Zero.Round(scale), nil
	}
	return portion.Mul(total).DivRound(sum, scale), nil
}

// ErrorAdjustment returns how much of residual can be moved onto an item whose
// basis is total and whose current share is portion. The share never leaves [0, total].
func (ProportionCalculator) ErrorAdjustment(total, portion, residual decimal.Decimal) decimal.Decimal {
	if total.IsZero() || residual.IsZero() {
		return decimal.Zero
	}
	if residual.IsPositive() {
		room := total.Sub(portion)
		if room.Sign() <= 0 {
			return decimal.Zero
		}
		return decimal.Min(residual, room)
	}
	if portion.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.Max(residual, portion.Neg())
}
