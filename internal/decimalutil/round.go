// Package decimalutil holds the fixed-point helpers every other package in
// vaultex builds on. Nothing here is domain-specific: it is the rounding and
// saturation vocabulary the matching core needs to stay deterministic across
// replicas.
package decimalutil

import "github.com/shopspring/decimal"

// Scale is the uniform fractional precision every user-visible quantity is
// rounded to after an arithmetic step.
const Scale = 9

// RoundOff truncates x toward zero at Scale fractional digits. This is the
// only rounding mode used anywhere in the engine; Go's shopspring/decimal
// Truncate already rounds toward zero so no extra sign handling is needed.
func RoundOff(x decimal.Decimal) decimal.Decimal {
	return x.Truncate(Scale)
}

// SatSub returns max(a-b, 0). Balances and quantities are never allowed to
// go negative, so every subtraction in the engine goes through this.
func SatSub(a, b decimal.Decimal) decimal.Decimal {
	r := a.Sub(b)
	if r.Cmp(decimal.Zero) < 0 {
		return decimal.Zero
	}
	return r
}

// SatAdd mirrors SatSub for symmetry with the source's saturating_add; in
// practice operands here are never negative, but clamping keeps the two
// helpers interchangeable wherever a saturating op is called for.
func SatAdd(a, b decimal.Decimal) decimal.Decimal {
	r := a.Add(b)
	if r.Cmp(decimal.Zero) < 0 {
		return decimal.Zero
	}
	return r
}

// CheckedDiv returns a/b, or zero when b is zero, instead of panicking.
func CheckedDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.Cmp(decimal.Zero) == 0 {
		return decimal.Zero
	}
	return a.Div(b)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
