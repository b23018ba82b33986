package pricing

import "github.com/shopspring/decimal"

// Money is an exact currency amount in major units.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Zero is the zero amount.
var Zero = decimal.Zero

// NewMoney builds an amount from minor units (cents).
func NewMoney(cents int64) Money {
	return decimal.New(cents, -2)
}

// ParseMoney parses a decimal string such as "12.50".
func ParseMoney(value string) (Money, error) {
	return decimal.NewFromString(value)
}

// Percent returns pct percent of base.
func Percent(base Money, pct Money) Money {
	return base.Mul(pct).Div(hundred)
}

// Scale returns base reduced by pct percent, i.e. base × (1 − pct/100).
func Scale(base Money, pct Money) Money {
	return base.Mul(hundred.Sub(pct)).Div(hundred)
}

// Floor0 clamps negative amounts to zero.
func Floor0(v Money) Money {
	if v.IsNegative() {
		return Zero
	}
	return v
}

// Quantity converts an item count to a multiplier.
func Quantity(n int) Money {
	return decimal.NewFromInt(int64(n))
}

// LineTotal returns unit × count.
func LineTotal(unit Money, count int) Money {
	return unit.Mul(Quantity(count))
}
