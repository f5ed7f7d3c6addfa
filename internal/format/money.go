// Package format renders projection numbers the way the results dashboard
// displays them.
package format

import (
	"github.com/shopspring/decimal"
)

var (
	million         = decimal.NewFromInt(1_000_000)
	hundredThousand = decimal.NewFromInt(100_000)
	thousand        = decimal.NewFromInt(1_000)
)

// Money formats a dollar amount: $X.XM at or above one million, $XXXK from
// $100K up to one million, and a whole-dollar $X below that. Halves round
// away from zero.
func Money(v float64) string {
	d := decimal.NewFromFloat(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	switch {
	case d.GreaterThanOrEqual(million):
		return sign + "$" + d.Div(million).StringFixed(1) + "M"
	case d.GreaterThanOrEqual(hundredThousand):
		return sign + "$" + d.Div(thousand).StringFixed(0) + "K"
	default:
		return sign + "$" + d.StringFixed(0)
	}
}

// Percent formats a percentage with one decimal place.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

// RoundDollars rounds to whole dollars, halves away from zero.
func RoundDollars(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(0).Float64()
	return f
}

// RoundPercent rounds a percentage to one decimal place.
func RoundPercent(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}
