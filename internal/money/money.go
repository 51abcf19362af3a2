// Package money holds the console's monetary arithmetic. Every amount is a
// decimal rounded to two places; floats only appear at display time.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinRate is the smallest rate the backend accepts on an invoice.
var MinRate = decimal.RequireFromString("0.01")

// Round2 rounds half away from zero to two decimals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineAmount is rate × quantity rounded to two decimals.
func LineAmount(rate, quantity decimal.Decimal) decimal.Decimal {
	return rate.Mul(quantity).Round(2)
}

// Sum adds the amounts and rounds the result.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total.Round(2)
}

// Fixed renders d with exactly two decimals ("500.00").
func Fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Parse reads a user-entered amount. Blank input is zero; thousands
// separators and surrounding spaces are tolerated.
func Parse(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: invalid amount %q", raw)
	}
	return d, nil
}

// Positive reports whether d is strictly greater than zero.
func Positive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}
