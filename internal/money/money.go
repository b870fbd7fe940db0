// Package money wraps shopspring/decimal with the rounding and wire
// formatting rules of the invoice core: EUR amounts carry 2 decimal places,
// quantities up to 4.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// FromFloat creates a decimal from a float without rounding. Rounding is
// applied at the operation that produces a monetary amount, not at ingestion,
// so unit prices keep their sub-cent precision.
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// FromPtr creates a decimal from a nullable float, zero when absent.
func FromPtr(p *float64) decimal.Decimal {
	if p == nil {
		return Zero
	}
	return decimal.NewFromFloat(*p)
}

// LineTotal computes quantity * unit price, rounded to cents.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

// VATAmount computes basis * (rate/100), rounded to cents.
func VATAmount(basis, ratePercent decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return basis.Mul(ratePercent).Div(hundred).Round(2)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// FormatAmount serializes a monetary amount with exactly 2 decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// FormatRate serializes a VAT percentage with 2 decimal places.
func FormatRate(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// FormatQuantity serializes a quantity with up to 4 decimal places, trimming
// trailing zeros beyond the second.
func FormatQuantity(d decimal.Decimal) string {
	s := d.Round(4).StringFixed(4)
	dot := strings.IndexByte(s, '.')
	for len(s)-dot-1 > 2 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s
}
