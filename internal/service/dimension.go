package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDimension parses a measured diameter.  Both "63.75" and "63,75"
// are accepted.  An empty string yields an invalid (null) value.
func ParseDimension(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d.Round(3)), nil
}

// maxDimension is the first value DECIMAL(10,3) cannot hold.
var maxDimension = decimal.New(1, 7)

func parseDimensionField(field, raw string, required bool) (decimal.NullDecimal, error) {
	d, err := ParseDimension(raw)
	if err != nil {
		return decimal.NullDecimal{}, invalid(field, "must be a number")
	}
	if required && !d.Valid {
		return decimal.NullDecimal{}, invalid(field, "is required")
	}
	if d.Valid && d.Decimal.IsNegative() {
		return decimal.NullDecimal{}, invalid(field, "must not be negative")
	}
	if d.Valid && d.Decimal.Abs().GreaterThanOrEqual(maxDimension) {
		return decimal.NullDecimal{}, invalid(field, "out of range")
	}
	return d, nil
}

// FormatDimension renders a dimension with three decimals, or "" when null.
func FormatDimension(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(3)
}
