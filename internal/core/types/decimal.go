// Package types provides shared value types.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a monetary amount with full decimal precision.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits kept for prices.
const MoneyScale int32 = 2

// ParseMoney parses s and rejects amounts with more than MoneyScale fractional digits.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	if d.Exponent() < -MoneyScale && !d.Equal(d.Round(MoneyScale)) {
		return decimal.Zero, fmt.Errorf("money %q has more than %d fractional digits", s, MoneyScale)
	}
	return d.Round(MoneyScale), nil
}

// MustMoney parses s, panicking on error. Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsValidPrice reports whether m is a usable price: non-negative and at MoneyScale.
func IsValidPrice(m Money) bool {
	return !m.IsNegative() && m.Equal(m.Round(MoneyScale))
}
