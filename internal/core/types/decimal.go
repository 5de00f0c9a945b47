// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fraction digits used for display and persistence.
const MoneyScale int32 = 2

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// NewMoneyFromInt creates a Money value from a whole amount.
func NewMoneyFromInt(v int64) Money {
	return decimal.NewFromInt(v)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

var hundred = decimal.NewFromInt(100)

// Percent returns amount × rate / 100 without intermediate rounding.
func Percent(amount Money, rate decimal.Decimal) Money {
	return amount.Mul(rate).Div(hundred)
}

// RoundMoney applies round-half-even to MoneyScale digits.
// Call it once, at the boundary where a value leaves the calculation.
func RoundMoney(m Money) Money {
	return m.RoundBank(MoneyScale)
}

// FormatMoney renders m as a fixed 2-digit decimal string (half-even).
func FormatMoney(m Money) string {
	return m.StringFixedBank(MoneyScale)
}

// ClampZero returns max(0, m) and whether clamping happened.
func ClampZero(m Money) (Money, bool) {
	if m.IsNegative() {
		return decimal.Zero, true
	}
	return m, false
}
