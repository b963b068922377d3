// Package types provides monetary value helpers shared by the fulfillment core.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Percent is a commission rate expressed in percent (10 means 10%).
type Percent = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// NewMoney creates a Money value from an integer amount.
func NewMoney(v int64) Money {
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

// NewPercent creates a Percent from a float (request payloads carry JSON numbers).
func NewPercent(f float64) Percent {
	return decimal.NewFromFloat(f)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// FloorPercent returns floor(base × rate / 100).
// Every commission amount in the ledger is computed with this function.
func FloorPercent(base Money, rate Percent) Money {
	return base.Mul(rate).Div(hundred).Floor()
}

// ValidPercent reports whether rate lies within 0..100.
func ValidPercent(rate Percent) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(hundred)
}
