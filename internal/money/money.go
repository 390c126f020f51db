package money

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the precision of the settlement currency: amounts are
// accounted as integer multiples of 10^-6 USD (stablecoin atoms).
const Decimals = 6

var atomsPerUSD = decimal.New(1, Decimals)

// ParseUSD converts a decimal USD string to integer base units without
// floating-point rounding. Values with more than Decimals fractional
// digits or a negative sign are rejected.
func ParseUSD(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse usd amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("usd amount %q cannot be negative", s)
	}
	scaled := d.Mul(atomsPerUSD)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("usd amount %q exceeds %d decimal places", s, Decimals)
	}
	return scaled.BigInt(), nil
}

// MustParseUSD is ParseUSD for trusted literals; panics on error.
func MustParseUSD(s string) *big.Int {
	v, err := ParseUSD(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUSD renders base units as a fixed-point USD string for
// diagnostics and CLI output.
func FormatUSD(atoms *big.Int) string {
	if atoms == nil {
		return "0.000000"
	}
	return decimal.NewFromBigInt(atoms, -Decimals).StringFixed(Decimals)
}
