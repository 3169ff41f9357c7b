package entities

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the decimal scale of the native coin
const NativeDecimals = 8

// FormatAmount converts a minor-unit amount into display units.
// Exact multiples of the scale render without a fractional part,
// anything else renders with exactly decimals fractional digits.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	d := decimal.NewFromBigInt(amount, int32(-decimals))
	if d.IsInteger() {
		return d.BigInt().String()
	}
	return d.StringFixed(int32(decimals))
}

// ParseAmount converts a display amount back into minor units
func ParseAmount(s string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d fractional digits", s, decimals)
	}
	return shifted.BigInt(), nil
}

// DecimalsFor returns the decimal scale for a token type
func DecimalsFor(tokenType string) int {
	if decimals, ok := knownDecimals[tokenType]; ok {
		return decimals
	}
	return NativeDecimals
}

var knownDecimals = map[string]int{
	NativeTokenType: NativeDecimals,
}

// ParseMinorUnits parses a base-10 non-negative integer amount
func ParseMinorUnits(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
