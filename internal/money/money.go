// Package money holds the currency conventions shared by the wallet backend
// and the wallet sync client. Amounts travel as decimals with two fractional
// digits; the ledger stores them as integer minor units.
package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by wallet amounts.
const Scale = 2

// ErrOutOfRange is returned for amounts whose minor units do not fit in an int64.
var ErrOutOfRange = errors.New("amount out of range")

// ToMinor converts an amount into ledger minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal) (int64, error) {
	minor := amount.Round(Scale).Shift(Scale).BigInt()
	if !minor.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, amount.String())
	}
	return minor.Int64(), nil
}

// HasScale reports whether amount carries at most Scale fractional digits.
func HasScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(Scale))
}

// FromMinor converts ledger minor units back into a decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}

// Number renders an amount as a JSON number with two fractional digits.
func Number(amount decimal.Decimal) json.Number {
	return json.Number(amount.StringFixed(Scale))
}

// Format renders an amount for display, e.g. "$70.00".
func Format(amount decimal.Decimal) string {
	return fmt.Sprintf("$%s", amount.StringFixed(Scale))
}
