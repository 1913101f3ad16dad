package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MoneyEpsilon is the tolerance used when comparing monetary amounts, one
// minor unit (0.01 at the decimal boundary).
const MoneyEpsilon int64 = 1

// ErrInvalidAmount is returned when a decimal string cannot be parsed into minor units.
var ErrInvalidAmount = errors.New("domain: invalid monetary amount")

// ParseAmount converts a 2-dp decimal string ("150.50") into minor units.
// Plain integers and a single decimal digit are accepted; more than two
// decimals are rejected rather than rounded.
func ParseAmount(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	}
	whole, frac, _ := strings.Cut(trimmed, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two decimals", ErrInvalidAmount, value)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	amount := units*100 + cents
	if negative {
		amount = -amount
	}
	return amount, nil
}

// AmountFromFloat converts a JSON number into minor units, rounding to the
// nearest centavo.
func AmountFromFloat(value float64) int64 {
	return int64(math.Round(value * 100))
}

// FormatAmount renders minor units as a 2-dp decimal string for the JSON boundary.
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
