package provider

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a decimal major-unit amount ("39.90") to minor units (3990),
// truncating sub-cent digits toward zero.
func ToMinorUnits(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return d.Shift(2).Truncate(0).IntPart(), nil
}
