package notification_handler

import (
	"fmt"

	"github.com/fatflowers/paysync/internal/platform/chip"
	"github.com/fatflowers/paysync/pkg/types"
)

// parseChip reads a CHIP purchase callback, which has the purchase object shape.
func parseChip(body []byte) (*callback, error) {
	rec, err := decodeOne(types.PaymentProviderChip, body)
	if err != nil {
		return nil, err
	}
	if _, err := chip.ParsePurchase(rec, body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return &callback{
		billID:     rec.String("id"),
		orderRef:   rec.String("reference"),
		statusCode: chip.StatusCode(rec.String("status")),
		data:       rec,
	}, nil
}
