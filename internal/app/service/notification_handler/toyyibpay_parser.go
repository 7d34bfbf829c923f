package notification_handler

import (
	"github.com/fatflowers/paysync/pkg/types"
)

// parseToyyibPay reads the form callback ToyyibPay posts to the bill's callback URL.
func parseToyyibPay(body []byte) (*callback, error) {
	rec, err := decodeOne(types.PaymentProviderToyyibPay, body)
	if err != nil {
		return nil, err
	}
	return &callback{
		billID:     rec.String("billcode", "billCode"),
		orderRef:   rec.String("order_id", "billExternalReferenceNo"),
		statusCode: rec.String("status_id", "status"),
		data:       rec,
	}, nil
}
