package notification_handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/types"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrInvalidPayload      = errors.New("invalid notification payload")
	ErrInvalidSignature    = errors.New("invalid notification signature")
)

// NotificationParser extracts what reconciliation needs from one provider
// delivery. The status it carries is informational only: the provider's
// status API stays the source of truth.
type NotificationParser interface {
	GetProvider(ctx context.Context) types.PaymentProvider
	GetNotificationTime(ctx context.Context) time.Time
	GetBillID(ctx context.Context) string
	GetOrderRef(ctx context.Context) string
	GetUserID(ctx context.Context) (string, error)
	GetPlanID(ctx context.Context) (string, error)
	GetStatusCode(ctx context.Context) string
	GetData(ctx context.Context) any
}

// GetNotificationParser decodes body for p.
func GetNotificationParser(cfg *config.Config, p types.PaymentProvider, body []byte, now time.Time) (NotificationParser, error) {
	var (
		cb  *callback
		err error
	)
	switch p {
	case types.PaymentProviderToyyibPay:
		cb, err = parseToyyibPay(body)
	case types.PaymentProviderHitPay:
		cb, err = parseHitPay(cfg.Providers.HitPay.WebhookSalt, body)
	case types.PaymentProviderChip:
		cb, err = parseChip(body)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
	}
	if err != nil {
		return nil, err
	}
	if cb.billID == "" {
		return nil, fmt.Errorf("%w: %s delivery has no bill id", ErrInvalidPayload, p)
	}
	cb.provider = p
	cb.receivedAt = now
	return cb, nil
}

func decodeOne(p types.PaymentProvider, body []byte) (provider.Record, error) {
	records, err := provider.DecodeRecords(p, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("%w: expected one object, got %d", ErrInvalidPayload, len(records))
	}
	return records[0], nil
}

// callback is the provider-neutral view of a delivery.
type callback struct {
	provider   types.PaymentProvider
	receivedAt time.Time
	billID     string
	orderRef   string
	statusCode string
	data       provider.Record
}

func (c *callback) GetProvider(context.Context) types.PaymentProvider { return c.provider }

func (c *callback) GetNotificationTime(context.Context) time.Time { return c.receivedAt }

func (c *callback) GetBillID(context.Context) string { return c.billID }

func (c *callback) GetOrderRef(context.Context) string { return c.orderRef }

func (c *callback) GetUserID(context.Context) (string, error) {
	userID, _, ok := types.ParseOrderRef(c.orderRef)
	if !ok {
		return "", fmt.Errorf("order reference %q is not {userId}_{planId}", c.orderRef)
	}
	return userID, nil
}

func (c *callback) GetPlanID(context.Context) (string, error) {
	_, planID, ok := types.ParseOrderRef(c.orderRef)
	if !ok {
		return "", fmt.Errorf("order reference %q is not {userId}_{planId}", c.orderRef)
	}
	return planID, nil
}

func (c *callback) GetStatusCode(context.Context) string { return c.statusCode }

func (c *callback) GetData(context.Context) any { return c.data }
