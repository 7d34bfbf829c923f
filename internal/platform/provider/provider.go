// Package provider defines the contract every payment provider status client
// implements and the helpers they share for talking to provider HTTP APIs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/paysync/pkg/types"
)

type State string

const (
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StatePending State = "pending"
)

var (
	// ErrUnavailable covers network errors, timeouts and non-2xx responses. Retry later.
	ErrUnavailable = errors.New("payment provider unavailable")
	// ErrMalformedResponse means the provider answered with something we cannot
	// interpret. It must never be read as success or failure.
	ErrMalformedResponse = errors.New("malformed payment provider response")
	ErrUnknownProvider   = errors.New("unknown payment provider")
)

// MalformedError carries the offending body for operator inspection.
type MalformedError struct {
	Provider types.PaymentProvider
	Reason   string
	Body     []byte
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedResponse, e.Provider, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformedResponse }

func malformed(p types.PaymentProvider, body []byte, format string, args ...any) error {
	return &MalformedError{Provider: p, Reason: fmt.Sprintf(format, args...), Body: body}
}

// PaymentStatus is the normalized provider view of one bill.
type PaymentStatus struct {
	State State
	// RawStatus is the provider's own status value, before normalization.
	RawStatus         string
	ProviderPaymentID string
	PaidAt            *time.Time
	// Amount paid in minor units; zero when the provider did not report one.
	Amount   int64
	Currency string
	// Raw is the response body exactly as received.
	Raw []byte
}

// StatusClient queries one provider for the ground truth of a bill. Implementations are read-only.
type StatusClient interface {
	Name() types.PaymentProvider
	FetchStatus(ctx context.Context, billID string) (*PaymentStatus, error)
}

// NormalizeStatusCode maps the provider status code convention onto State:
// "1" is success, "3" is failed, anything else is still pending.
func NormalizeStatusCode(code string) State {
	switch code {
	case "1":
		return StateSuccess
	case "3":
		return StateFailed
	default:
		return StatePending
	}
}
