package reconcile

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentMismatch means the caller's user or plan disagrees with the stored bill.
	ErrPaymentMismatch = errors.New("payment does not match user or plan")
	// ErrRetryable leaves the payment pending. The caller should try again later.
	ErrRetryable = errors.New("payment status temporarily unavailable")
	// ErrNeedsManualReview leaves the payment pending until an operator looks at it.
	ErrNeedsManualReview = errors.New("payment needs manual review")
	ErrPartialActivation = errors.New("payment completed but activation failed")
)

// PartialActivationError is returned when the bill is already marked
// completed but the ledger or profile could not be updated. The payment is
// not rolled back; Recover finishes the activation.
type PartialActivationError struct {
	BillID string
	UserID string
	PlanID string
	Stage  string
	Err    error
}

func (e *PartialActivationError) Error() string {
	return fmt.Sprintf("%s: bill %s user %s plan %s at %s: %v", ErrPartialActivation, e.BillID, e.UserID, e.PlanID, e.Stage, e.Err)
}

func (e *PartialActivationError) Unwrap() []error {
	return []error{ErrPartialActivation, e.Err}
}

// ErrorOutcome classifies err into a short label for metrics and logs.
func ErrorOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, ErrPaymentNotFound):
		return "not_found"
	case errors.Is(err, ErrPaymentMismatch):
		return "mismatch"
	case errors.Is(err, ErrRetryable):
		return "retryable"
	case errors.Is(err, ErrNeedsManualReview):
		return "manual_review"
	case errors.Is(err, ErrPartialActivation):
		return "partial_activation"
	default:
		return "error"
	}
}
