package response

// APIResponseCode is the envelope code of read endpoints.
type APIResponseCode int

const (
	APIResponseCodeOK         APIResponseCode = 0
	APIResponseCodeBadRequest APIResponseCode = 40000
	APIResponseCodeNotFound   APIResponseCode = 40400
	APIResponseCodeError      APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:         "ok",
	APIResponseCodeBadRequest: "bad request",
	APIResponseCodeNotFound:   "not found",
	APIResponseCodeError:      "internal error",
}

// APIResponse is the generic response envelope used by read and admin APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// SubscriptionInfo summarizes the ledger change made by a reconciliation.
type SubscriptionInfo struct {
	ActionTaken            string `json:"actionTaken"`
	DaysAdded              int    `json:"daysAdded"`
	PreviousSubscriptionID string `json:"previousSubscriptionId,omitempty"`
	NewSubscriptionID      string `json:"newSubscriptionId,omitempty"`
}

// PaymentResult is the body returned by payment verification, webhook and recovery endpoints.
type PaymentResult struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message,omitempty"`
	Error            string            `json:"error,omitempty"`
	SubscriptionInfo *SubscriptionInfo `json:"subscriptionInfo,omitempty"`
}

func PaymentOK(message string, info *SubscriptionInfo) *PaymentResult {
	return &PaymentResult{Success: true, Message: message, SubscriptionInfo: info}
}

// PaymentNotOK reports a non-error, non-success outcome such as a failed or pending payment.
func PaymentNotOK(message string) *PaymentResult {
	return &PaymentResult{Success: false, Message: message}
}

func PaymentError(err string) *PaymentResult {
	return &PaymentResult{Success: false, Error: err}
}
