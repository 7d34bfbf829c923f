// Package hitpay queries HitPay payment requests.
package hitpay

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/metrics"
	"github.com/fatflowers/paysync/pkg/types"
)

const paymentRequestsPath = "/v1/payment-requests/"

type Client struct {
	http    *provider.HTTPClient
	baseURL string
	apiKey  string
}

func New(cfg *config.Config, rec *metrics.Recorder) *Client {
	pc := cfg.Providers.HitPay
	return &Client{
		http:    provider.NewHTTPClient(types.PaymentProviderHitPay, pc, rec),
		baseURL: strings.TrimRight(pc.BaseURL, "/"),
		apiKey:  pc.SecretKey,
	}
}

func (c *Client) Name() types.PaymentProvider { return types.PaymentProviderHitPay }

// StatusCode maps a HitPay payment request status onto the shared code convention.
func StatusCode(status string) string {
	switch strings.ToLower(status) {
	case "completed", "succeeded":
		return "1"
	case "failed", "expired", "canceled", "cancelled":
		return "3"
	default:
		return ""
	}
}

func (c *Client) FetchStatus(ctx context.Context, billID string) (*provider.PaymentStatus, error) {
	body, err := c.http.Do(ctx, http.MethodGet, c.baseURL+paymentRequestsPath+url.PathEscape(billID),
		http.Header{
			"X-BUSINESS-API-KEY": {c.apiKey},
			"X-Requested-With":   {"XMLHttpRequest"},
			"Accept":             {"application/json"},
		}, nil)
	if err != nil {
		return nil, err
	}

	records, err := provider.DecodeRecords(c.Name(), body)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 || !records[0].Has("status") {
		return nil, &provider.MalformedError{Provider: c.Name(), Reason: "expected one payment request object with status", Body: body}
	}
	req := records[0]

	raw := req.String("status")
	st := &provider.PaymentStatus{
		State:     provider.NormalizeStatusCode(StatusCode(raw)),
		RawStatus: raw,
		Currency:  strings.ToUpper(req.String("currency")),
		Raw:       body,
	}
	if st.Amount, err = provider.ToMinorUnits(req.String("amount")); err != nil {
		return nil, &provider.MalformedError{Provider: c.Name(), Reason: err.Error(), Body: body}
	}

	if st.State == provider.StateSuccess {
		st.ProviderPaymentID = req.String("id")
		for _, p := range req.Records("payments") {
			if StatusCode(p.String("status")) != "1" {
				continue
			}
			st.ProviderPaymentID = p.String("id")
			if t, err := time.Parse(time.RFC3339, p.String("created_at")); err == nil {
				t = t.UTC()
				st.PaidAt = &t
			}
			break
		}
	}
	return st, nil
}

var Module = fx.Options(
	fx.Provide(fx.Annotate(New, fx.As(new(provider.StatusClient)), fx.ResultTags(provider.ClientGroup))),
)
