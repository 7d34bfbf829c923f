// Package chip queries CHIP (chip-in.asia) purchases.
package chip

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/metrics"
	"github.com/fatflowers/paysync/pkg/types"
)

const purchasesPath = "/api/v1/purchases/"

type Client struct {
	http      *provider.HTTPClient
	baseURL   string
	secretKey string
}

func New(cfg *config.Config, rec *metrics.Recorder) *Client {
	pc := cfg.Providers.Chip
	return &Client{
		http:      provider.NewHTTPClient(types.PaymentProviderChip, pc, rec),
		baseURL:   strings.TrimRight(pc.BaseURL, "/"),
		secretKey: pc.SecretKey,
	}
}

func (c *Client) Name() types.PaymentProvider { return types.PaymentProviderChip }

// StatusCode maps a CHIP purchase status onto the shared code convention.
func StatusCode(status string) string {
	switch strings.ToLower(status) {
	case "paid", "cleared", "settled":
		return "1"
	case "error", "cancelled", "expired", "blocked", "refunded", "chargeback":
		return "3"
	default:
		return ""
	}
}

func (c *Client) FetchStatus(ctx context.Context, billID string) (*provider.PaymentStatus, error) {
	body, err := c.http.Do(ctx, http.MethodGet, c.baseURL+purchasesPath+url.PathEscape(billID)+"/",
		http.Header{
			"Authorization": {"Bearer " + c.secretKey},
			"Accept":        {"application/json"},
		}, nil)
	if err != nil {
		return nil, err
	}

	records, err := provider.DecodeRecords(c.Name(), body)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 || !records[0].Has("status") {
		return nil, &provider.MalformedError{Provider: c.Name(), Reason: "expected one purchase object with status", Body: body}
	}
	return ParsePurchase(records[0], body)
}

// ParsePurchase normalizes a CHIP purchase object. Callbacks carry the same shape.
func ParsePurchase(p provider.Record, body []byte) (*provider.PaymentStatus, error) {
	raw := p.String("status")
	st := &provider.PaymentStatus{
		State:     provider.NormalizeStatusCode(StatusCode(raw)),
		RawStatus: raw,
		Raw:       body,
	}
	if purchase := p.Object("purchase"); purchase != nil {
		st.Currency = strings.ToUpper(purchase.String("currency"))
		if total := purchase.String("total"); total != "" {
			amount, err := strconv.ParseInt(total, 10, 64)
			if err != nil {
				return nil, &provider.MalformedError{Provider: types.PaymentProviderChip, Reason: "purchase.total: " + err.Error(), Body: body}
			}
			st.Amount = amount
		}
	}
	if st.State == provider.StateSuccess {
		st.ProviderPaymentID = p.String("id")
		if paidOn, err := strconv.ParseInt(p.String("paid_on"), 10, 64); err == nil && paidOn > 0 {
			t := time.Unix(paidOn, 0).UTC()
			st.PaidAt = &t
		}
	}
	return st, nil
}

var Module = fx.Options(
	fx.Provide(fx.Annotate(New, fx.As(new(provider.StatusClient)), fx.ResultTags(provider.ClientGroup))),
)
