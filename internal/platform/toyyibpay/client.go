// Package toyyibpay queries ToyyibPay for the status of a bill.
package toyyibpay

import (
	"context"
	"fmt"
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

const (
	transactionsPath = "/index.php/api/getBillTransactions"
	paymentDateFmt   = "02-01-2006 15:04:05"
	currency         = "MYR"
)

// ToyyibPay reports payment dates in Malaysia time without a zone.
var malaysia = time.FixedZone("MYT", 8*60*60)

type Client struct {
	http      *provider.HTTPClient
	baseURL   string
	secretKey string
}

func New(cfg *config.Config, rec *metrics.Recorder) *Client {
	pc := cfg.Providers.ToyyibPay
	return &Client{
		http:      provider.NewHTTPClient(types.PaymentProviderToyyibPay, pc, rec),
		baseURL:   strings.TrimRight(pc.BaseURL, "/"),
		secretKey: pc.SecretKey,
	}
}

func (c *Client) Name() types.PaymentProvider { return types.PaymentProviderToyyibPay }

// FetchStatus lists every payment attempt on the bill. A bill may carry
// several attempts; one successful attempt settles it, otherwise any attempt
// still in flight keeps it pending.
func (c *Client) FetchStatus(ctx context.Context, billID string) (*provider.PaymentStatus, error) {
	form := url.Values{}
	form.Set("userSecretKey", c.secretKey)
	form.Set("billCode", billID)

	body, err := c.http.Do(ctx, http.MethodPost, c.baseURL+transactionsPath,
		http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	records, err := provider.DecodeRecords(c.Name(), body)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		// no attempt yet
		return &provider.PaymentStatus{State: provider.StatePending, Currency: currency, Raw: body}, nil
	}

	picked, err := pick(records)
	if err != nil {
		return nil, &provider.MalformedError{Provider: c.Name(), Reason: err.Error(), Body: body}
	}
	return toStatus(picked, body)
}

func pick(records []provider.Record) (provider.Record, error) {
	var pending, failed provider.Record
	for _, r := range records {
		if !r.Has("billpaymentStatus") {
			continue
		}
		switch provider.NormalizeStatusCode(r.String("billpaymentStatus")) {
		case provider.StateSuccess:
			return r, nil
		case provider.StatePending:
			if pending == nil {
				pending = r
			}
		case provider.StateFailed:
			if failed == nil {
				failed = r
			}
		}
	}
	if pending != nil {
		return pending, nil
	}
	if failed != nil {
		return failed, nil
	}
	return nil, fmt.Errorf("no billpaymentStatus in %d record(s)", len(records))
}

func toStatus(r provider.Record, body []byte) (*provider.PaymentStatus, error) {
	raw := r.String("billpaymentStatus")
	st := &provider.PaymentStatus{
		State:             provider.NormalizeStatusCode(raw),
		RawStatus:         raw,
		ProviderPaymentID: r.String("billpaymentInvoiceNo"),
		Currency:          currency,
		Raw:               body,
	}
	amount, err := provider.ToMinorUnits(r.String("billpaymentAmount"))
	if err != nil {
		return nil, &provider.MalformedError{Provider: types.PaymentProviderToyyibPay, Reason: err.Error(), Body: body}
	}
	st.Amount = amount
	if s := r.String("billPaymentDate"); s != "" {
		if t, err := time.ParseInLocation(paymentDateFmt, s, malaysia); err == nil {
			t = t.UTC()
			st.PaidAt = &t
		}
	}
	return st, nil
}

var Module = fx.Options(
	fx.Provide(fx.Annotate(New, fx.As(new(provider.StatusClient)), fx.ResultTags(provider.ClientGroup))),
)
