package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/metrics"
	"github.com/fatflowers/paysync/pkg/tool"
	"github.com/fatflowers/paysync/pkg/types"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// HTTPClient performs provider API calls with a deadline, a per-provider
// token bucket and a capped response body. Every transport level failure
// is reported as ErrUnavailable.
type HTTPClient struct {
	provider types.PaymentProvider
	client   *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *metrics.Recorder
}

func NewHTTPClient(p types.PaymentProvider, cfg config.ProviderConfig, rec *metrics.Recorder) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPClient{
		provider: p,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		metrics:  rec,
	}
}

// WithHTTPClient swaps the underlying transport, for tests.
func (c *HTTPClient) WithHTTPClient(hc *http.Client) *HTTPClient {
	c.client = hc
	return c
}

// Do sends the request and returns the body of a 2xx response.
func (c *HTTPClient) Do(ctx context.Context, method, url string, header http.Header, body io.Reader) (respBody []byte, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "unavailable"
		}
		c.metrics.ObserveFetch(string(c.provider), result, start)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: rate limit wait: %v", ErrUnavailable, c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", c.provider, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: http %d: %s", ErrUnavailable, c.provider, resp.StatusCode, tool.Truncate(string(respBody), 256))
	}
	return respBody, nil
}
