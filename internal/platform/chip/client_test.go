package chip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/pkg/config"
)

func newTestClient(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/purchases/pur-1/", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return New(&config.Config{Providers: config.ProvidersConfig{
		Chip: config.ProviderConfig{BaseURL: srv.URL, SecretKey: "sk"},
	}}, nil)
}

func TestFetchStatus(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantState provider.State
		wantID    string
		wantAmt   int64
	}{
		{"paid", `{"id":"pur-1","status":"paid","paid_on":1741156200,"purchase":{"total":3990,"currency":"myr"}}`, provider.StateSuccess, "pur-1", 3990},
		{"cancelled", `{"id":"pur-1","status":"cancelled","purchase":{"total":3990}}`, provider.StateFailed, "", 3990},
		{"viewed", `{"id":"pur-1","status":"viewed"}`, provider.StatePending, "", 0},
		{"refunded", `{"id":"pur-1","status":"refunded","purchase":{"total":3990}}`, provider.StateFailed, "", 3990},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.StatusOK, tt.body)
			st, err := c.FetchStatus(context.Background(), "pur-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, st.State)
			assert.Equal(t, tt.wantID, st.ProviderPaymentID)
			assert.Equal(t, tt.wantAmt, st.Amount)
		})
	}
}

func TestStatusCode(t *testing.T) {
	for status, want := range map[string]string{
		"paid": "1", "Settled": "1",
		"expired": "3", "refunded": "3", "chargeback": "3",
		"created": "", "viewed": "", "pending_execute": "",
	} {
		assert.Equal(t, want, StatusCode(status), status)
	}
}

func TestFetchStatus_PaidOn(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `{"id":"pur-1","status":"paid","paid_on":1741156200,"purchase":{"total":100,"currency":"MYR"}}`)
	st, err := c.FetchStatus(context.Background(), "pur-1")
	require.NoError(t, err)
	require.NotNil(t, st.PaidAt)
	assert.Equal(t, time.Unix(1741156200, 0).UTC(), *st.PaidAt)
	assert.Equal(t, "MYR", st.Currency)
}

func TestFetchStatus_Errors(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `{"purchase":{"total":"abc"},"status":"paid"}`)
	_, err := c.FetchStatus(context.Background(), "pur-1")
	assert.True(t, errors.Is(err, provider.ErrMalformedResponse))

	c = newTestClient(t, http.StatusOK, `Bad Gateway`)
	_, err = c.FetchStatus(context.Background(), "pur-1")
	assert.True(t, errors.Is(err, provider.ErrMalformedResponse))

	c = newTestClient(t, http.StatusUnauthorized, `{"__all__":["Invalid token"]}`)
	_, err = c.FetchStatus(context.Background(), "pur-1")
	assert.True(t, errors.Is(err, provider.ErrUnavailable))
}
