package notification_handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	notificationlog "github.com/fatflowers/paysync/internal/app/service/notification_log"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/internal/platform/db/dbtest"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/types"
)

type stubManager struct {
	calls [][3]string
	res   *reconcile.Result
	err   error
}

func (m *stubManager) CreatePending(context.Context, *reconcile.PendingRequest) (*models.Payment, error) {
	return nil, errors.New("not used")
}

func (m *stubManager) Reconcile(_ context.Context, billID, userID, planID string) (*reconcile.Result, error) {
	m.calls = append(m.calls, [3]string{billID, userID, planID})
	return m.res, m.err
}

func (m *stubManager) Recover(context.Context, string) (*reconcile.Result, error) {
	return nil, errors.New("not used")
}

func newTestContext(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c
}

func TestHandleNotification(t *testing.T) {
	logs := notificationlog.New(dbtest.Open(t), zap.NewNop().Sugar())
	m := &stubManager{res: &reconcile.Result{BillID: "k9x2m1", Outcome: reconcile.OutcomeCompleted}}
	h := NewNotificationHandler(&config.Config{}, logs, m, zap.NewNop().Sugar())

	res, err := h.HandleNotification(newTestContext("billcode=k9x2m1&status=1&order_id=u-1_monthly_premium"), types.PaymentProviderToyyibPay)
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeCompleted, res.Outcome)
	require.Len(t, m.calls, 1)
	assert.Equal(t, [3]string{"k9x2m1", "u-1", "monthly_premium"}, m.calls[0])

	logs.Wait()
	rows, err := logs.ListByBillID(context.Background(), "k9x2m1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	var statuses []models.PaymentNotificationLogStatus
	for _, r := range rows {
		statuses = append(statuses, r.Status)
		require.NotNil(t, r.UserID)
		assert.Equal(t, "u-1", *r.UserID)
	}
	assert.ElementsMatch(t, []models.PaymentNotificationLogStatus{
		models.PaymentNotificationLogStatusReceived,
		models.PaymentNotificationLogStatusHandled,
	}, statuses)
}

func TestHandleNotification_ReconcileFailureIsLogged(t *testing.T) {
	logs := notificationlog.New(dbtest.Open(t), zap.NewNop().Sugar())
	m := &stubManager{err: reconcile.ErrRetryable}
	h := NewNotificationHandler(&config.Config{}, logs, m, zap.NewNop().Sugar())

	_, err := h.HandleNotification(newTestContext("billcode=k9x2m1&status=1&order_id=nounderscore"), types.PaymentProviderToyyibPay)
	assert.ErrorIs(t, err, reconcile.ErrRetryable)
	require.Len(t, m.calls, 1)
	assert.Equal(t, [3]string{"k9x2m1", "", ""}, m.calls[0])

	logs.Wait()
	rows, err := logs.ListByBillID(context.Background(), "k9x2m1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	var failed *models.PaymentNotificationLog
	for _, r := range rows {
		if r.Status == models.PaymentNotificationLogStatusHandleFailed {
			failed = r
		}
	}
	require.NotNil(t, failed)
	require.NotNil(t, failed.Result)
	assert.Contains(t, string(*failed.Result), "temporarily unavailable")
	assert.Nil(t, failed.UserID)
}

func TestHandleNotification_InvalidPayloadSkipsReconcile(t *testing.T) {
	logs := notificationlog.New(dbtest.Open(t), zap.NewNop().Sugar())
	m := &stubManager{}
	h := NewNotificationHandler(&config.Config{}, logs, m, zap.NewNop().Sugar())

	_, err := h.HandleNotification(newTestContext("<html>bad gateway</html>"), types.PaymentProviderToyyibPay)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Empty(t, m.calls)
}
