package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/paysync/internal/app/service/notification"
	"github.com/fatflowers/paysync/internal/app/service/payment"
	"github.com/fatflowers/paysync/internal/app/service/statistics"
	subsvc "github.com/fatflowers/paysync/internal/app/service/subscription"
	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/internal/platform/db/dbtest"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/response"
	"github.com/fatflowers/paysync/pkg/types"
)

func TestApiListPayments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	svc := payment.NewService(dbtest.Open(t), zap.NewNop().Sugar())
	plan := &types.Plan{ID: "monthly_premium", Name: "Monthly Premium", Price: 3990, Currency: "MYR", DurationDays: 30}
	for _, bill := range []string{"bill-1", "bill-2", "bill-3"} {
		userID := "u1"
		if bill == "bill-3" {
			userID = "u2"
		}
		_, _, err := svc.UpsertPending(ctx, &payment.PendingRequest{
			BillID: bill, UserID: userID, PlanID: plan.ID, Provider: types.PaymentProviderHitPay,
			Amount: plan.Price, Currency: plan.Currency, Plan: plan,
		})
		require.NoError(t, err)
	}

	r := gin.New()
	r.POST("/list_payments", ApiListPayments(svc))

	w := postJSON(t, r, "/list_payments", ListPaymentsRequest{
		Filters: []*types.CommonFilter{{Field: "user_id", Operator: types.CommonFilterOperatorEq, Values: []any{"u1"}}},
		Size:    10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var out response.APIResponse[ListPaymentsResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, response.APIResponseCodeOK, out.Code)
	assert.Equal(t, int64(2), out.Data.Total)
	require.Len(t, out.Data.Items, 2)
	assert.Equal(t, "Monthly Premium", out.Data.Items[0].PlanName)

	w = postJSON(t, r, "/list_payments", ListPaymentsRequest{
		Filters: []*types.CommonFilter{{Field: "user_id; drop table payment", Operator: types.CommonFilterOperatorEq, Values: []any{"u1"}}},
	})
	var bad response.APIResponse[string]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bad))
	assert.Equal(t, response.APIResponseCodeBadRequest, bad.Code)
}

func TestUserRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := dbtest.Open(t)
	log := zap.NewNop().Sugar()
	sub := subsvc.NewService(&config.Config{}, db, log)
	inbox := notification.NewService(db, log)
	require.NoError(t, inbox.Emit(ctx, &notification.Event{
		Type: models.NotificationTypePaymentSuccess, UserID: "u1", Title: "Payment successful", Message: "active",
	}))

	r := gin.New()
	RegisterUserRoutes(r.Group("/api/v2"), sub, inbox)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/api/v2/subscription?user_id=u1")
	var info response.APIResponse[types.UserSubscriptionInfo]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, response.APIResponseCodeOK, info.Code)
	assert.Equal(t, types.ProfileStatusInactive, info.Data.Status)

	w = get("/api/v2/notifications?user_id=u1&limit=5")
	var list response.APIResponse[[]models.Notification]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Payment successful", list.Data[0].Title)

	w = get("/api/v2/notifications")
	var bad response.APIResponse[string]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bad))
	assert.Equal(t, response.APIResponseCodeBadRequest, bad.Code)
}

func TestApiGetPaymentStatistic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := dbtest.Open(t)
	payments := payment.NewService(db, zap.NewNop().Sugar())
	plan := &types.Plan{ID: "monthly_premium", Price: 3990, Currency: "MYR", DurationDays: 30}
	_, _, err := payments.UpsertPending(ctx, &payment.PendingRequest{
		BillID: "bill-1", UserID: "u1", PlanID: plan.ID, Provider: types.PaymentProviderChip,
		Amount: plan.Price, Currency: plan.Currency, Plan: plan,
	})
	require.NoError(t, err)

	r := gin.New()
	r.POST("/get_payment_statistic", ApiGetPaymentStatistic(statistics.New(db)))

	w := postJSON(t, r, "/get_payment_statistic", statistics.StatisticRequest{
		DataItems: []statistics.StatisticType{statistics.StatisticTypePaymentCount},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var out response.APIResponse[statistics.StatisticResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, response.APIResponseCodeOK, out.Code)
	assert.Equal(t, []statistics.StatisticDataItem{{Label: "chip", Label2: "pending", Value: 1}},
		out.Data.DataItems[statistics.StatisticTypePaymentCount])

	w = postJSON(t, r, "/get_payment_statistic", statistics.StatisticRequest{
		DataItems: []statistics.StatisticType{"gmv"},
	})
	var bad response.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bad))
	assert.Equal(t, response.APIResponseCodeError, bad.Code)
}
