package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/fatflowers/paysync/internal/app/api/middleware"
	notificationlog "github.com/fatflowers/paysync/internal/app/service/notification_log"
	"github.com/fatflowers/paysync/internal/app/service/payment"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/internal/app/service/statistics"
	models "github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/response"
	"github.com/fatflowers/paysync/pkg/types"
)

type RecoverPaymentRequest struct {
	BillID string `json:"bill_id" binding:"required"`
}

type ListPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type PaymentItem struct {
	ID                string                `json:"id"`
	BillID            string                `json:"bill_id"`
	UserID            string                `json:"user_id"`
	PlanID            string                `json:"plan_id"`
	PlanName          string                `json:"plan_name"`
	Provider          types.PaymentProvider `json:"provider"`
	Amount            int64                 `json:"amount"`
	Currency          string                `json:"currency"`
	Status            types.PaymentStatus   `json:"status"`
	ProviderPaymentID *string               `json:"provider_payment_id"`
	PaidAt            *time.Time            `json:"paid_at"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func toPaymentItem(m *models.Payment) *PaymentItem {
	item := &PaymentItem{
		ID:                m.ID,
		BillID:            m.BillID,
		UserID:            m.UserID,
		PlanID:            m.PlanID,
		Provider:          m.Provider,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Status:            m.Status,
		ProviderPaymentID: m.ProviderPaymentID,
		PaidAt:            m.PaidAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if snap := m.GetPlanSnapshot(); snap != nil {
		item.PlanName = snap.Name
	}
	return item
}

type ListPaymentsResponse struct {
	Items []*PaymentItem `json:"items"`
	Total int64          `json:"total"`
}

type ListDeliveriesRequest struct {
	BillID string `json:"bill_id" binding:"required"`
}

// @Summary      Recover Payment (Admin)
// @Description  Re-checks a stuck bill using only its stored record and finishes an activation that previously failed halfway.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.RecoverPaymentRequest true "Bill to recover"
// @Success      200  {object}  response.PaymentResult
// @Success      202  {object}  response.PaymentResult
// @Failure      400,401,404,500,502,503  {object}  response.PaymentResult
// @Router       /api/v1/admin/recover_payment [post]
func ApiRecoverPayment(mgr reconcile.Manager, w ResultWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecoverPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.PaymentError(err.Error()))
			return
		}
		logctx.FromGin(c, w.log).Infow("admin payment recovery", "bill_id", req.BillID, "operator", c.GetString(middleware.OperatorKey))
		res, err := mgr.Recover(c.Request.Context(), req.BillID)
		w.write(c, triggerServer, res, err)
	}
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of payment records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.ListPaymentsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/list_payments [post]
func ApiListPayments(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPaymentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.Scan(c.Request.Context(), &payment.ScanRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(it *models.Payment, _ int) *PaymentItem { return toPaymentItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListPaymentsResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      List Webhook Deliveries (Admin)
// @Description  Returns the received and handled log entries of provider deliveries for one bill.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.ListDeliveriesRequest true "Bill id"
// @Success      200  {object}  handlers.RespListDeliveries
// @Router       /api/v1/admin/list_deliveries [post]
func ApiListDeliveries(svc *notificationlog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListDeliveriesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		rows, err := svc.ListByBillID(c.Request.Context(), req.BillID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      Get Payment Statistics (Admin)
// @Description  Aggregates payments, revenue, ledger changes and webhook deliveries. Empty data_items returns every statistic.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespPaymentStatistic
// @Router       /api/v1/admin/get_payment_statistic [post]
func ApiGetPaymentStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetStatistics(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminPaymentRoutes(r gin.IRouter, mgr reconcile.Manager, payments *payment.Service, deliveries *notificationlog.Service, stats *statistics.Service, w ResultWriter) {
	r.POST("/recover_payment", ApiRecoverPayment(mgr, w))
	r.POST("/list_payments", ApiListPayments(payments))
	r.POST("/list_deliveries", ApiListDeliveries(deliveries))
	r.POST("/get_payment_statistic", ApiGetPaymentStatistic(stats))
}
