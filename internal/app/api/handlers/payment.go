package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	nh "github.com/fatflowers/paysync/internal/app/service/notification_handler"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/response"
	"github.com/fatflowers/paysync/pkg/types"
)

type PendingPaymentRequest struct {
	BillID   string                `json:"bill_id" binding:"required"`
	UserID   string                `json:"user_id" binding:"required"`
	PlanID   string                `json:"plan_id" binding:"required"`
	Provider types.PaymentProvider `json:"provider" binding:"required"`
}

type VerifyPaymentRequest struct {
	BillID string `json:"bill_id" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
	PlanID string `json:"plan_id" binding:"required"`
}

// @Summary      Create Pending Payment
// @Description  Records a bill created with a provider at purchase time. Amount and currency come from the plan catalog. Idempotent per bill_id.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.PendingPaymentRequest true "Pending payment"
// @Success      200  {object}  handlers.RespPayment
// @Router       /api/v2/payment/pending [post]
func ApiCreatePendingPayment(mgr reconcile.Manager, w ResultWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PendingPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		p, err := mgr.CreatePending(c.Request.Context(), &reconcile.PendingRequest{
			BillID: req.BillID, UserID: req.UserID, PlanID: req.PlanID, Provider: req.Provider,
		})
		if err != nil {
			code := response.APIResponseCodeError
			if isClientError(err) {
				code = response.APIResponseCodeBadRequest
			} else {
				logctx.FromGin(c, w.log).Errorw("failed to create pending payment", "bill_id", req.BillID, "err", err)
			}
			c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Verify Payment
// @Description  Client-initiated confirmation after returning from the provider. Pending or temporarily unverifiable payments answer 202 "payment still processing".
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.VerifyPaymentRequest true "Bill to verify"
// @Success      200  {object}  response.PaymentResult
// @Success      202  {object}  response.PaymentResult
// @Failure      400,404,409,500,502  {object}  response.PaymentResult
// @Router       /api/v2/payment/verify [post]
func ApiVerifyPayment(mgr reconcile.Manager, w ResultWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.PaymentError(err.Error()))
			return
		}
		res, err := mgr.Reconcile(c.Request.Context(), req.BillID, req.UserID, req.PlanID)
		w.write(c, triggerClient, res, err)
	}
}

// @Summary      Provider Webhook
// @Description  Provider payment notification (ToyyibPay and HitPay form callbacks, CHIP JSON callback). The bill is re-checked against the provider before any change.
// @Tags         Webhook
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        provider  path  string  true  "toyyibpay | hitpay | chip"
// @Success      200  {object}  response.PaymentResult
// @Success      202  {object}  response.PaymentResult
// @Failure      400,401,404,409,500,502,503  {object}  response.PaymentResult
// @Router       /api/v2/payment/webhook/{provider} [post]
func ApiProviderWebhook(h *nh.NotificationHandler, w ResultWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.HandleNotification(c, types.PaymentProvider(c.Param("provider")))
		w.write(c, triggerServer, res, err)
	}
}

func RegisterPaymentV2Routes(r gin.IRouter, mgr reconcile.Manager, notifHandler *nh.NotificationHandler, w ResultWriter) {
	r.POST("/pending", ApiCreatePendingPayment(mgr, w))
	r.POST("/verify", ApiVerifyPayment(mgr, w))
	r.POST("/webhook/:provider", ApiProviderWebhook(notifHandler, w))
}
