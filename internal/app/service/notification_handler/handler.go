package notification_handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	notificationlog "github.com/fatflowers/paysync/internal/app/service/notification_log"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	models "github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/types"
)

type NotificationHandler struct {
	cfg      *config.Config
	notifSvc *notificationlog.Service
	manager  reconcile.Manager
	Logger   *zap.SugaredLogger
}

func NewNotificationHandler(cfg *config.Config, notif *notificationlog.Service, manager reconcile.Manager, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{cfg: cfg, notifSvc: notif, manager: manager, Logger: log}
}

// HandleNotification turns one provider delivery into a reconciliation of
// the bill it names. Every delivery is logged as received and then as
// handled or handle_failed.
func (h *NotificationHandler) HandleNotification(c *gin.Context, provider types.PaymentProvider) (res *reconcile.Result, resErr error) {
	ctx := c.Request.Context()
	lg := logctx.FromGin(c, h.Logger).With("provider", provider)

	body, err := c.GetRawData()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrInvalidPayload, err)
	}
	parser, err := GetNotificationParser(h.cfg, provider, body, time.Now())
	if err != nil {
		lg.Warnw("rejected provider notification", "err", err, "body_size", len(body))
		return nil, err
	}

	billID := parser.GetBillID(ctx)
	// a reference we cannot split only skips the user/plan cross-check
	userID, _ := parser.GetUserID(ctx)
	planID, _ := parser.GetPlanID(ctx)
	traceID := logctx.TraceID(ctx)
	dataBytes, _ := json.Marshal(parser.GetData(ctx))
	lg = lg.With("bill_id", billID, "user_id", userID, "plan_id", planID)

	h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
		ProviderID:       string(provider),
		UserID:           lo.EmptyableToPtr(userID),
		TraceID:          traceID,
		BillID:           billID,
		NotificationTime: parser.GetNotificationTime(ctx),
		Data:             datatypes.JSON(dataBytes),
		Status:           models.PaymentNotificationLogStatusReceived,
	})
	lg.Infow("provider notification received", "status_code", parser.GetStatusCode(ctx))

	defer func() {
		resMap := map[string]any{}
		if res != nil {
			resMap["outcome"] = res.Outcome
			resMap["replayed"] = res.Replayed
			if res.Period != nil {
				resMap["period_id"] = res.Period.ID
			}
		}
		if resErr != nil {
			resMap["error"] = resErr.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		status := models.PaymentNotificationLogStatusHandled
		if resErr != nil {
			status = models.PaymentNotificationLogStatusHandleFailed
		}
		h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
			ProviderID:       string(provider),
			UserID:           lo.EmptyableToPtr(userID),
			TraceID:          traceID,
			BillID:           billID,
			NotificationTime: time.Now(),
			Data:             datatypes.JSON(dataBytes),
			Result:           lo.ToPtr(datatypes.JSON(resBytes)),
			Status:           status,
		})
	}()

	res, resErr = h.manager.Reconcile(ctx, billID, userID, planID)
	if resErr != nil {
		lg.Errorw("failed to reconcile notification", "err", resErr)
		return nil, resErr
	}
	lg.Infow("provider notification handled", "outcome", res.Outcome, "replayed", res.Replayed)
	return res, nil
}

var Module = fx.Options(
	fx.Provide(NewNotificationHandler),
)
