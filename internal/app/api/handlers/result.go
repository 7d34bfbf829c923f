package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	nh "github.com/fatflowers/paysync/internal/app/service/notification_handler"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/response"
)

const (
	msgActivated  = "payment verified and subscription activated"
	msgReplayed   = "payment already processed"
	msgFailed     = "payment failed"
	msgProcessing = "payment still processing"
)

// trigger is who asked for the reconciliation. Clients polling verify get
// "still processing" where provider webhooks get a retryable 5xx.
type trigger int

const (
	triggerClient trigger = iota
	triggerServer
)

func subscriptionInfo(res *reconcile.Result) *response.SubscriptionInfo {
	if res == nil || res.Period == nil {
		return nil
	}
	info := &response.SubscriptionInfo{
		ActionTaken:       string(res.Period.ChangeType),
		DaysAdded:         res.DaysAdded,
		NewSubscriptionID: res.Period.ID,
	}
	if res.Period.PreviousPeriodID != nil {
		info.PreviousSubscriptionID = *res.Period.PreviousPeriodID
	}
	return info
}

// ResultWriter maps reconciliation outcomes onto the payment response contract.
type ResultWriter struct {
	log        *zap.SugaredLogger
	retryAfter time.Duration
}

func NewResultWriter(cfg *config.Config, log *zap.SugaredLogger) ResultWriter {
	return ResultWriter{log: log, retryAfter: cfg.Reconcile.RetryAfter}
}

func (w ResultWriter) write(c *gin.Context, who trigger, res *reconcile.Result, err error) {
	if err != nil {
		w.writeError(c, who, err)
		return
	}
	switch res.Outcome {
	case reconcile.OutcomeCompleted:
		msg := msgActivated
		if res.Replayed {
			msg = msgReplayed
		}
		c.JSON(http.StatusOK, response.PaymentOK(msg, subscriptionInfo(res)))
	case reconcile.OutcomeFailed:
		c.JSON(http.StatusOK, response.PaymentNotOK(msgFailed))
	default:
		c.JSON(http.StatusAccepted, response.PaymentNotOK(msgProcessing))
	}
}

func (w ResultWriter) writeError(c *gin.Context, who trigger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reconcile.ErrInvalidArgument),
		errors.Is(err, nh.ErrInvalidPayload),
		errors.Is(err, nh.ErrUnsupportedProvider):
		status = http.StatusBadRequest
	case errors.Is(err, nh.ErrInvalidSignature):
		status = http.StatusUnauthorized
	case errors.Is(err, reconcile.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reconcile.ErrPaymentMismatch):
		status = http.StatusConflict
	case errors.Is(err, reconcile.ErrRetryable):
		if who == triggerClient {
			c.JSON(http.StatusAccepted, response.PaymentNotOK(msgProcessing))
			return
		}
		status = http.StatusServiceUnavailable
		if w.retryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(w.retryAfter.Seconds()))))
		}
	case errors.Is(err, reconcile.ErrNeedsManualReview):
		status = http.StatusBadGateway
	case errors.Is(err, reconcile.ErrPartialActivation):
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logctx.FromGin(c, w.log).Errorw("payment request failed", "status", status, "err", err)
	}
	c.JSON(status, response.PaymentError(err.Error()))
}

func isClientError(err error) bool {
	return errors.Is(err, reconcile.ErrInvalidArgument) ||
		errors.Is(err, reconcile.ErrPaymentMismatch) ||
		errors.Is(err, reconcile.ErrPaymentNotFound)
}
