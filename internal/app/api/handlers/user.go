package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/paysync/internal/app/service/notification"
	subsvc "github.com/fatflowers/paysync/internal/app/service/subscription"
	"github.com/fatflowers/paysync/pkg/response"
)

// @Summary      Subscription Status
// @Description  Ledger-first subscription status of a user, with the cached profile flag for comparison.
// @Tags         Subscription
// @Produce      json
// @Param        user_id  query  string  true  "User id"
// @Success      200  {object}  handlers.RespSubscriptionInfo
// @Router       /api/v2/subscription [get]
func ApiSubscriptionStatus(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		info, err := sub.GetUserSubscriptionInfo(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

// @Summary      Notification Inbox
// @Description  Newest inbox entries of a user.
// @Tags         Subscription
// @Produce      json
// @Param        user_id  query  string  true   "User id"
// @Param        limit    query  int     false  "Max entries, default 20"
// @Success      200  {object}  handlers.RespNotifications
// @Router       /api/v2/notifications [get]
func ApiNotificationList(svc *notification.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid limit"))
				return
			}
			limit = n
		}
		rows, err := svc.ListForUser(c.Request.Context(), userID, limit)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

func RegisterUserRoutes(r gin.IRouter, sub *subsvc.Service, inbox *notification.Service) {
	r.GET("/subscription", ApiSubscriptionStatus(sub))
	r.GET("/notifications", ApiNotificationList(inbox))
}
