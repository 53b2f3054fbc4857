package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/truckstamp/internal/app/api/middleware"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/response"
)

type SubscriptionReader interface {
	Get(ctx context.Context, userID string) (*models.SubscriptionState, error)
}

// @Summary      Current subscription
// @Description  Returns the caller's billing status as last reported by the payment provider.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscription [get]
func ApiGetSubscription(svc SubscriptionReader, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Get(c.Request.Context(), mw.Subject(c))
		if err != nil {
			logctx.FromGin(c, log).Errorw("get subscription failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(st.Info()))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc SubscriptionReader, log *zap.SugaredLogger) {
	r.GET("/subscription", ApiGetSubscription(svc, log))
}
