package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/truckstamp/internal/app/api/middleware"
	"github.com/fatflowers/truckstamp/internal/app/service/loyalty"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/response"
)

type LoyaltyService interface {
	ListCards(ctx context.Context, userID string) ([]*models.LoyaltyCard, error)
	Redeem(ctx context.Context, userID, vendorID string) (*models.LoyaltyCard, error)
}

// @Summary      List loyalty cards
// @Tags         Loyalty
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespLoyaltyCards
// @Router       /api/v1/loyalty/cards [get]
func ApiListLoyaltyCards(svc LoyaltyService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cards, err := svc.ListCards(c.Request.Context(), mw.Subject(c))
		if err != nil {
			logctx.FromGin(c, log).Errorw("list cards failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(cards))
	}
}

// @Summary      Redeem a reward
// @Description  Consumes one unlocked reward on the card for the vendor.
// @Tags         Loyalty
// @Produce      json
// @Security     BearerAuth
// @Param        vendor_id path string true "Vendor ID"
// @Success      200  {object}  handlers.RespLoyaltyCard
// @Failure      409  {object}  handlers.RespRejection
// @Router       /api/v1/loyalty/cards/{vendor_id}/redeem [post]
func ApiRedeemReward(svc LoyaltyService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := svc.Redeem(c.Request.Context(), mw.Subject(c), c.Param("vendor_id"))
		if err != nil {
			if errors.Is(err, loyalty.ErrNoRewardAvailable) {
				c.JSON(http.StatusConflict, response.RejectT[any](response.APIResponseCodeRejected, "NO_REWARD_AVAILABLE", err.Error(), nil))
				return
			}
			logctx.FromGin(c, log).Errorw("redeem failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(card))
	}
}

func RegisterLoyaltyRoutes(r gin.IRouter, svc LoyaltyService, log *zap.SugaredLogger) {
	r.GET("/cards", ApiListLoyaltyCards(svc, log))
	r.POST("/cards/:vendor_id/redeem", ApiRedeemReward(svc, log))
}
