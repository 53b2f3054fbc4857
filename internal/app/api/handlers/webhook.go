package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/truckstamp/internal/app/service/webhook"
	"github.com/fatflowers/truckstamp/pkg/logctx"
)

// MaxWebhookBodyBytes caps the raw body read before signature verification.
const MaxWebhookBodyBytes = 64 << 10

type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) *webhook.Outcome
}

// @Summary      Stripe webhook
// @Description  Verifies the Stripe-Signature header against the raw body and applies subscription events once per event id. A 5xx asks Stripe to redeliver.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe signature"
// @Success      200  {object}  webhook.Outcome
// @Failure      400,413  {object}  webhook.Outcome
// @Failure      500  {object}  webhook.Outcome
// @Router       /api/v1/webhooks/stripe [post]
func ApiStripeWebhook(p WebhookProcessor, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBodyBytes+1))
		if err != nil {
			logctx.FromGin(c, log).Warnw("webhook body read failed", "err", err)
			c.JSON(http.StatusBadRequest, &webhook.Outcome{Error: "unreadable body"})
			return
		}
		if len(payload) > MaxWebhookBodyBytes {
			c.JSON(http.StatusRequestEntityTooLarge, &webhook.Outcome{Error: "body too large"})
			return
		}

		out := p.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		c.JSON(out.Status, out)
	}
}

func RegisterWebhookRoutes(r gin.IRouter, p WebhookProcessor, log *zap.SugaredLogger) {
	r.POST("/webhooks/stripe", ApiStripeWebhook(p, log))
}
