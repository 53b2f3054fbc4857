package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fatflowers/truckstamp/internal/app/service/idempotency"
	"github.com/fatflowers/truckstamp/internal/app/service/subscription"
	"github.com/fatflowers/truckstamp/internal/app/service/webhooklog"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/metrics"
	"github.com/fatflowers/truckstamp/pkg/tool"
	"github.com/fatflowers/truckstamp/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcome is the acknowledgement returned to the provider. A 5xx Status asks for redelivery.
type Outcome struct {
	Status    int    `json:"-"`
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Stale     bool   `json:"stale,omitempty"`
	EventID   string `json:"eventId,omitempty"`
	Error     string `json:"error,omitempty"`
	WillRetry bool   `json:"willRetry,omitempty"`
}

func ClaimKey(eventID string) string {
	return "stripe:" + eventID
}

type Processor struct {
	verifier Verifier
	ledger   idempotency.Ledger
	applier  subscription.Applier
	logs     webhooklog.Recorder
	log      *zap.SugaredLogger
}

func NewProcessor(verifier Verifier, ledger idempotency.Ledger, applier subscription.Applier, logs webhooklog.Recorder, log *zap.SugaredLogger) *Processor {
	return &Processor{verifier: verifier, ledger: ledger, applier: applier, logs: logs, log: log}
}

// Process verifies, deduplicates and applies one delivery. Each event id causes at most one
// committed state change no matter how often it is delivered.
func (p *Processor) Process(ctx context.Context, payload []byte, signatureHeader string) (out *Outcome) {
	start := time.Now()
	lg := logctx.FromCtx(ctx, p.log)

	raw, err := p.verifier.Verify(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, ErrSecretNotConfigured) {
			lg.Errorw("webhook secret not configured")
			metrics.Inc(metrics.MetricsWebhookResult, "unknown", "misconfigured")
			return &Outcome{Status: http.StatusBadRequest, Error: "webhook not configured"}
		}
		lg.Errorw("webhook signature rejected", "err", err)
		metrics.Inc(metrics.MetricsWebhookResult, "unknown", "invalid_signature")
		return &Outcome{Status: http.StatusBadRequest, Error: "invalid signature"}
	}

	ev, err := Normalize(raw)
	if err != nil {
		lg.Warnw("webhook event rejected", "event_id", raw.ID, "type", raw.Type, "err", err)
		metrics.Inc(metrics.MetricsWebhookResult, raw.Type, "malformed")
		return &Outcome{Status: http.StatusBadRequest, EventID: raw.ID, Error: "malformed event"}
	}
	lg = lg.With("event_id", ev.ID, "event_type", ev.Type)

	p.saveLog(ctx, ev, raw.Object, models.WebhookDeliveryLogStatusReceived, nil)
	defer func() {
		metrics.Inc(metrics.MetricsWebhookResult, ev.Type, resultLabel(out))
		metrics.ObserveSince(metrics.MetricsBusinessProcess, start, "webhook")
		if out.Duplicate {
			p.saveLog(ctx, ev, raw.Object, models.WebhookDeliveryLogStatusDuplicate, out)
			return
		}
		status := models.WebhookDeliveryLogStatusHandled
		if out.Status >= http.StatusInternalServerError {
			status = models.WebhookDeliveryLogStatusHandleFailed
		}
		p.saveLog(ctx, ev, raw.Object, status, out)
	}()

	key := ClaimKey(ev.ID)
	attempt := tool.GenerateUUIDV7()
	claim, err := p.ledger.Claim(ctx, models.IdempotencyScopeStripeWebhook, key, attempt)
	if err != nil {
		lg.Errorw("failed to claim webhook event", "err", err)
		return &Outcome{Status: http.StatusInternalServerError, Received: true, EventID: ev.ID, Error: "temporarily unavailable", WillRetry: true}
	}
	if !claim.Acquired {
		lg.Infow("duplicate webhook delivery", "claim_state", claim.Claim.State)
		return &Outcome{Status: http.StatusOK, Received: true, Duplicate: true, EventID: ev.ID}
	}

	if ev.Change == nil {
		if err := p.ledger.Finalize(ctx, key, attempt); err != nil {
			lg.Errorw("failed to finalize ignored webhook event", "err", err)
		}
		lg.Infow("webhook event ignored")
		return &Outcome{Status: http.StatusOK, Received: true, EventID: ev.ID}
	}

	res, err := p.applier.Apply(ctx, ev.Change, func(tx *gorm.DB) error {
		return p.ledger.FinalizeTx(ctx, tx, key, attempt)
	})
	switch {
	case errors.Is(err, subscription.ErrUnknownSubject):
		if ferr := p.ledger.Finalize(ctx, key, attempt); ferr != nil {
			lg.Errorw("failed to finalize webhook event", "err", ferr)
		}
		lg.Warnw("webhook event for unknown subject", "customer_id", ev.Change.CustomerID, "subscription_id", ev.Change.SubscriptionID)
		return &Outcome{Status: http.StatusOK, Received: true, EventID: ev.ID}
	case err != nil:
		if ferr := p.ledger.Fail(ctx, key, attempt, err); ferr != nil {
			lg.Errorw("failed to release webhook claim", "err", ferr)
		}
		lg.Errorw("failed to apply webhook event", "err", err)
		return &Outcome{Status: http.StatusInternalServerError, Received: true, EventID: ev.ID, Error: "processing failed", WillRetry: true}
	}

	lg.Infow("webhook event applied", "stale", res.Stale)
	return &Outcome{Status: http.StatusOK, Received: true, Processed: true, Stale: res.Stale, EventID: ev.ID}
}

func resultLabel(out *Outcome) string {
	switch {
	case out == nil:
		return "error"
	case out.Duplicate:
		return "duplicate"
	case out.Stale:
		return "stale"
	case out.Processed:
		return "processed"
	case out.Status >= http.StatusInternalServerError:
		return "failed"
	default:
		return "ignored"
	}
}

func (p *Processor) saveLog(ctx context.Context, ev *Event, object json.RawMessage, status models.WebhookDeliveryLogStatus, out *Outcome) {
	if p.logs == nil {
		return
	}
	entry := &models.WebhookDeliveryLog{
		ProviderID: string(types.BillingProviderStripe),
		EventID:    ev.ID,
		EventType:  ev.Type,
		TraceID:    logctx.TraceID(ctx),
		EventTime:  ev.Created,
		Data:       datatypes.JSON(object),
		Status:     status,
	}
	if len(object) == 0 {
		entry.Data = datatypes.JSON("null")
	}
	if out != nil {
		if b, err := json.Marshal(out); err == nil {
			j := datatypes.JSON(b)
			entry.Result = &j
		}
	}
	p.logs.Save(ctx, entry)
}
