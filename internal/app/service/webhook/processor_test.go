package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fatflowers/truckstamp/internal/app/service/idempotency"
	"github.com/fatflowers/truckstamp/internal/app/service/subscription"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/types"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test_secret"

// memApplier keeps subscription states in memory and follows the same stale rule as the service.
type memApplier struct {
	mu      sync.Mutex
	states  map[string]*models.SubscriptionState
	applies int
	err     error
}

func newMemApplier() *memApplier {
	return &memApplier{states: map[string]*models.SubscriptionState{}}
}

func (a *memApplier) Apply(_ context.Context, ch *subscription.Change, onCommit func(tx *gorm.DB) error) (*subscription.ApplyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	st, ok := a.states[ch.SubscriptionID]
	if !ok {
		if ch.UserID == "" {
			return nil, subscription.ErrUnknownSubject
		}
		st = &models.SubscriptionState{UserID: ch.UserID}
		a.states[ch.SubscriptionID] = st
	}
	if subscription.IsStale(st, ch) {
		return &subscription.ApplyResult{Stale: true, State: st}, onCommit(nil)
	}
	subscription.Merge(st, ch)
	a.applies++
	return &subscription.ApplyResult{Applied: true, State: st}, onCommit(nil)
}

type recordingLogs struct {
	mu      sync.Mutex
	entries []*models.WebhookDeliveryLog
}

func (r *recordingLogs) Save(_ context.Context, log *models.WebhookDeliveryLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, log)
}

func (r *recordingLogs) statuses() []models.WebhookDeliveryLogStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WebhookDeliveryLogStatus, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Status)
	}
	return out
}

type fixture struct {
	p       *Processor
	ledger  *idempotency.MemoryLedger
	applier *memApplier
	logs    *recordingLogs
}

func newFixture(secret string) *fixture {
	cfg := &config.Config{Stripe: config.StripeConfig{WebhookSecret: secret, Tolerance: 5 * time.Minute}}
	f := &fixture{
		ledger:  idempotency.NewMemoryLedger(5 * time.Minute),
		applier: newMemApplier(),
		logs:    &recordingLogs{},
	}
	v, err := NewStripeVerifier(cfg)
	if err != nil {
		// a zero verifier still refuses every delivery
		v = &StripeVerifier{}
	}
	f.p = NewProcessor(v, f.ledger, f.applier, f.logs, zap.NewNop().Sugar())
	return f
}

func eventPayload(id, typ string, created int64, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2025-07-30.basil","type":%q,"created":%d,"data":{"object":%s}}`, id, typ, created, object))
}

func sign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret, Timestamp: time.Now()}).Header
}

func subscriptionUpdated(id string, created int64, status string) []byte {
	return eventPayload(id, EventCustomerSubscriptionUpdated, created,
		fmt.Sprintf(`{"id":"sub_1","customer":"cus_1","status":%q,"metadata":{"user_id":"u1"}}`, status))
}

func TestProcess_AppliesOnce(t *testing.T) {
	f := newFixture(testSecret)
	payload := subscriptionUpdated("evt_1", 1717243200, "active")
	ctx := context.Background()

	first := f.p.Process(ctx, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, first.Status)
	require.True(t, first.Received)
	require.True(t, first.Processed)
	require.False(t, first.Duplicate)

	second := f.p.Process(ctx, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, second.Status)
	require.True(t, second.Duplicate)
	require.False(t, second.Processed)

	require.Equal(t, 1, f.applier.applies)
	claim, err := f.ledger.Get(ctx, ClaimKey("evt_1"))
	require.NoError(t, err)
	require.Equal(t, models.IdempotencyClaimStateCompleted, claim.State)
	require.Equal(t, []models.WebhookDeliveryLogStatus{
		models.WebhookDeliveryLogStatusReceived,
		models.WebhookDeliveryLogStatusHandled,
		models.WebhookDeliveryLogStatusReceived,
		models.WebhookDeliveryLogStatusDuplicate,
	}, f.logs.statuses())
}

func TestProcess_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(testSecret)
	payload := subscriptionUpdated("evt_1", 1717243200, "active")
	header := sign(payload, testSecret)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.p.Process(context.Background(), payload, header)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, f.applier.applies)
}

func TestProcess_TamperedSignature(t *testing.T) {
	f := newFixture(testSecret)
	payload := subscriptionUpdated("evt_1", 1717243200, "active")
	header := sign(payload, testSecret)
	tampered := subscriptionUpdated("evt_1", 1717243200, "canceled")

	out := f.p.Process(context.Background(), tampered, header)
	require.Equal(t, http.StatusBadRequest, out.Status)
	require.False(t, out.Received)
	require.Zero(t, f.ledger.Len())
	require.Zero(t, f.applier.applies)

	out = f.p.Process(context.Background(), payload, sign(payload, "whsec_other"))
	require.Equal(t, http.StatusBadRequest, out.Status)
	require.Zero(t, f.ledger.Len())
}

func TestProcess_ExpiredTimestamp(t *testing.T) {
	f := newFixture(testSecret)
	payload := subscriptionUpdated("evt_1", 1717243200, "active")
	header := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload, Secret: testSecret, Timestamp: time.Now().Add(-time.Hour),
	}).Header

	out := f.p.Process(context.Background(), payload, header)
	require.Equal(t, http.StatusBadRequest, out.Status)
	require.Zero(t, f.ledger.Len())
}

func TestNewStripeVerifier_RequiresSecret(t *testing.T) {
	_, err := NewStripeVerifier(&config.Config{})
	require.ErrorIs(t, err, ErrSecretNotConfigured)

	v, err := NewStripeVerifier(&config.Config{Stripe: config.StripeConfig{WebhookSecret: testSecret}})
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, v.tolerance)
}

func TestProcess_SecretNotConfigured(t *testing.T) {
	f := newFixture("")
	payload := subscriptionUpdated("evt_1", 1717243200, "active")
	out := f.p.Process(context.Background(), payload, sign(payload, testSecret))
	require.Equal(t, http.StatusBadRequest, out.Status)
	require.False(t, out.WillRetry)
	require.False(t, out.Received)
	require.Zero(t, f.ledger.Len())
}

func TestProcess_ApplyFailureIsRetried(t *testing.T) {
	f := newFixture(testSecret)
	f.applier.err = errors.New("deadlock detected")
	payload := subscriptionUpdated("evt_1", 1717243200, "active")
	ctx := context.Background()

	out := f.p.Process(ctx, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusInternalServerError, out.Status)
	require.True(t, out.Received)
	require.True(t, out.WillRetry)
	claim, err := f.ledger.Get(ctx, ClaimKey("evt_1"))
	require.NoError(t, err)
	require.Equal(t, models.IdempotencyClaimStateFailed, claim.State)

	f.applier.err = nil
	out = f.p.Process(ctx, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, out.Status)
	require.True(t, out.Processed)
	require.Equal(t, 1, f.applier.applies)
}

func TestProcess_UnknownSubjectIsFinal(t *testing.T) {
	f := newFixture(testSecret)
	payload := eventPayload("evt_1", EventInvoicePaid, 1717243200, `{"id":"in_1","customer":"cus_9","parent":{"subscription_details":{"subscription":"sub_9"}}}`)
	ctx := context.Background()

	out := f.p.Process(ctx, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, out.Status)
	require.False(t, out.Processed)

	out = f.p.Process(ctx, payload, sign(payload, testSecret))
	require.True(t, out.Duplicate)
}

func TestProcess_UnhandledType(t *testing.T) {
	f := newFixture(testSecret)
	payload := eventPayload("evt_1", "customer.created", 1717243200, `{"id":"cus_1"}`)
	out := f.p.Process(context.Background(), payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, out.Status)
	require.True(t, out.Received)
	require.False(t, out.Processed)

	claim, err := f.ledger.Get(context.Background(), ClaimKey("evt_1"))
	require.NoError(t, err)
	require.Equal(t, models.IdempotencyClaimStateCompleted, claim.State)
}

func TestProcess_MalformedKnownType(t *testing.T) {
	f := newFixture(testSecret)
	payload := eventPayload("evt_1", EventCustomerSubscriptionUpdated, 1717243200, `{"id":"sub_1","status":7}`)
	out := f.p.Process(context.Background(), payload, sign(payload, testSecret))
	require.Equal(t, http.StatusBadRequest, out.Status)
	require.Zero(t, f.ledger.Len())
}

func TestProcess_OutOfOrderEvents(t *testing.T) {
	f := newFixture(testSecret)
	ctx := context.Background()

	newer := subscriptionUpdated("evt_2", 1717243260, "past_due")
	older := subscriptionUpdated("evt_1", 1717243200, "active")

	out := f.p.Process(ctx, newer, sign(newer, testSecret))
	require.True(t, out.Processed)
	out = f.p.Process(ctx, older, sign(older, testSecret))
	require.True(t, out.Processed)
	require.True(t, out.Stale)

	st := f.applier.states["sub_1"]
	require.Equal(t, types.SubscriptionStatusPastDue, st.Status)
	require.Equal(t, "evt_2", st.LastEventID)

	claim, err := f.ledger.Get(ctx, ClaimKey("evt_1"))
	require.NoError(t, err)
	require.Equal(t, models.IdempotencyClaimStateCompleted, claim.State)
}
