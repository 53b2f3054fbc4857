package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/truckstamp/pkg/config"

	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrSecretNotConfigured    = errors.New("webhook signing secret not configured")
	defaultSignatureTolerance = 5 * time.Minute
)

// RawEvent is a verified but not yet normalized provider event.
type RawEvent struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
}

// Verifier authenticates a raw delivery. Nothing may be trusted from the payload before Verify succeeds.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (*RawEvent, error)
}

type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeVerifier returns ErrSecretNotConfigured when no signing secret is set.
func NewStripeVerifier(cfg *config.Config) (*StripeVerifier, error) {
	if cfg.Stripe.WebhookSecret == "" {
		return nil, ErrSecretNotConfigured
	}
	tolerance := cfg.Stripe.Tolerance
	if tolerance <= 0 {
		tolerance = defaultSignatureTolerance
	}
	return &StripeVerifier{secret: cfg.Stripe.WebhookSecret, tolerance: tolerance}, nil
}

// Verify checks the HMAC-SHA256 signature and timestamp tolerance of a Stripe delivery.
// API version mismatches are ignored; objects are decoded into stripe-go types by Normalize.
func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (*RawEvent, error) {
	if v.secret == "" {
		return nil, ErrSecretNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	raw := &RawEvent{ID: ev.ID, Type: string(ev.Type), Created: time.Unix(ev.Created, 0).UTC()}
	if ev.Data != nil {
		raw.Object = ev.Data.Raw
	}
	return raw, nil
}
