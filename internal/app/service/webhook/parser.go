package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/truckstamp/internal/app/service/subscription"
	"github.com/fatflowers/truckstamp/pkg/types"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionCreated = "customer.subscription.created"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaymentFailed        = "invoice.payment_failed"
	EventInvoicePaid                 = "invoice.paid"
)

// Event is the normalized form of a verified delivery. Change is nil for event types that do
// not affect subscription state.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Change  *subscription.Change
}

const (
	metadataUserID = "user_id"
	metadataTier   = "tier"
)

var stripeStatuses = map[stripe.SubscriptionStatus]types.SubscriptionStatus{
	stripe.SubscriptionStatusActive:            types.SubscriptionStatusActive,
	stripe.SubscriptionStatusTrialing:          types.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusPastDue:           types.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusUnpaid:            types.SubscriptionStatusUnpaid,
	stripe.SubscriptionStatusIncomplete:        types.SubscriptionStatusIncomplete,
	stripe.SubscriptionStatusIncompleteExpired: types.SubscriptionStatusCanceled,
	stripe.SubscriptionStatusCanceled:          types.SubscriptionStatusCanceled,
	stripe.SubscriptionStatusPaused:            types.SubscriptionStatusInactive,
}

var tiers = []types.SubscriptionTier{types.SubscriptionTierFree, types.SubscriptionTierBasic, types.SubscriptionTierFeatured}

// Normalize decodes the event object of known types into a subscription change.
func Normalize(raw *RawEvent) (*Event, error) {
	ev := &Event{ID: raw.ID, Type: raw.Type, Created: raw.Created}
	if raw.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}

	var err error
	switch raw.Type {
	case EventCheckoutSessionCompleted:
		ev.Change, err = normalizeCheckout(raw.Object)
	case EventCustomerSubscriptionCreated, EventCustomerSubscriptionUpdated, EventCustomerSubscriptionDeleted:
		ev.Change, err = normalizeSubscription(raw.Type, raw.Object)
	case EventInvoicePaymentFailed, EventInvoicePaid:
		ev.Change, err = normalizeInvoice(raw.Type, raw.Object)
	default:
		return ev, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, raw.Type, err)
	}
	if ev.Change != nil {
		ev.Change.EventID = raw.ID
		ev.Change.EventType = raw.Type
		ev.Change.EventAt = raw.Created
	}
	return ev, nil
}

func decodeObject(obj json.RawMessage, v any) error {
	if len(obj) == 0 {
		return errors.New("empty event object")
	}
	return json.Unmarshal(obj, v)
}

func normalizeCheckout(obj json.RawMessage) (*subscription.Change, error) {
	var sess stripe.CheckoutSession
	if err := decodeObject(obj, &sess); err != nil {
		return nil, err
	}
	if sess.Mode != "" && sess.Mode != stripe.CheckoutSessionModeSubscription {
		return nil, nil
	}
	ch := &subscription.Change{
		Reason:         types.SubscriptionChangeReasonCheckoutCompleted,
		UserID:         lo.Ternary(sess.ClientReferenceID != "", sess.ClientReferenceID, sess.Metadata[metadataUserID]),
		CustomerID:     customerID(sess.Customer),
		SubscriptionID: subscriptionID(sess.Subscription),
		Tier:           parseTier(sess.Metadata[metadataTier]),
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid || sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		ch.Status = lo.ToPtr(types.SubscriptionStatusActive)
	}
	return ch, nil
}

func normalizeSubscription(eventType string, obj json.RawMessage) (*subscription.Change, error) {
	var sub stripe.Subscription
	if err := decodeObject(obj, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, errors.New("subscription id missing")
	}
	ch := &subscription.Change{
		Reason:            types.SubscriptionChangeReasonSubscriptionUpdated,
		UserID:            sub.Metadata[metadataUserID],
		CustomerID:        customerID(sub.Customer),
		SubscriptionID:    sub.ID,
		Tier:              parseTier(sub.Metadata[metadataTier]),
		CancelAtPeriodEnd: lo.ToPtr(sub.CancelAtPeriodEnd),
	}
	if status, ok := stripeStatuses[sub.Status]; ok {
		ch.Status = &status
	}

	// billing periods live on the subscription items
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		if item.Price != nil {
			ch.PriceID = item.Price.ID
		}
		ch.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
		ch.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
	}

	if eventType == EventCustomerSubscriptionDeleted {
		ch.Reason = types.SubscriptionChangeReasonSubscriptionDeleted
		ch.Status = lo.ToPtr(types.SubscriptionStatusCanceled)
	}
	return ch, nil
}

func normalizeInvoice(eventType string, obj json.RawMessage) (*subscription.Change, error) {
	var inv stripe.Invoice
	if err := decodeObject(obj, &inv); err != nil {
		return nil, err
	}
	var subID, userID string
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		subID = subscriptionID(inv.Parent.SubscriptionDetails.Subscription)
		userID = inv.Parent.SubscriptionDetails.Metadata[metadataUserID]
	}
	// one-off invoices do not touch subscription state
	if subID == "" {
		return nil, nil
	}
	ch := &subscription.Change{
		UserID:         userID,
		CustomerID:     customerID(inv.Customer),
		SubscriptionID: subID,
	}
	if eventType == EventInvoicePaymentFailed {
		ch.Reason = types.SubscriptionChangeReasonPaymentFailed
		ch.Status = lo.ToPtr(types.SubscriptionStatusPastDue)
	} else {
		ch.Reason = types.SubscriptionChangeReasonPaymentSucceeded
		ch.Status = lo.ToPtr(types.SubscriptionStatusActive)
	}
	return ch, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.ID
}

func parseTier(s string) *types.SubscriptionTier {
	t := types.SubscriptionTier(s)
	if !lo.Contains(tiers, t) {
		return nil
	}
	return &t
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	return lo.ToPtr(time.Unix(sec, 0).UTC())
}
