package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fatflowers/truckstamp/pkg/types"

	"github.com/stretchr/testify/require"
)

func rawEvent(id, typ string, object string) *RawEvent {
	return &RawEvent{ID: id, Type: typ, Created: time.Unix(1717243200, 0).UTC(), Object: json.RawMessage(object)}
}

func TestNormalize_CheckoutSession(t *testing.T) {
	ev, err := Normalize(rawEvent("evt_1", EventCheckoutSessionCompleted, `{
		"id": "cs_1",
		"mode": "subscription",
		"payment_status": "paid",
		"client_reference_id": "u1",
		"customer": {"id": "cus_1", "object": "customer"},
		"subscription": "sub_1",
		"metadata": {"tier": "featured"}
	}`))
	require.NoError(t, err)
	ch := ev.Change
	require.NotNil(t, ch)
	require.Equal(t, "u1", ch.UserID)
	require.Equal(t, "cus_1", ch.CustomerID)
	require.Equal(t, "sub_1", ch.SubscriptionID)
	require.Equal(t, types.SubscriptionStatusActive, *ch.Status)
	require.Equal(t, types.SubscriptionTierFeatured, *ch.Tier)
	require.Equal(t, types.SubscriptionChangeReasonCheckoutCompleted, ch.Reason)
	require.Equal(t, "evt_1", ch.EventID)
	require.Equal(t, ev.Created, ch.EventAt)
}

func TestNormalize_CheckoutPaymentMode(t *testing.T) {
	ev, err := Normalize(rawEvent("evt_1", EventCheckoutSessionCompleted, `{"id":"cs_1","mode":"payment"}`))
	require.NoError(t, err)
	require.Nil(t, ev.Change)
}

func TestNormalize_SubscriptionPeriodFromItems(t *testing.T) {
	ev, err := Normalize(rawEvent("evt_2", EventCustomerSubscriptionUpdated, `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "past_due",
		"cancel_at_period_end": true,
		"metadata": {"user_id": "u1"},
		"items": {"data": [{"current_period_start": 1717200000, "current_period_end": 1719792000, "price": {"id": "price_featured"}}]}
	}`))
	require.NoError(t, err)
	ch := ev.Change
	require.Equal(t, types.SubscriptionStatusPastDue, *ch.Status)
	require.Equal(t, "price_featured", ch.PriceID)
	require.Nil(t, ch.Tier)
	require.True(t, *ch.CancelAtPeriodEnd)
	require.Equal(t, time.Unix(1717200000, 0).UTC(), *ch.CurrentPeriodStart)
	require.Equal(t, time.Unix(1719792000, 0).UTC(), *ch.CurrentPeriodEnd)
}

func TestNormalize_SubscriptionWithoutItems(t *testing.T) {
	ev, err := Normalize(rawEvent("evt_2", EventCustomerSubscriptionCreated, `{
		"id": "sub_1", "customer": {"id": "cus_1", "object": "customer"}, "status": "incomplete_expired",
		"metadata": {"user_id": "u1", "tier": "basic"}
	}`))
	require.NoError(t, err)
	ch := ev.Change
	require.Equal(t, "cus_1", ch.CustomerID)
	require.Equal(t, types.SubscriptionStatusCanceled, *ch.Status)
	require.Equal(t, types.SubscriptionTierBasic, *ch.Tier)
	require.Empty(t, ch.PriceID)
	require.Nil(t, ch.CurrentPeriodStart)
	require.Nil(t, ch.CurrentPeriodEnd)
}

func TestNormalize_SubscriptionDeleted(t *testing.T) {
	ev, err := Normalize(rawEvent("evt_3", EventCustomerSubscriptionDeleted, `{"id":"sub_1","customer":"cus_1","status":"active"}`))
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusCanceled, *ev.Change.Status)
	require.Equal(t, types.SubscriptionChangeReasonSubscriptionDeleted, ev.Change.Reason)
}

func TestNormalize_Invoice(t *testing.T) {
	ev, err := Normalize(rawEvent("evt_4", EventInvoicePaymentFailed, `{
		"id": "in_1",
		"customer": "cus_1",
		"parent": {"subscription_details": {"subscription": "sub_1", "metadata": {"user_id": "u1"}}}
	}`))
	require.NoError(t, err)
	require.Equal(t, "sub_1", ev.Change.SubscriptionID)
	require.Equal(t, "u1", ev.Change.UserID)
	require.Equal(t, types.SubscriptionStatusPastDue, *ev.Change.Status)

	ev, err = Normalize(rawEvent("evt_5", EventInvoicePaid, `{
		"id": "in_2",
		"customer": "cus_1",
		"parent": {"type": "subscription_details", "subscription_details": {"subscription": {"id": "sub_2", "object": "subscription"}}}
	}`))
	require.NoError(t, err)
	require.Equal(t, "sub_2", ev.Change.SubscriptionID)
	require.Empty(t, ev.Change.UserID)
	require.Equal(t, types.SubscriptionStatusActive, *ev.Change.Status)

	ev, err = Normalize(rawEvent("evt_6", EventInvoicePaid, `{"id":"in_3","customer":"cus_1"}`))
	require.NoError(t, err)
	require.Nil(t, ev.Change)
}

func TestNormalize_UnknownTypeIgnored(t *testing.T) {
	ev, err := Normalize(rawEvent("evt_7", "customer.created", `{"id":"cus_1"}`))
	require.NoError(t, err)
	require.Nil(t, ev.Change)
}

func TestNormalize_Malformed(t *testing.T) {
	_, err := Normalize(rawEvent("evt_8", EventCustomerSubscriptionUpdated, `{"id": 12}`))
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = Normalize(rawEvent("evt_9", EventInvoicePaid, ``))
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = Normalize(rawEvent("", "customer.created", `{}`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}
