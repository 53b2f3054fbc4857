package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusInactive   SubscriptionStatus = "inactive"
)

// Entitled reports whether the status grants the paid tier's benefits.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

type SubscriptionTier string

const (
	SubscriptionTierFree     SubscriptionTier = "free"
	SubscriptionTierBasic    SubscriptionTier = "basic"
	SubscriptionTierFeatured SubscriptionTier = "featured"
)

// SubscriptionChangeReason is the billing event kind that caused a state change.
type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCheckoutCompleted   SubscriptionChangeReason = "checkout_completed"
	SubscriptionChangeReasonSubscriptionUpdated SubscriptionChangeReason = "subscription_updated"
	SubscriptionChangeReasonSubscriptionDeleted SubscriptionChangeReason = "subscription_deleted"
	SubscriptionChangeReasonPaymentFailed       SubscriptionChangeReason = "payment_failed"
	SubscriptionChangeReasonPaymentSucceeded    SubscriptionChangeReason = "payment_succeeded"
)

type UserSubscriptionInfo struct {
	Status             SubscriptionStatus `json:"status"`
	Tier               SubscriptionTier   `json:"tier"`
	CurrentPeriodStart *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
}
