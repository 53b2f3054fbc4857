package models

import (
	"time"

	"github.com/fatflowers/truckstamp/pkg/types"
)

// SubscriptionState mirrors the billing provider's subscription status for one user.
// Only the webhook processor writes it.
type SubscriptionState struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	// CustomerID and SubscriptionID are the provider's identifiers, used to resolve
	// events that do not carry our user id.
	CustomerID         string                   `gorm:"column:customer_id;type:varchar(128);not null;default:'';index" json:"customer_id"`
	SubscriptionID     string                   `gorm:"column:subscription_id;type:varchar(128);not null;default:'';index" json:"subscription_id"`
	Status             types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Tier               types.SubscriptionTier   `gorm:"column:tier;type:varchar(32);not null;default:'free'" json:"tier"`
	CurrentPeriodStart *time.Time               `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time               `gorm:"column:current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd  bool                     `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	// LastEventAt is the provider timestamp of the last applied event. Older events are ignored.
	LastEventID string    `gorm:"column:last_event_id;type:varchar(128);not null;default:''" json:"last_event_id"`
	LastEventAt time.Time `gorm:"column:last_event_at;not null" json:"last_event_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SubscriptionState) TableName() string {
	return "subscription_state"
}

// Entitled reports whether the user currently holds the paid tier.
func (s *SubscriptionState) Entitled() bool {
	return s != nil && s.Status.Entitled()
}

// Featured reports whether vendors owned by the user should be featured.
func (s *SubscriptionState) Featured() bool {
	return s.Entitled() && s.Tier == types.SubscriptionTierFeatured
}

func (s *SubscriptionState) Info() *types.UserSubscriptionInfo {
	if s == nil {
		return &types.UserSubscriptionInfo{Status: types.SubscriptionStatusInactive, Tier: types.SubscriptionTierFree}
	}
	return &types.UserSubscriptionInfo{
		Status:             s.Status,
		Tier:               s.Tier,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
	}
}
