package models

import (
	"time"

	"github.com/fatflowers/truckstamp/pkg/types"

	"gorm.io/datatypes"
)

// SubscriptionLog records changes to subscription state.
// Use case: troubleshooting out-of-order or replayed billing events.
type SubscriptionLog struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);index:idx_subscription_log_user_id_id,priority:1;not null"`
	// EventID is the provider event that caused the change.
	EventID string                         `gorm:"column:event_id;type:varchar(128);not null;default:''"`
	Reason  types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// Before stores subscription data before the change in JSON format.
	Before datatypes.JSONType[*SubscriptionState] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores subscription data after the change in JSON format.
	After     datatypes.JSONType[*SubscriptionState] `gorm:"column:after;type:jsonb;default:'null'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
