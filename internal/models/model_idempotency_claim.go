package models

import "time"

type IdempotencyClaimState string

const (
	IdempotencyClaimStateClaimed   IdempotencyClaimState = "claimed"
	IdempotencyClaimStateCompleted IdempotencyClaimState = "completed"
	IdempotencyClaimStateFailed    IdempotencyClaimState = "failed"
)

type IdempotencyScope string

const (
	IdempotencyScopeCheckIn       IdempotencyScope = "checkin"
	IdempotencyScopeStripeWebhook IdempotencyScope = "stripe_webhook"
)

// IdempotencyClaim is the exclusivity record for one natural idempotency key.
// Key uniqueness is enforced by the primary key, so concurrent inserts have exactly one winner.
type IdempotencyClaim struct {
	Key   string                `gorm:"column:key;type:varchar(255);primary_key" json:"key"`
	Scope IdempotencyScope      `gorm:"column:scope;type:varchar(32);not null;index" json:"scope"`
	State IdempotencyClaimState `gorm:"column:state;type:varchar(16);not null;index" json:"state"`
	// ResultRef points at the entity produced under this claim, e.g. a check-in id.
	ResultRef   string     `gorm:"column:result_ref;type:varchar(255);not null;default:''" json:"result_ref"`
	Attempts    int        `gorm:"column:attempts;not null;default:1" json:"attempts"`
	LastError   string     `gorm:"column:last_error;type:text;not null;default:''" json:"last_error"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (IdempotencyClaim) TableName() string {
	return "idempotency_claim"
}
