package models

import "time"

// CheckIn records one verified visit. Rows are immutable once written.
type CheckIn struct {
	ID       string  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID   string  `gorm:"column:user_id;type:varchar(64);not null;index:idx_check_in_user_vendor_created,priority:1" json:"user_id"`
	VendorID string  `gorm:"column:vendor_id;type:uuid;not null;index:idx_check_in_user_vendor_created,priority:2;index" json:"vendor_id"`
	Lat      float64 `gorm:"column:lat;not null" json:"lat"`
	Lng      float64 `gorm:"column:lng;not null" json:"lng"`
	ClaimKey string  `gorm:"column:claim_key;type:varchar(255);not null;uniqueIndex" json:"-"`

	// RewardsUnlocked is how many rewards the stamp from this visit completed.
	RewardsUnlocked int64     `gorm:"column:rewards_unlocked;not null;default:0" json:"-"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;index:idx_check_in_user_vendor_created,priority:3" json:"created_at"`
}

func (CheckIn) TableName() string {
	return "check_in"
}
