package models

import "time"

// LoyaltyCard accumulates stamps for one (user, vendor) pair.
// Invariants: 0 <= Stamps < StampsRequired, RewardsRedeemed <= RewardsEarned.
type LoyaltyCard struct {
	ID             string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID         string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:ux_loyalty_card_user_vendor,priority:1" json:"user_id"`
	VendorID       string `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_loyalty_card_user_vendor,priority:2;index" json:"vendor_id"`
	Stamps         int    `gorm:"column:stamps;not null;default:0" json:"stamps"`
	StampsRequired int    `gorm:"column:stamps_required;not null" json:"stamps_required"`
	// TotalStamps counts every stamp ever issued on the card.
	TotalStamps     int64      `gorm:"column:total_stamps;not null;default:0" json:"total_stamps"`
	RewardsEarned   int64      `gorm:"column:rewards_earned;not null;default:0" json:"rewards_earned"`
	RewardsRedeemed int64      `gorm:"column:rewards_redeemed;not null;default:0" json:"rewards_redeemed"`
	LastCheckIn     *time.Time `gorm:"column:last_check_in" json:"last_check_in"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (LoyaltyCard) TableName() string {
	return "loyalty_card"
}

// RewardsAvailable returns the number of earned rewards not yet redeemed.
func (c *LoyaltyCard) RewardsAvailable() int64 {
	if c == nil {
		return 0
	}
	return c.RewardsEarned - c.RewardsRedeemed
}
