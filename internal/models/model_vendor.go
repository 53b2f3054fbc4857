package models

import (
	"time"

	"github.com/fatflowers/truckstamp/pkg/types"
)

// Vendor is the read model of a mobile vendor (food truck) used by check-ins.
// Vendor profile management lives elsewhere; this service only reads it and
// maintains IsFeatured from billing state.
type Vendor struct {
	ID      string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	OwnerID string `gorm:"column:owner_id;type:varchar(64);not null;index" json:"owner_id"`
	Name    string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	IsOpen  bool   `gorm:"column:is_open;not null;default:false" json:"is_open"`
	// Lat/Lng is the last reported location; nil until the first fix.
	Lat               *float64   `gorm:"column:lat" json:"lat"`
	Lng               *float64   `gorm:"column:lng" json:"lng"`
	LocationUpdatedAt *time.Time `gorm:"column:location_updated_at" json:"location_updated_at"`
	// StampsRequired of zero means the service default.
	StampsRequired int                    `gorm:"column:stamps_required;not null;default:0" json:"stamps_required"`
	Tier           types.SubscriptionTier `gorm:"column:tier;type:varchar(32);not null;default:'free'" json:"tier"`
	IsFeatured     bool                   `gorm:"column:is_featured;not null;default:false;index" json:"is_featured"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func (Vendor) TableName() string {
	return "vendor"
}

// HasLocation reports whether the vendor has ever reported a location fix.
func (v *Vendor) HasLocation() bool {
	return v != nil && v.Lat != nil && v.Lng != nil && v.LocationUpdatedAt != nil
}
