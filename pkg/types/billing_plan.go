package types

type BillingProvider string

const (
	BillingProviderStripe BillingProvider = "stripe"
)

// BillingPlan maps a provider price to the vendor tier it grants.
type BillingPlan struct {
	ID       string           `json:"id" mapstructure:"id"`
	Provider BillingProvider  `json:"provider" mapstructure:"provider"`
	PriceID  string           `json:"price_id" mapstructure:"price_id"`
	Tier     SubscriptionTier `json:"tier" mapstructure:"tier"`
}
