package plans

import "time"

// Unlimited is the ScanLimit sentinel for plans whose scans are not metered.
const Unlimited = -1

// Feature names a capability a plan can unlock.
type Feature string

const (
	FeatureScan              Feature = "scan"
	FeaturePrioritySupport   Feature = "priority_support"
	FeatureAdvancedAnalytics Feature = "advanced_analytics"
	FeatureBulkUpload        Feature = "bulk_upload"
)

type Plan struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	Name          string  `gorm:"size:50;not null" json:"name"`
	Type          Type    `gorm:"not null;uniqueIndex:idx_plans_type" json:"type"`
	PriceUSD      float64 `gorm:"type:decimal(18,2);not null" json:"price"`
	ScanLimit     int     `gorm:"not null" json:"scan_limit"`
	IsActive      bool    `gorm:"not null" json:"is_active"`
	StripePriceID *string `gorm:"column:stripe_price_id;uniqueIndex:idx_plans_stripe_price_id" json:"stripe_price_id,omitempty"`

	HasPrioritySupport   bool `json:"has_priority_support"`
	HasAdvancedAnalytics bool `json:"has_advanced_analytics"`
	HasBulkUpload        bool `json:"has_bulk_upload"`

	CreatedAt time.Time `json:"created_at"`
}

func (p *Plan) Unlimited() bool {
	return p != nil && p.ScanLimit == Unlimited
}

// PriceCents converts the catalog price to the provider's minor units.
func (p *Plan) PriceCents() int64 {
	if p == nil {
		return 0
	}
	return int64(p.PriceUSD*100 + 0.5)
}

// Purchasable reports whether a subscription can be started on the plan.
func (p *Plan) Purchasable() bool {
	return p != nil && p.IsActive && p.Type.Paid() && p.StripePriceID != nil && *p.StripePriceID != ""
}

// Features returns the capabilities the plan grants, always including scanning.
func (p *Plan) Features() []Feature {
	out := []Feature{FeatureScan}
	if p == nil {
		return out
	}
	if p.HasAdvancedAnalytics {
		out = append(out, FeatureAdvancedAnalytics)
	}
	if p.HasPrioritySupport {
		out = append(out, FeaturePrioritySupport)
	}
	if p.HasBulkUpload {
		out = append(out, FeatureBulkUpload)
	}
	return out
}

func (p *Plan) HasFeature(f Feature) bool {
	for _, have := range p.Features() {
		if have == f {
			return true
		}
	}
	return false
}
