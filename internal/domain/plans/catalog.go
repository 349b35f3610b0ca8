package plans

import (
	"context"
	"errors"
	"fmt"

	"ats-scanner/internal/apperr"

	"gorm.io/gorm"
)

var (
	ErrPlanNotFound = fmt.Errorf("%w: invalid membership plan", apperr.ErrValidation)
	ErrPlanInactive = fmt.Errorf("%w: membership plan is not for sale", apperr.ErrValidation)
	ErrPlanNoPrice  = fmt.Errorf("%w: membership plan has no billing price", apperr.ErrValidation)
)

// FreeScanLimit is the scan allowance of the free tier.
const FreeScanLimit = 3

// DefaultCatalog is the seed data for the plans table. Stripe price ids are
// bound later by the admin sync.
func DefaultCatalog() []Plan {
	return []Plan{
		{Name: "Free", Type: TypeFree, PriceUSD: 0, ScanLimit: FreeScanLimit, IsActive: true},
		{Name: "Basic", Type: TypeBasic, PriceUSD: 9.99, ScanLimit: Unlimited, IsActive: true,
			HasAdvancedAnalytics: true},
		{Name: "Premium", Type: TypePremium, PriceUSD: 19.99, ScanLimit: Unlimited, IsActive: true,
			HasAdvancedAnalytics: true, HasPrioritySupport: true, HasBulkUpload: true},
		{Name: "Enterprise", Type: TypeEnterprise, PriceUSD: 49.99, ScanLimit: Unlimited, IsActive: false,
			HasAdvancedAnalytics: true, HasPrioritySupport: true, HasBulkUpload: true},
	}
}

// Catalog is the read side of the plans table.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// ListActive returns plans offered for sale, cheapest first.
func (c *Catalog) ListActive(ctx context.Context) ([]Plan, error) {
	var out []Plan
	err := c.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price_usd ASC").
		Find(&out).Error
	return out, err
}

// ByID returns a plan that can be sold, or a validation error.
func (c *Catalog) ByID(ctx context.Context, id uint) (*Plan, error) {
	var p Plan
	if err := c.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrPlanInactive
	}
	return &p, nil
}

// ByType returns the catalog entry for a tier regardless of its sale status.
func (c *Catalog) ByType(ctx context.Context, t Type) (*Plan, error) {
	var p Plan
	if err := c.db.WithContext(ctx).Where("type = ?", t).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// BindPrice attaches a provider price to the plan of type t and releases it
// from any other plan that held it.
func (c *Catalog) BindPrice(ctx context.Context, t Type, priceID string, priceUSD float64) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Plan{}).
			Where("stripe_price_id = ? AND type <> ?", priceID, t).
			Update("stripe_price_id", nil).Error; err != nil {
			return err
		}
		res := tx.Model(&Plan{}).Where("type = ?", t).Updates(map[string]any{
			"stripe_price_id": priceID,
			"price_usd":       priceUSD,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPlanNotFound
		}
		return nil
	})
}
