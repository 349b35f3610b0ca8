package membership

import (
	"time"

	"ats-scanner/internal/domain/plans"
)

// Source records how a membership term was purchased.
type Source string

const (
	SourceSubscription Source = "subscription"
	SourceOneTime      Source = "one_time"
)

// Membership is the local view of a user's paid plan. There is exactly one
// row per user; it is never deleted, IsActive=false marks termination.
type Membership struct {
	ID     uint       `gorm:"primaryKey"`
	UserID uint       `gorm:"not null;uniqueIndex:idx_memberships_user_id"`
	Type   plans.Type `gorm:"not null;default:0"`
	Source Source     `gorm:"type:varchar(20)"`

	StartDate *time.Time
	EndDate   *time.Time
	IsActive  bool `gorm:"not null;default:false"`

	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id;uniqueIndex:idx_memberships_stripe_subscription_id"`
	StripePriceID        *string `gorm:"column:stripe_price_id"`

	// Provider time of the last fact applied to this row. Older events are skipped.
	LastEventAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// History archives a finished membership term before the row is reused.
type History struct {
	ID                   uint       `gorm:"primaryKey"`
	UserID               uint       `gorm:"not null;index"`
	MembershipID         uint       `gorm:"not null;index"`
	Type                 plans.Type `gorm:"not null"`
	Source               Source     `gorm:"type:varchar(20)"`
	StartDate            *time.Time
	EndDate              *time.Time
	StripeSubscriptionID *string
	EndReason            string `gorm:"type:varchar(30)"`
	ArchivedAt           time.Time
}

func (History) TableName() string { return "membership_histories" }
