package billing

import (
	"time"

	"ats-scanner/internal/domain/plans"
)

const (
	KindSubscription = "subscription"
	KindOneTime      = "one_time"

	StatusIncomplete = "incomplete"
	StatusActive     = "active"
	StatusSucceeded  = "succeeded"
)

// Collected lists the payment statuses counted as revenue.
var Collected = []string{StatusSucceeded, StatusActive}

type Payment struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	UserID               uint        `gorm:"not null;index" json:"-"`
	PlanID               *uint       `json:"plan_id,omitempty"`
	Plan                 *plans.Plan `json:"plan,omitempty"`
	Kind                 string      `gorm:"type:varchar(20);not null" json:"kind"`
	StripeSubscriptionID *string     `json:"stripe_subscription_id,omitempty"`
	PaymentIntentID      *string     `gorm:"uniqueIndex:idx_payments_payment_intent_id" json:"payment_intent_id,omitempty"`
	AmountUSD            float64     `gorm:"type:decimal(18,2)" json:"amount"`
	Status               string      `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
}
