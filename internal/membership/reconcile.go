package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/infra/stripe"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Outcome of applying one provider fact.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeStale     Outcome = "stale"
	OutcomeUnmatched Outcome = "unmatched"
)

// SubscriptionChange is what the provider reported about a subscription.
type SubscriptionChange struct {
	SubscriptionID   string
	Status           string
	CurrentPeriodEnd *time.Time
	// Provider time of the event carrying the change.
	EventAt time.Time
}

// Reconciler applies provider facts to membership rows. Every mutation is a
// "set to latest value" keyed by subscription id and guarded by the row's
// last_event_at, so duplicates re-apply harmlessly and older events are
// skipped.
type Reconciler struct {
	db   *gorm.DB
	opts options
}

func NewReconciler(db *gorm.DB, opts ...Option) *Reconciler {
	return &Reconciler{db: db, opts: buildOptions(opts)}
}

// SubscriptionCreated needs the user tag; the row must belong to that user
// and carry the subscription id.
func (r *Reconciler) SubscriptionCreated(ctx context.Context, userID uint, c SubscriptionChange) (Outcome, error) {
	return r.apply(ctx, c, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND stripe_subscription_id = ?", userID, c.SubscriptionID)
	}, func(m *membership.Membership) {
		m.IsActive = stripe.GrantsMembership(c.Status)
	})
}

// SubscriptionUpdated mirrors the provider status and extends the validity
// window to the current period end.
func (r *Reconciler) SubscriptionUpdated(ctx context.Context, c SubscriptionChange) (Outcome, error) {
	return r.apply(ctx, c, bySubscription(c.SubscriptionID), func(m *membership.Membership) {
		m.IsActive = stripe.GrantsMembership(c.Status)
		if c.CurrentPeriodEnd != nil {
			end := *c.CurrentPeriodEnd
			m.EndDate = &end
		}
	})
}

// SubscriptionDeleted terminates the term now.
func (r *Reconciler) SubscriptionDeleted(ctx context.Context, c SubscriptionChange) (Outcome, error) {
	now := r.opts.clock()
	return r.apply(ctx, c, bySubscription(c.SubscriptionID), func(m *membership.Membership) {
		m.IsActive = false
		m.EndDate = &now
	})
}

func bySubscription(id string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("stripe_subscription_id = ?", id)
	}
}

func (r *Reconciler) apply(ctx context.Context, c SubscriptionChange, match func(*gorm.DB) *gorm.DB, mutate func(*membership.Membership)) (Outcome, error) {
	var outcome Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m membership.Membership
		err := match(tx).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = OutcomeUnmatched
			return nil
		}
		if err != nil {
			return fmt.Errorf("load membership for subscription %s: %w", c.SubscriptionID, err)
		}

		if !m.Accepts(c.EventAt) {
			outcome = OutcomeStale
			r.opts.logger.Info("skipping stale subscription event",
				zap.String("subscription_id", c.SubscriptionID),
				zap.Time("event_at", c.EventAt),
				zap.Timep("last_event_at", m.LastEventAt),
			)
			return nil
		}

		mutate(&m)
		eventAt := c.EventAt.UTC()
		m.LastEventAt = &eventAt
		if err := tx.Save(&m).Error; err != nil {
			return fmt.Errorf("save membership %d: %w", m.ID, err)
		}
		outcome = OutcomeApplied
		r.opts.logger.Info("subscription event applied",
			zap.Uint("user_id", m.UserID),
			zap.String("subscription_id", c.SubscriptionID),
			zap.String("status", c.Status),
			zap.Bool("active", m.IsActive),
		)
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}
