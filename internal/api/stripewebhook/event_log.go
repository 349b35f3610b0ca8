package stripewebhooks

import (
	"context"
	"time"

	"ats-scanner/internal/domain/billing"

	"github.com/stripe/stripe-go/v75"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// alreadyProcessed reports whether the event id finished before. Failed
// attempts do not count so that the provider's retry runs again.
func alreadyProcessed(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&billing.WebhookEvent{}).
		Where("event_id = ? AND outcome <> ?", eventID, outcomeFailed).
		Count(&n).Error
	return n > 0, err
}

func recordEvent(ctx context.Context, db *gorm.DB, event *stripe.Event, eventAt time.Time, outcome string) error {
	row := billing.WebhookEvent{
		EventID:           event.ID,
		Type:              string(event.Type),
		ProviderCreatedAt: eventAt,
		Outcome:           outcome,
		ProcessedAt:       time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"outcome", "processed_at"}),
		}).
		Create(&row).Error
}
