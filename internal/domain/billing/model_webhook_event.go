package billing

import "time"

// WebhookEvent remembers every provider event id already processed so that
// redelivery is acknowledged without re-applying it.
type WebhookEvent struct {
	ID                uint   `gorm:"primaryKey"`
	EventID           string `gorm:"size:255;not null;uniqueIndex:idx_billing_webhook_events_event_id"`
	Type              string `gorm:"size:100;not null"`
	ProviderCreatedAt time.Time
	Outcome           string `gorm:"size:20"`
	ProcessedAt       time.Time
}

func (WebhookEvent) TableName() string { return "billing_webhook_events" }
