package models

import "time"

// ProcessedEvent is the idempotency ledger. One row per logical event id that
// was applied successfully; the primary key is what makes duplicate deliveries
// harmless.
type ProcessedEvent struct {
	EventID              string    `gorm:"type:varchar(191);primaryKey" json:"event_id"`
	EventType            string    `gorm:"type:varchar(100);not null" json:"event_type"`
	SourceWebhookEventID string    `gorm:"type:varchar(36);not null;index" json:"source_webhook_event_id"`
	ProcessedAt          time.Time `gorm:"not null" json:"processed_at"`
}

func (ProcessedEvent) TableName() string {
	return "processed_events"
}
