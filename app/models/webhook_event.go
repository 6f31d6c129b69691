package models

import "time"

type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// WebhookEvent is the audit record of one inbound webhook call. Rows are
// written once by the receiver and afterwards only change status, error and
// retry bookkeeping. They are never deleted.
type WebhookEvent struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventType    string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload      WebhookPayload `gorm:"not null" json:"payload"`
	Status       WebhookStatus  `gorm:"type:varchar(16);not null;default:'pending';index:idx_webhook_events_status_retry,priority:1" json:"status"`
	ReceivedAt   time.Time      `gorm:"not null;index" json:"received_at"`
	ProcessedAt  *time.Time     `gorm:"default:null" json:"processed_at,omitempty"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount   int            `gorm:"not null;default:0;index:idx_webhook_events_status_retry,priority:2" json:"retry_count"`
	LastRetryAt  *time.Time     `gorm:"default:null;index" json:"last_retry_at,omitempty"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// IsDeadLettered reports whether the event exhausted its retry budget.
func (e *WebhookEvent) IsDeadLettered(maxRetries int) bool {
	return e.Status == WebhookStatusFailed && e.RetryCount >= maxRetries
}
