package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventStatus string

const (
	WebhookEventStatusClaimed   WebhookEventStatus = "claimed"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is the idempotency ledger row. The unique (source, event_id)
// index is what makes a concurrent duplicate delivery observable instead of
// reprocessable.
type WebhookEvent struct {
	ID        string             `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Source    string             `gorm:"column:source;type:varchar(32);not null;uniqueIndex:unique_source_event_id,priority:1" json:"source"`
	EventID   string             `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex:unique_source_event_id,priority:2" json:"event_id"`
	EventType string             `gorm:"column:event_type;type:varchar(64);not null;index" json:"event_type"`
	Payload   datatypes.JSON     `gorm:"column:payload;type:jsonb" json:"payload"`
	Status    WebhookEventStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	// Error holds the last handler failure for failed rows.
	Error       *string    `gorm:"column:error;type:text" json:"error"`
	ProcessedAt *time.Time `gorm:"column:processed_at;default:null" json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
