package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
)

// ReconciliationEntry is the durable retry record for a charge-flow failure
// that happened after the idempotency row was claimed. WebhookEventID links
// back to the stored payload so the worker can re-drive settlement.
type ReconciliationEntry struct {
	ID               string                     `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BookingID        string                     `gorm:"column:booking_id;type:uuid;index" json:"booking_id"`
	PaymentReference string                     `gorm:"column:payment_reference;type:varchar(128);not null;index" json:"payment_reference"`
	WebhookEventID   string                     `gorm:"column:webhook_event_id;type:uuid" json:"webhook_event_id"`
	Status           types.ReconciliationStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	AttemptCount     int                        `gorm:"column:attempt_count;not null" json:"attempt_count"`
	NextRetryAt      time.Time                  `gorm:"column:next_retry_at;not null;index" json:"next_retry_at"`
	ErrorMessage     string                     `gorm:"column:error_message;type:text" json:"error_message"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

func (ReconciliationEntry) TableName() string {
	return "reconciliation_queue"
}
