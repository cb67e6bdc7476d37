package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
)

// Payout tracks an outbound transfer to a provider. Completed and failed are
// terminal; later transfer events for the same code are ignored.
type Payout struct {
	ID           string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	TransferCode string `gorm:"column:transfer_code;type:varchar(64);not null;uniqueIndex" json:"transfer_code"`
	// ProviderTransactionID is the gateway-side id some transfer event
	// subtypes carry instead of the transfer code.
	ProviderTransactionID string              `gorm:"column:provider_transaction_id;type:varchar(64);index" json:"provider_transaction_id"`
	ProviderID            string              `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	Amount                decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Status                types.PayoutStatus  `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CompletedAt           *time.Time          `gorm:"column:completed_at;default:null" json:"completed_at"`
	FailedAt              *time.Time          `gorm:"column:failed_at;default:null" json:"failed_at"`
	FailureReason         string              `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func (Payout) TableName() string {
	return "payouts"
}
