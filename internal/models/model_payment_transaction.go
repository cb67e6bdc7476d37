package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentTransaction is an append-only audit row, one per monetary movement.
// Rows are never updated after insert; a refund is a new row referencing the
// original reference.
type PaymentTransaction struct {
	ID              string                         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BookingID       *string                        `gorm:"column:booking_id;type:uuid;index" json:"booking_id"`
	Reference       string                         `gorm:"column:reference;type:varchar(128);not null;index" json:"reference"`
	Amount          decimal.Decimal                `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Fees            decimal.Decimal                `gorm:"column:fees;type:numeric(14,2);not null" json:"fees"`
	NetAmount       decimal.Decimal                `gorm:"column:net_amount;type:numeric(14,2);not null" json:"net_amount"`
	Status          types.PaymentTransactionStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Provider        types.PaymentProvider          `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	TransactionType string                         `gorm:"column:transaction_type;type:varchar(48);not null" json:"transaction_type"`
	Metadata        datatypes.JSON                 `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt       time.Time                      `json:"created_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
