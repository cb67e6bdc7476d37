package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
)

// FinanceTransaction is a double-entry-style ledger row. For a successful
// booking payment the emitted rows must conserve money: commission +
// provider_earnings + service_fee + tip + tax + travel_fee == total.
type FinanceTransaction struct {
	ID              string                       `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BookingID       *string                      `gorm:"column:booking_id;type:uuid;index" json:"booking_id"`
	ProviderID      *string                      `gorm:"column:provider_id;type:uuid;index" json:"provider_id"`
	TransactionType types.FinanceTransactionType `gorm:"column:transaction_type;type:varchar(48);not null;index" json:"transaction_type"`
	Amount          decimal.Decimal              `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Fees            decimal.Decimal              `gorm:"column:fees;type:numeric(14,2);not null" json:"fees"`
	Commission      decimal.Decimal              `gorm:"column:commission;type:numeric(14,2);not null" json:"commission"`
	Net             decimal.Decimal              `gorm:"column:net;type:numeric(14,2);not null" json:"net"`
	Description     string                       `gorm:"column:description;type:text" json:"description"`
	CreatedAt       time.Time                    `json:"created_at"`
}

func (FinanceTransaction) TableName() string {
	return "finance_transactions"
}
