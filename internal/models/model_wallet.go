package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
)

// Wallet balances are only mutated through single atomic UPDATE statements
// (wallet.Service); never read-modify-write from a handler.
type Wallet struct {
	ID        string          `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID    string          `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

type WalletTopup struct {
	ID        string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID    string              `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Amount    decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Status    types.PaymentStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Reference string              `gorm:"column:reference;type:varchar(128)" json:"reference"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (WalletTopup) TableName() string {
	return "wallet_topups"
}
