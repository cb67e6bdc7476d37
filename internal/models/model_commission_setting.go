package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionSetting rows are append-only config; the most recent active row
// wins. Rate is a percentage (15 means 15%).
type CommissionSetting struct {
	ID        string          `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(6,3);not null" json:"rate"`
	Enabled   bool            `gorm:"column:enabled;not null" json:"enabled"`
	Active    bool            `gorm:"column:active;not null;index" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

func (CommissionSetting) TableName() string {
	return "commission_settings"
}
