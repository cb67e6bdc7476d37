package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
)

type MembershipOrder struct {
	ID           string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID       string              `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ProviderID   string              `gorm:"column:provider_id;type:uuid;not null" json:"provider_id"`
	PlanName     string              `gorm:"column:plan_name;type:varchar(128);not null" json:"plan_name"`
	Amount       decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	DurationDays int                 `gorm:"column:duration_days;not null" json:"duration_days"`
	Status       types.PaymentStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Reference    string              `gorm:"column:reference;type:varchar(128)" json:"reference"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func (MembershipOrder) TableName() string {
	return "membership_orders"
}

// Membership is one logical membership per (user, provider); activation
// upserts on that key so duplicate deliveries never create a second row.
type Membership struct {
	ID         string     `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID     string     `gorm:"column:user_id;type:uuid;not null;uniqueIndex:unique_user_provider,priority:1" json:"user_id"`
	ProviderID string     `gorm:"column:provider_id;type:uuid;not null;uniqueIndex:unique_user_provider,priority:2" json:"provider_id"`
	PlanName   string     `gorm:"column:plan_name;type:varchar(128);not null" json:"plan_name"`
	Active     bool       `gorm:"column:active;not null" json:"active"`
	StartedAt  time.Time  `gorm:"column:started_at" json:"started_at"`
	ExpiresAt  *time.Time `gorm:"column:expires_at;default:null" json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Membership) TableName() string {
	return "memberships"
}
