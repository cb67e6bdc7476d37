package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
)

type GiftCardOrder struct {
	ID          string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	PurchaserID string              `gorm:"column:purchaser_id;type:uuid;not null;index" json:"purchaser_id"`
	Quantity    int                 `gorm:"column:quantity;not null" json:"quantity"`
	UnitValue   decimal.Decimal     `gorm:"column:unit_value;type:numeric(14,2);not null" json:"unit_value"`
	Status      types.PaymentStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Reference   string              `gorm:"column:reference;type:varchar(128)" json:"reference"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (GiftCardOrder) TableName() string {
	return "gift_card_orders"
}

type GiftCard struct {
	ID           string               `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Code         string               `gorm:"column:code;type:varchar(32);not null;uniqueIndex" json:"code"`
	OrderID      *string              `gorm:"column:order_id;type:uuid;index" json:"order_id"`
	InitialValue decimal.Decimal      `gorm:"column:initial_value;type:numeric(14,2);not null" json:"initial_value"`
	Balance      decimal.Decimal      `gorm:"column:balance;type:numeric(14,2);not null" json:"balance"`
	Status       types.GiftCardStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	ExpiresAt    *time.Time           `gorm:"column:expires_at;default:null" json:"expires_at"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (GiftCard) TableName() string {
	return "gift_cards"
}

// Expired reports whether the card lapsed before at.
func (g *GiftCard) Expired(at time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(at)
}

// GiftCardRedemption reserves part of a card's balance against a booking at
// checkout; settlement captures or voids the reservation.
type GiftCardRedemption struct {
	ID         string                 `gorm:"column:id;primary_key;type:uuid" json:"id"`
	GiftCardID string                 `gorm:"column:gift_card_id;type:uuid;not null;index" json:"gift_card_id"`
	BookingID  string                 `gorm:"column:booking_id;type:uuid;not null;index" json:"booking_id"`
	Amount     decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Status     types.RedemptionStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func (GiftCardRedemption) TableName() string {
	return "gift_card_redemptions"
}
