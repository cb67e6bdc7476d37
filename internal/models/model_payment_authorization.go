package models

import "time"

// PaymentAuthorization is a saved reusable card token. Signature is the
// gateway's stable card fingerprint, unique so re-saving the same card on a
// later payment is a no-op.
type PaymentAuthorization struct {
	ID                string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID            string    `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	AuthorizationCode string    `gorm:"column:authorization_code;type:varchar(64);not null" json:"authorization_code"`
	CardType          string    `gorm:"column:card_type;type:varchar(32)" json:"card_type"`
	Last4             string    `gorm:"column:last4;type:varchar(4)" json:"last4"`
	ExpMonth          string    `gorm:"column:exp_month;type:varchar(2)" json:"exp_month"`
	ExpYear           string    `gorm:"column:exp_year;type:varchar(4)" json:"exp_year"`
	Bank              string    `gorm:"column:bank;type:varchar(128)" json:"bank"`
	Signature         string    `gorm:"column:signature;type:varchar(64);not null;uniqueIndex" json:"signature"`
	Reusable          bool      `gorm:"column:reusable;not null" json:"reusable"`
	CreatedAt         time.Time `json:"created_at"`
}

func (PaymentAuthorization) TableName() string {
	return "payment_authorizations"
}

// PromotionUsage records a promo code redemption once per booking; the unique
// index turns a duplicate delivery into a constraint violation the settlement
// flow tolerates.
type PromotionUsage struct {
	ID          string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	PromoCodeID string    `gorm:"column:promo_code_id;type:uuid;not null;uniqueIndex:unique_promo_booking,priority:1" json:"promo_code_id"`
	BookingID   string    `gorm:"column:booking_id;type:uuid;not null;uniqueIndex:unique_promo_booking,priority:2" json:"booking_id"`
	UserID      string    `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PromotionUsage) TableName() string {
	return "promotion_usages"
}
