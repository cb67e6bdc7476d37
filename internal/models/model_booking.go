package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
)

// Booking is owned by the booking subsystem; this service only flips its
// payment fields during settlement.
type Booking struct {
	ID         string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	CustomerID string              `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	ProviderID string              `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	Status     types.BookingStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`

	PaymentStatus    types.PaymentStatus `gorm:"column:payment_status;type:varchar(16);not null;index" json:"payment_status"`
	PaymentReference string              `gorm:"column:payment_reference;type:varchar(128);index" json:"payment_reference"`

	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2);not null" json:"total_amount"`
	TipAmount   decimal.Decimal `gorm:"column:tip_amount;type:numeric(14,2);not null" json:"tip_amount"`
	TaxAmount   decimal.Decimal `gorm:"column:tax_amount;type:numeric(14,2);not null" json:"tax_amount"`
	TravelFee   decimal.Decimal `gorm:"column:travel_fee;type:numeric(14,2);not null" json:"travel_fee"`
	ServiceFee  decimal.Decimal `gorm:"column:service_fee;type:numeric(14,2);not null" json:"service_fee"`

	// WalletAmount is the portion tentatively covered from the customer's
	// wallet before the card charge confirms; refunded on charge failure.
	WalletAmount decimal.Decimal `gorm:"column:wallet_amount;type:numeric(14,2);not null" json:"wallet_amount"`

	// Gift-card fields are zeroed when a reserved redemption is voided.
	GiftCardID     *string         `gorm:"column:gift_card_id;type:uuid" json:"gift_card_id"`
	GiftCardAmount decimal.Decimal `gorm:"column:gift_card_amount;type:numeric(14,2);not null" json:"gift_card_amount"`

	PromoCodeID *string `gorm:"column:promo_code_id;type:uuid" json:"promo_code_id"`
	// SaveCard records the payer's opt-in to persist a reusable authorization.
	SaveCard bool `gorm:"column:save_card;not null" json:"save_card"`

	PaidAt    *time.Time `gorm:"column:paid_at;default:null" json:"paid_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// AdditionalCharge is an ad-hoc extra charge (damages, extras) against an
// already-paid booking.
type AdditionalCharge struct {
	ID        string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BookingID string              `gorm:"column:booking_id;type:uuid;not null;index" json:"booking_id"`
	Amount    decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Reason    string              `gorm:"column:reason;type:text" json:"reason"`
	Status    types.PaymentStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Reference string              `gorm:"column:reference;type:varchar(128)" json:"reference"`
	PaidAt    *time.Time          `gorm:"column:paid_at;default:null" json:"paid_at"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (AdditionalCharge) TableName() string {
	return "additional_charges"
}

// BookingService is a line item created when a custom offer converts into a
// booking against a synthesized offering row.
type BookingService struct {
	ID         string          `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BookingID  string          `gorm:"column:booking_id;type:uuid;not null;index" json:"booking_id"`
	OfferingID string          `gorm:"column:offering_id;type:uuid;not null" json:"offering_id"`
	Title      string          `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null" json:"price"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (BookingService) TableName() string {
	return "booking_services"
}

// BookingTimelineEvent is a customer-visible activity entry on a booking.
type BookingTimelineEvent struct {
	ID        string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BookingID string    `gorm:"column:booking_id;type:uuid;not null;index" json:"booking_id"`
	Kind      string    `gorm:"column:kind;type:varchar(48);not null" json:"kind"`
	Message   string    `gorm:"column:message;type:text" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (BookingTimelineEvent) TableName() string {
	return "booking_timeline_events"
}
