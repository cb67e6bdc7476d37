package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CustomOfferStatus string

const (
	CustomOfferStatusPending  CustomOfferStatus = "pending"
	CustomOfferStatusAccepted CustomOfferStatus = "accepted"
	CustomOfferStatusPaid     CustomOfferStatus = "paid"
)

// CustomOffer is a provider-quoted price for a customer request. First
// successful payment converts it into a booking; idempotent on
// (status == paid && booking_id set).
type CustomOffer struct {
	ID             string            `gorm:"column:id;primary_key;type:uuid" json:"id"`
	RequestID      string            `gorm:"column:request_id;type:uuid;not null;index" json:"request_id"`
	ConversationID string            `gorm:"column:conversation_id;type:uuid" json:"conversation_id"`
	CustomerID     string            `gorm:"column:customer_id;type:uuid;not null" json:"customer_id"`
	ProviderID     string            `gorm:"column:provider_id;type:uuid;not null" json:"provider_id"`
	Title          string            `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Amount         decimal.Decimal   `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Status         CustomOfferStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	BookingID      *string           `gorm:"column:booking_id;type:uuid" json:"booking_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (CustomOffer) TableName() string {
	return "custom_offers"
}

type ServiceRequestStatus string

const (
	ServiceRequestStatusOpen      ServiceRequestStatus = "open"
	ServiceRequestStatusFulfilled ServiceRequestStatus = "fulfilled"
)

// ServiceRequest is the customer request a custom offer answers.
type ServiceRequest struct {
	ID         string               `gorm:"column:id;primary_key;type:uuid" json:"id"`
	CustomerID string               `gorm:"column:customer_id;type:uuid;not null" json:"customer_id"`
	Status     ServiceRequestStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func (ServiceRequest) TableName() string {
	return "service_requests"
}

// Offering is a provider's service listing. Offer conversion synthesizes a
// hidden, inactive row so the booking can reference a normal offering.
type Offering struct {
	ID         string          `gorm:"column:id;primary_key;type:uuid" json:"id"`
	ProviderID string          `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	Title      string          `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null" json:"price"`
	Hidden     bool            `gorm:"column:hidden;not null" json:"hidden"`
	Active     bool            `gorm:"column:active;not null" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (Offering) TableName() string {
	return "offerings"
}

// ConversationMessage carries the best-effort system message posted into the
// customer/provider conversation after an offer converts.
type ConversationMessage struct {
	ID             string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:uuid;not null;index" json:"conversation_id"`
	SenderID       *string   `gorm:"column:sender_id;type:uuid" json:"sender_id"`
	Body           string    `gorm:"column:body;type:text;not null" json:"body"`
	System         bool      `gorm:"column:system;not null" json:"system"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}
