package models

import (
	"time"

	"github.com/bookora/payments/pkg/types"
	"github.com/shopspring/decimal"
)

// Provider is the marketplace-side seller account.
type Provider struct {
	ID           string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID       string    `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Email        string    `gorm:"column:email;type:varchar(255);not null;index" json:"email"`
	BusinessName string    `gorm:"column:business_name;type:varchar(255)" json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Provider) TableName() string {
	return "providers"
}

// ProviderSubscriptionPlan carries the gateway plan codes for recurring
// billing; a missing code means the plan cannot auto-renew.
type ProviderSubscriptionPlan struct {
	ID              string          `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Name            string          `gorm:"column:name;type:varchar(128);not null" json:"name"`
	MonthlyPrice    decimal.Decimal `gorm:"column:monthly_price;type:numeric(14,2);not null" json:"monthly_price"`
	YearlyPrice     decimal.Decimal `gorm:"column:yearly_price;type:numeric(14,2);not null" json:"yearly_price"`
	MonthlyPlanCode string          `gorm:"column:monthly_plan_code;type:varchar(64)" json:"monthly_plan_code"`
	YearlyPlanCode  string          `gorm:"column:yearly_plan_code;type:varchar(64)" json:"yearly_plan_code"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (ProviderSubscriptionPlan) TableName() string {
	return "provider_subscription_plans"
}

// PlanCode returns the gateway code for a billing period, empty when the
// plan has no recurring code for that period.
func (p *ProviderSubscriptionPlan) PlanCode(period types.BillingPeriod) string {
	if period == types.BillingPeriodYearly {
		return p.YearlyPlanCode
	}
	return p.MonthlyPlanCode
}

type ProviderSubscriptionOrder struct {
	ID            string                         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	ProviderID    string                         `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	PlanID        string                         `gorm:"column:plan_id;type:uuid;not null" json:"plan_id"`
	BillingPeriod types.BillingPeriod            `gorm:"column:billing_period;type:varchar(16);not null" json:"billing_period"`
	Amount        decimal.Decimal                `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Purpose       types.SubscriptionOrderPurpose `gorm:"column:purpose;type:varchar(16);not null" json:"purpose"`
	Status        types.PaymentStatus            `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Reference     string                         `gorm:"column:reference;type:varchar(128)" json:"reference"`
	CreatedAt     time.Time                      `json:"created_at"`
	UpdatedAt     time.Time                      `json:"updated_at"`
}

func (ProviderSubscriptionOrder) TableName() string {
	return "provider_subscription_orders"
}

// ProviderSubscription is one logical subscription per provider, upsert-keyed
// on provider_id.
type ProviderSubscription struct {
	ID         string                   `gorm:"column:id;primary_key;type:uuid" json:"id"`
	ProviderID string                   `gorm:"column:provider_id;type:uuid;not null;uniqueIndex" json:"provider_id"`
	PlanID     string                   `gorm:"column:plan_id;type:uuid;not null" json:"plan_id"`
	Status     types.SubscriptionStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`

	PaystackSubscriptionCode  string `gorm:"column:paystack_subscription_code;type:varchar(64)" json:"paystack_subscription_code"`
	PaystackCustomerCode      string `gorm:"column:paystack_customer_code;type:varchar(64)" json:"paystack_customer_code"`
	PaystackAuthorizationCode string `gorm:"column:paystack_authorization_code;type:varchar(64)" json:"paystack_authorization_code"`

	BillingPeriod   types.BillingPeriod `gorm:"column:billing_period;type:varchar(16);not null" json:"billing_period"`
	AutoRenew       bool                `gorm:"column:auto_renew;not null" json:"auto_renew"`
	NextPaymentDate *time.Time          `gorm:"column:next_payment_date;default:null" json:"next_payment_date"`
	StartedAt       *time.Time          `gorm:"column:started_at;default:null" json:"started_at"`
	ExpiresAt       *time.Time          `gorm:"column:expires_at;default:null" json:"expires_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProviderSubscription) TableName() string {
	return "provider_subscriptions"
}
