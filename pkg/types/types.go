package types

type PaymentProvider string

const (
	PaymentProviderPaystack PaymentProvider = "paystack"
)

// PaymentStatus is the lifecycle of a booking's payment, and of the
// order-style records (wallet top-up, gift card, membership, subscription
// order) that settle through the same pipeline.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentTransactionStatus is the status column of the append-only audit row.
type PaymentTransactionStatus string

const (
	PaymentTransactionStatusSuccess  PaymentTransactionStatus = "success"
	PaymentTransactionStatusFailed   PaymentTransactionStatus = "failed"
	PaymentTransactionStatusRefunded PaymentTransactionStatus = "refunded"
)

// FinanceTransactionType classifies ledger rows.
type FinanceTransactionType string

const (
	FinanceTxPayment            FinanceTransactionType = "payment"
	FinanceTxProviderEarnings   FinanceTransactionType = "provider_earnings"
	FinanceTxServiceFee         FinanceTransactionType = "service_fee"
	FinanceTxTip                FinanceTransactionType = "tip"
	FinanceTxTax                FinanceTransactionType = "tax"
	FinanceTxTravelFee          FinanceTransactionType = "travel_fee"
	FinanceTxRefund             FinanceTransactionType = "refund"
	FinanceTxGiftCardSale       FinanceTransactionType = "gift_card_sale"
	FinanceTxMembershipSale     FinanceTransactionType = "membership_sale"
	FinanceTxWalletTopup        FinanceTransactionType = "wallet_topup"
	FinanceTxProviderSubPayment FinanceTransactionType = "provider_subscription_payment"
	FinanceTxProviderExpense    FinanceTransactionType = "provider_expense"
	FinanceTxAdditionalCharge   FinanceTransactionType = "additional_charge"
	FinanceTxCustomOfferPayment FinanceTransactionType = "custom_offer_payment"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

type PayoutStatus string

const (
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// Terminal reports whether a payout status is final. Later transfer events
// must never flip a terminal payout back.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed
}

type RedemptionStatus string

const (
	RedemptionStatusReserved RedemptionStatus = "reserved"
	RedemptionStatusCaptured RedemptionStatus = "captured"
	RedemptionStatusVoided   RedemptionStatus = "voided"
)

type GiftCardStatus string

const (
	GiftCardStatusActive   GiftCardStatus = "active"
	GiftCardStatusRedeemed GiftCardStatus = "redeemed"
	GiftCardStatusExpired  GiftCardStatus = "expired"
	GiftCardStatusVoid     GiftCardStatus = "void"
)

// SubscriptionOrderPurpose distinguishes a one-time subscription payment from
// the authorization-capture first charge of recurring onboarding.
type SubscriptionOrderPurpose string

const (
	SubscriptionOrderPurposePayment       SubscriptionOrderPurpose = "payment"
	SubscriptionOrderPurposeAuthorization SubscriptionOrderPurpose = "authorization"
)

type ReconciliationStatus string

const (
	ReconciliationStatusPending   ReconciliationStatus = "pending"
	ReconciliationStatusCompleted ReconciliationStatus = "completed"
	ReconciliationStatusAbandoned ReconciliationStatus = "abandoned"
)
