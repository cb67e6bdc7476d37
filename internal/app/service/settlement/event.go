package settlement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	// ErrMalformedEvent marks an event whose metadata carries no recognized
	// discriminator. Unrecoverable: logged, never retried.
	ErrMalformedEvent = errors.New("malformed event: no recognized entity id in metadata")
	// ErrUnknownEntity marks a referenced booking/order/provider that does
	// not exist. Not retryable by re-delivery.
	ErrUnknownEntity = errors.New("referenced entity not found")
)

// ChargeTargetKind enumerates the commerce flows a charge can settle.
type ChargeTargetKind int

const (
	TargetUnknown ChargeTargetKind = iota
	TargetBooking
	TargetCustomOffer
	TargetWalletTopup
	TargetGiftCardOrder
	TargetMembershipOrder
	TargetProviderSubscriptionOrder
)

func (k ChargeTargetKind) String() string {
	switch k {
	case TargetBooking:
		return "booking"
	case TargetCustomOffer:
		return "custom_offer"
	case TargetWalletTopup:
		return "wallet_topup"
	case TargetGiftCardOrder:
		return "gift_card_order"
	case TargetMembershipOrder:
		return "membership_order"
	case TargetProviderSubscriptionOrder:
		return "provider_subscription_order"
	default:
		return "unknown"
	}
}

// ChargeTarget is the disambiguated form of the payload's metadata bag:
// exactly one id field matching Kind is set, resolved at the router boundary
// so handlers never re-inspect the open map.
type ChargeTarget struct {
	Kind ChargeTargetKind

	BookingID string
	// AdditionalChargeID is set only with Kind == TargetBooking, for top-up
	// charges on an existing booking.
	AdditionalChargeID          string
	CustomOfferID               string
	WalletTopupID               string
	GiftCardOrderID             string
	MembershipOrderID           string
	ProviderSubscriptionOrderID string
}

// CardAuthorization is the gateway's reusable-card token attached to a charge.
type CardAuthorization struct {
	AuthorizationCode string
	CardType          string
	Last4             string
	ExpMonth          string
	ExpYear           string
	Bank              string
	Signature         string
	Reusable          bool
}

// ChargeEvent is a charge.success / charge.failed payload normalized to
// decimal major units with its target already resolved.
type ChargeEvent struct {
	Reference string
	Amount    decimal.Decimal
	Fees      decimal.Decimal
	Currency  string

	CustomerEmail string
	CustomerCode  string
	CustomerName  string
	CustomerPhone string

	Authorization *CardAuthorization
	PlanCode      string
	Target        ChargeTarget

	Raw datatypes.JSON
}

// TransferEvent covers transfer.success/failed/reversed. Different subtypes
// populate different id fields; payout lookup tries both.
type TransferEvent struct {
	TransferCode          string
	ProviderTransactionID string
	Amount                decimal.Decimal
	Reason                string
	Failed                bool
	Reversed              bool
}

// RefundEvent is keyed by the original transaction reference.
type RefundEvent struct {
	Reference string
	Amount    decimal.Decimal
	Status    string
}

// SubscriptionEvent covers subscription.create/disable/enable/not_renew.
type SubscriptionEvent struct {
	SubscriptionCode string
	CustomerEmail    string
	CustomerCode     string
	PlanCode         string
	NextPaymentDate  *time.Time
}

// InvoiceEvent covers invoice.create/update/payment_failed.
type InvoiceEvent struct {
	SubscriptionCode string
	CustomerEmail    string
	CustomerCode     string
	PlanCode         string
	Amount           decimal.Decimal
	Paid             bool
	PeriodEnd        *time.Time
}
