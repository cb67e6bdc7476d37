package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookora/payments/internal/app/service/settlement"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ErrMalformedPayload marks a body that is not the gateway envelope at all:
// unparsable JSON or missing event/data. Rejected with 400, nothing persisted.
var ErrMalformedPayload = errors.New("malformed webhook payload")

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	ID    any             `json:"id"`
}

func parseEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Event == "" || len(env.Data) == 0 {
		return nil, ErrMalformedPayload
	}
	return &env, nil
}

// extractEventID finds a usable idempotency key. Different event families
// populate different fields; an event with none of them skips idempotency
// tracking entirely (a known gap, surfaced by a warning in the handler).
func (e *envelope) extractEventID() string {
	var ids struct {
		ID           any    `json:"id"`
		Reference    string `json:"reference"`
		TransferCode string `json:"transfer_code"`
	}
	if err := json.Unmarshal(e.Data, &ids); err == nil {
		if s := anyToString(ids.ID); s != "" {
			return s
		}
		if ids.Reference != "" {
			return ids.Reference
		}
		if ids.TransferCode != "" {
			return ids.TransferCode
		}
	}
	return anyToString(e.ID)
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// minorToDecimal converts the gateway's smallest-currency-unit integers to
// decimal major units.
func minorToDecimal(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Div(decimal.NewFromInt(100))
}

type customerData struct {
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
}

type authorizationData struct {
	AuthorizationCode string `json:"authorization_code"`
	CardType          string `json:"card_type"`
	Last4             string `json:"last4"`
	ExpMonth          string `json:"exp_month"`
	ExpYear           string `json:"exp_year"`
	Bank              string `json:"bank"`
	Signature         string `json:"signature"`
	Reusable          bool   `json:"reusable"`
}

type chargeData struct {
	Reference     string             `json:"reference"`
	Amount        int64              `json:"amount"`
	Fees          *int64             `json:"fees"`
	Currency      string             `json:"currency"`
	Customer      customerData       `json:"customer"`
	Authorization *authorizationData `json:"authorization"`
	Plan          struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
	Metadata json.RawMessage `json:"metadata"`
}

// parseCharge normalizes a charge payload and resolves its metadata bag into
// a ChargeTarget. The tolerant metadata handling matters: the gateway sends
// an object, an empty string, or nothing at all depending on charge origin.
func parseCharge(data json.RawMessage) (*settlement.ChargeEvent, error) {
	var d chargeData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if d.Reference == "" {
		return nil, fmt.Errorf("%w: charge without reference", ErrMalformedPayload)
	}

	md := parseMetadata(d.Metadata)
	target, err := resolveChargeTarget(md)
	if err != nil {
		return nil, err
	}

	ev := &settlement.ChargeEvent{
		Reference:     d.Reference,
		Amount:        minorToDecimal(d.Amount),
		Currency:      d.Currency,
		CustomerEmail: d.Customer.Email,
		CustomerCode:  d.Customer.CustomerCode,
		CustomerName:  strings.TrimSpace(d.Customer.FirstName + " " + d.Customer.LastName),
		CustomerPhone: d.Customer.Phone,
		PlanCode:      d.Plan.PlanCode,
		Target:        target,
		Raw:           datatypes.JSON(data),
	}
	if d.Fees != nil {
		ev.Fees = minorToDecimal(*d.Fees)
	}
	if d.Authorization != nil {
		ev.Authorization = &settlement.CardAuthorization{
			AuthorizationCode: d.Authorization.AuthorizationCode,
			CardType:          d.Authorization.CardType,
			Last4:             d.Authorization.Last4,
			ExpMonth:          d.Authorization.ExpMonth,
			ExpYear:           d.Authorization.ExpYear,
			Bank:              d.Authorization.Bank,
			Signature:         d.Authorization.Signature,
			Reusable:          d.Authorization.Reusable,
		}
	}
	return ev, nil
}

func parseMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var md map[string]any
	if err := json.Unmarshal(raw, &md); err == nil {
		return md
	}
	// Metadata may arrive as a JSON-encoded string of an object.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &md); err == nil {
			return md
		}
	}
	return nil
}

func metaString(md map[string]any, key string) string {
	if md == nil {
		return ""
	}
	return anyToString(md[key])
}

// resolveChargeTarget turns the open metadata map into the closed
// ChargeTarget union. Fixed precedence, first match wins; no recognized id
// is an unrecoverable malformed event.
func resolveChargeTarget(md map[string]any) (settlement.ChargeTarget, error) {
	if id := metaString(md, "booking_id"); id != "" {
		return settlement.ChargeTarget{
			Kind:               settlement.TargetBooking,
			BookingID:          id,
			AdditionalChargeID: metaString(md, "additional_charge_id"),
		}, nil
	}
	if id := metaString(md, "custom_offer_id"); id != "" {
		return settlement.ChargeTarget{Kind: settlement.TargetCustomOffer, CustomOfferID: id}, nil
	}
	if id := metaString(md, "wallet_topup_id"); id != "" {
		return settlement.ChargeTarget{Kind: settlement.TargetWalletTopup, WalletTopupID: id}, nil
	}
	if id := metaString(md, "gift_card_order_id"); id != "" {
		return settlement.ChargeTarget{Kind: settlement.TargetGiftCardOrder, GiftCardOrderID: id}, nil
	}
	if id := metaString(md, "membership_order_id"); id != "" {
		return settlement.ChargeTarget{Kind: settlement.TargetMembershipOrder, MembershipOrderID: id}, nil
	}
	if id := metaString(md, "provider_subscription_order_id"); id != "" {
		return settlement.ChargeTarget{Kind: settlement.TargetProviderSubscriptionOrder, ProviderSubscriptionOrderID: id}, nil
	}
	return settlement.ChargeTarget{}, settlement.ErrMalformedEvent
}

type transferData struct {
	TransferCode string `json:"transfer_code"`
	ID           any    `json:"id"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
}

func parseTransfer(data json.RawMessage, kind EventKind) (*settlement.TransferEvent, error) {
	var d transferData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &settlement.TransferEvent{
		TransferCode:          d.TransferCode,
		ProviderTransactionID: anyToString(d.ID),
		Amount:                minorToDecimal(d.Amount),
		Reason:                d.Reason,
		Failed:                kind == EventTransferFailed,
		Reversed:              kind == EventTransferReversed,
	}, nil
}

type refundData struct {
	TransactionReference string `json:"transaction_reference"`
	Reference            string `json:"reference"`
	Amount               int64  `json:"amount"`
	Status               string `json:"status"`
}

func parseRefund(data json.RawMessage) (*settlement.RefundEvent, error) {
	var d refundData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ref := d.TransactionReference
	if ref == "" {
		ref = d.Reference
	}
	return &settlement.RefundEvent{
		Reference: ref,
		Amount:    minorToDecimal(d.Amount),
		Status:    d.Status,
	}, nil
}

type subscriptionData struct {
	SubscriptionCode string       `json:"subscription_code"`
	NextPaymentDate  string       `json:"next_payment_date"`
	Customer         customerData `json:"customer"`
	Plan             struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
}

func parseSubscription(data json.RawMessage) (*settlement.SubscriptionEvent, error) {
	var d subscriptionData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &settlement.SubscriptionEvent{
		SubscriptionCode: d.SubscriptionCode,
		CustomerEmail:    d.Customer.Email,
		CustomerCode:     d.Customer.CustomerCode,
		PlanCode:         d.Plan.PlanCode,
		NextPaymentDate:  parseGatewayTime(d.NextPaymentDate),
	}, nil
}

type invoiceData struct {
	Subscription struct {
		SubscriptionCode string `json:"subscription_code"`
	} `json:"subscription"`
	Customer customerData `json:"customer"`
	Plan     struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
	Amount    int64  `json:"amount"`
	Paid      bool   `json:"paid"`
	Status    string `json:"status"`
	PeriodEnd string `json:"period_end"`
}

func parseInvoice(data json.RawMessage) (*settlement.InvoiceEvent, error) {
	var d invoiceData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &settlement.InvoiceEvent{
		SubscriptionCode: d.Subscription.SubscriptionCode,
		CustomerEmail:    d.Customer.Email,
		CustomerCode:     d.Customer.CustomerCode,
		PlanCode:         d.Plan.PlanCode,
		Amount:           minorToDecimal(d.Amount),
		Paid:             d.Paid || d.Status == "success",
		PeriodEnd:        parseGatewayTime(d.PeriodEnd),
	}, nil
}

func parseGatewayTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
