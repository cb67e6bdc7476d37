package webhook

// EventKind is a closed enumeration of the gateway event types this service
// understands. Anything else resolves to EventUnhandled, which is a logged
// no-op: the gateway adds event types over time and unknown ones must not
// trigger retries.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventChargeSucceeded
	EventChargeFailed
	EventTransferSucceeded
	EventTransferFailed
	EventTransferReversed
	EventSubscriptionCreated
	EventSubscriptionDisabled
	EventSubscriptionEnabled
	EventSubscriptionNotRenewing
	EventInvoiceCreated
	EventInvoiceUpdated
	EventInvoicePaymentFailed
	EventRefundProcessed
)

// kindByName is the dispatch table, built once at package init.
var kindByName = map[string]EventKind{
	"charge.success":         EventChargeSucceeded,
	"charge.failed":          EventChargeFailed,
	"transfer.success":       EventTransferSucceeded,
	"transfer.failed":        EventTransferFailed,
	"transfer.reversed":      EventTransferReversed,
	"subscription.create":    EventSubscriptionCreated,
	"subscription.disable":   EventSubscriptionDisabled,
	"subscription.enable":    EventSubscriptionEnabled,
	"subscription.not_renew": EventSubscriptionNotRenewing,
	"invoice.create":         EventInvoiceCreated,
	"invoice.update":         EventInvoiceUpdated,
	"invoice.payment_failed": EventInvoicePaymentFailed,
	"refund.processed":       EventRefundProcessed,
}

func KindOf(event string) EventKind {
	if k, ok := kindByName[event]; ok {
		return k
	}
	return EventUnhandled
}

// IsCharge reports whether failures of this kind are eligible for the
// reconciliation queue.
func (k EventKind) IsCharge() bool {
	return k == EventChargeSucceeded || k == EventChargeFailed
}
