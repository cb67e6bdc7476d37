package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		event string
		want  EventKind
	}{
		{"charge.success", EventChargeSucceeded},
		{"charge.failed", EventChargeFailed},
		{"transfer.success", EventTransferSucceeded},
		{"transfer.failed", EventTransferFailed},
		{"transfer.reversed", EventTransferReversed},
		{"subscription.create", EventSubscriptionCreated},
		{"subscription.disable", EventSubscriptionDisabled},
		{"subscription.enable", EventSubscriptionEnabled},
		{"subscription.not_renew", EventSubscriptionNotRenewing},
		{"invoice.create", EventInvoiceCreated},
		{"invoice.update", EventInvoiceUpdated},
		{"invoice.payment_failed", EventInvoicePaymentFailed},
		{"refund.processed", EventRefundProcessed},
		{"charge.dispute.create", EventUnhandled},
		{"customeridentification.success", EventUnhandled},
		{"", EventUnhandled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.event), "event %q", tt.event)
	}
}

func TestIsCharge(t *testing.T) {
	assert.True(t, EventChargeSucceeded.IsCharge())
	assert.True(t, EventChargeFailed.IsCharge())
	assert.False(t, EventTransferSucceeded.IsCharge())
	assert.False(t, EventRefundProcessed.IsCharge())
	assert.False(t, EventUnhandled.IsCharge())
}
