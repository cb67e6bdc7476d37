package settlement

import (
	"context"
	"testing"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleCustomOfferConvertsToBooking(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	request := &models.ServiceRequest{
		ID:         tool.GenerateUUIDV7(),
		CustomerID: tool.GenerateUUIDV7(),
		Status:     models.ServiceRequestStatusOpen,
	}
	require.NoError(t, db.Create(request).Error)

	offer := &models.CustomOffer{
		ID:             tool.GenerateUUIDV7(),
		RequestID:      request.ID,
		ConversationID: tool.GenerateUUIDV7(),
		CustomerID:     request.CustomerID,
		ProviderID:     tool.GenerateUUIDV7(),
		Title:          "deep clean",
		Amount:         dec("200"),
		Status:         models.CustomOfferStatusAccepted,
	}
	require.NoError(t, db.Create(offer).Error)

	ev := &ChargeEvent{
		Reference: "ref_offer",
		Amount:    dec("200"),
		Target:    ChargeTarget{Kind: TargetCustomOffer, CustomOfferID: offer.ID},
	}
	require.NoError(t, svc.SettleCharge(ctx, ev))

	var gotOffer models.CustomOffer
	require.NoError(t, db.First(&gotOffer, "id = ?", offer.ID).Error)
	assert.Equal(t, models.CustomOfferStatusPaid, gotOffer.Status)
	require.NotNil(t, gotOffer.BookingID)

	var booking models.Booking
	require.NoError(t, db.First(&booking, "id = ?", *gotOffer.BookingID).Error)
	assert.Equal(t, types.PaymentStatusPaid, booking.PaymentStatus)
	assert.Equal(t, types.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, offer.CustomerID, booking.CustomerID)
	assert.True(t, booking.TotalAmount.Equal(dec("200")))

	var offering models.Offering
	require.NoError(t, db.Where("provider_id = ?", offer.ProviderID).First(&offering).Error)
	assert.True(t, offering.Hidden)
	assert.False(t, offering.Active)

	var item models.BookingService
	require.NoError(t, db.Where("booking_id = ?", booking.ID).First(&item).Error)
	assert.Equal(t, "deep clean", item.Title)

	var gotRequest models.ServiceRequest
	require.NoError(t, db.First(&gotRequest, "id = ?", request.ID).Error)
	assert.Equal(t, models.ServiceRequestStatusFulfilled, gotRequest.Status)

	var msg models.ConversationMessage
	require.NoError(t, db.Where("conversation_id = ?", offer.ConversationID).First(&msg).Error)
	assert.True(t, msg.System)

	// Redelivery creates no second booking.
	require.NoError(t, svc.SettleCharge(ctx, ev))
	var n int64
	require.NoError(t, db.Model(&models.Booking{}).Where("customer_id = ?", offer.CustomerID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestFailCustomOfferKeepsOfferOpen(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	offer := &models.CustomOffer{
		ID:         tool.GenerateUUIDV7(),
		RequestID:  tool.GenerateUUIDV7(),
		CustomerID: tool.GenerateUUIDV7(),
		ProviderID: tool.GenerateUUIDV7(),
		Title:      "repair",
		Amount:     dec("50"),
		Status:     models.CustomOfferStatusAccepted,
	}
	require.NoError(t, db.Create(offer).Error)

	require.NoError(t, svc.FailCharge(ctx, &ChargeEvent{
		Reference: "ref_offer_fail",
		Amount:    dec("50"),
		Target:    ChargeTarget{Kind: TargetCustomOffer, CustomOfferID: offer.ID},
	}))

	var got models.CustomOffer
	require.NoError(t, db.First(&got, "id = ?", offer.ID).Error)
	assert.Equal(t, models.CustomOfferStatusAccepted, got.Status, "offer stays retryable")
}
