package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/bookora/payments/internal/app/service/ledger"
	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"gorm.io/gorm"
)

// settleCustomOffer converts a paid custom offer into a booking. The offer's
// first successful charge synthesizes a hidden offering, a confirmed paid
// booking, and a line item; redeliveries see status == paid and stop.
func (s *Service) settleCustomOffer(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var offer models.CustomOffer
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.CustomOfferID).First(&offer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: custom offer %s", ErrUnknownEntity, ev.Target.CustomOfferID)
		}
		return fmt.Errorf("failed to load custom offer %s: %w", ev.Target.CustomOfferID, err)
	}
	if offer.Status == models.CustomOfferStatusPaid && offer.BookingID != nil {
		log.Infow("custom_offer_already_settled", "custom_offer_id", offer.ID, "booking_id", *offer.BookingID)
		return nil
	}

	rate := s.ledger.ActiveCommissionRate(ctx)
	now := time.Now()
	bookingID := tool.GenerateUUIDV7()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		offering := &models.Offering{
			ID:         tool.GenerateUUIDV7(),
			ProviderID: offer.ProviderID,
			Title:      offer.Title,
			Price:      offer.Amount,
			Hidden:     true,
			Active:     false,
		}
		if err := tx.Create(offering).Error; err != nil {
			return fmt.Errorf("failed to create offering for custom offer: %w", err)
		}

		booking := &models.Booking{
			ID:               bookingID,
			CustomerID:       offer.CustomerID,
			ProviderID:       offer.ProviderID,
			Status:           types.BookingStatusConfirmed,
			PaymentStatus:    types.PaymentStatusPaid,
			PaymentReference: ev.Reference,
			TotalAmount:      offer.Amount,
			PaidAt:           &now,
		}
		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking for custom offer: %w", err)
		}

		item := &models.BookingService{
			ID:         tool.GenerateUUIDV7(),
			BookingID:  bookingID,
			OfferingID: offering.ID,
			Title:      offer.Title,
			Price:      offer.Amount,
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create booking service: %w", err)
		}

		if err := tx.Model(&models.CustomOffer{}).Where("id = ?", offer.ID).
			Updates(map[string]any{
				"status":     models.CustomOfferStatusPaid,
				"booking_id": bookingID,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark custom offer paid: %w", err)
		}

		if err := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status = ?", offer.RequestID, models.ServiceRequestStatusOpen).
			Update("status", models.ServiceRequestStatusFulfilled).Error; err != nil {
			return fmt.Errorf("failed to fulfill service request: %w", err)
		}

		if err := recordPayment(ctx, tx, ev, &bookingID, "custom_offer_payment", types.PaymentTransactionStatusSuccess); err != nil {
			return err
		}

		split := ledger.ComputeSplit(booking, rate)
		rows := []*models.FinanceTransaction{
			{
				BookingID:       &bookingID,
				ProviderID:      &offer.ProviderID,
				TransactionType: types.FinanceTxCustomOfferPayment,
				Amount:          offer.Amount,
				Fees:            ev.Fees,
				Commission:      split.PlatformCommission,
				Net:             offer.Amount.Sub(split.PlatformCommission),
				Description:     "custom offer payment: " + offer.Title,
			},
			{
				BookingID:       &bookingID,
				ProviderID:      &offer.ProviderID,
				TransactionType: types.FinanceTxProviderEarnings,
				Amount:          split.ProviderEarnings,
				Net:             split.ProviderEarnings,
				Description:     "provider earnings",
			},
		}
		for _, row := range rows {
			if err := s.ledger.Append(ctx, tx, row); err != nil {
				return err
			}
		}

		return addTimelineEvent(ctx, tx, bookingID, "created_from_offer", "Booking created from custom offer")
	})
	if err != nil {
		return err
	}

	if offer.ConversationID != "" {
		s.bestEffort(ctx, "offer_conversation_message", func() error {
			msg := &models.ConversationMessage{
				ID:             tool.GenerateUUIDV7(),
				ConversationID: offer.ConversationID,
				Body:           "Offer accepted and paid. A booking has been created.",
				System:         true,
			}
			return s.db.WithContext(ctx).Create(msg).Error
		})
	}
	s.bestEffort(ctx, "notify_customer_offer_paid", func() error {
		return s.notifier.Send(ctx, notification("Offer paid", "Your payment was received and a booking was created.", offer.CustomerID, bookingID))
	})
	s.bestEffort(ctx, "notify_provider_offer_paid", func() error {
		return s.notifier.Send(ctx, notification("Offer accepted", "Your custom offer was paid. Check your new booking.", offer.ProviderID, bookingID))
	})

	log.Infow("custom_offer_settled", "custom_offer_id", offer.ID, "booking_id", bookingID, "reference", ev.Reference)
	return nil
}

func (s *Service) failCustomOffer(ctx context.Context, ev *ChargeEvent) error {
	logctx.FromCtx(ctx, s.log).Infow("custom_offer_charge_failed",
		"custom_offer_id", ev.Target.CustomOfferID, "reference", ev.Reference)
	// The offer stays accepted; the customer can retry payment.
	return nil
}
