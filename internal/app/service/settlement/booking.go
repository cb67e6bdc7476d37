package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookora/payments/internal/app/service/ledger"
	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errAlreadySettled aborts the settlement transaction when the guarded status
// update finds the booking paid; the caller turns it into a no-op.
var errAlreadySettled = errors.New("booking already settled")

// settleBooking applies a successful charge to a booking: commission split,
// status flip, gift-card capture, card persistence, ledger rows, and
// best-effort notifications. Already-paid bookings are a logged no-op so
// redelivered events change nothing.
func (s *Service) settleBooking(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var booking models.Booking
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.BookingID).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: booking %s", ErrUnknownEntity, ev.Target.BookingID)
		}
		return fmt.Errorf("failed to load booking %s: %w", ev.Target.BookingID, err)
	}
	if booking.PaymentStatus == types.PaymentStatusPaid {
		log.Infow("booking_already_settled", "booking_id", booking.ID, "reference", ev.Reference)
		return nil
	}

	rate := s.ledger.ActiveCommissionRate(ctx)
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"payment_status":    types.PaymentStatusPaid,
			"payment_reference": ev.Reference,
			"paid_at":           now,
		}
		if booking.Status == types.BookingStatusPending {
			updates["status"] = types.BookingStatusConfirmed
		}
		// The status guard makes the flip atomic: a concurrent delivery that
		// settled after our read above loses nothing, it just aborts us here.
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND payment_status <> ?", booking.ID, types.PaymentStatusPaid).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to mark booking paid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errAlreadySettled
		}

		if err := s.captureGiftCard(ctx, tx, &booking, now); err != nil {
			return err
		}

		if booking.SaveCard {
			if err := saveAuthorization(ctx, tx, booking.CustomerID, ev.Authorization); err != nil {
				return err
			}
		}

		if err := recordPayment(ctx, tx, ev, &booking.ID, "booking_payment", types.PaymentTransactionStatusSuccess); err != nil {
			return err
		}

		// Ledger rows use the booking's stored breakdown, not the charged
		// amount: wallet and gift card portions were collected up front and
		// the split must still conserve the booking total.
		split := ledger.ComputeSplit(&booking, rate)
		if err := s.ledger.AppendBookingSettlement(ctx, tx, &booking, split, ev.Fees); err != nil {
			return err
		}

		if booking.PromoCodeID != nil {
			usage := &models.PromotionUsage{
				ID:          tool.GenerateUUIDV7(),
				PromoCodeID: *booking.PromoCodeID,
				BookingID:   booking.ID,
				UserID:      booking.CustomerID,
			}
			// Conflict on (promo_code_id, booking_id) means a redelivery
			// already recorded the usage.
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "promo_code_id"}, {Name: "booking_id"}},
				DoNothing: true,
			}).Create(usage).Error
			if err != nil {
				return fmt.Errorf("failed to record promotion usage: %w", err)
			}
		}

		return addTimelineEvent(ctx, tx, booking.ID, "payment_received", "Payment received")
	})
	if errors.Is(err, errAlreadySettled) {
		log.Infow("booking_already_settled", "booking_id", booking.ID, "reference", ev.Reference)
		return nil
	}
	if err != nil {
		return err
	}

	s.notifyBookingPaid(ctx, &booking, ev)
	log.Infow("booking_settled", "booking_id", booking.ID, "reference", ev.Reference, "amount", ev.Amount.String())
	return nil
}

// captureGiftCard finalizes a reserved redemption. An expired card voids the
// reservation instead; the booking keeps its paid status and the shortfall is
// a logged discrepancy for finance to chase.
func (s *Service) captureGiftCard(ctx context.Context, tx *gorm.DB, booking *models.Booking, now time.Time) error {
	if booking.GiftCardID == nil || !booking.GiftCardAmount.IsPositive() {
		return nil
	}
	log := logctx.FromCtx(ctx, s.log)

	var card models.GiftCard
	if err := tx.Where("id = ?", *booking.GiftCardID).First(&card).Error; err != nil {
		return fmt.Errorf("failed to load gift card %s: %w", *booking.GiftCardID, err)
	}

	if card.Expired(now) {
		log.Warnw("gift_card_expired_at_capture", "gift_card_id", card.ID, "booking_id", booking.ID)
		err := tx.Model(&models.GiftCardRedemption{}).
			Where("gift_card_id = ? AND booking_id = ? AND status = ?", card.ID, booking.ID, types.RedemptionStatusReserved).
			Update("status", types.RedemptionStatusVoided).Error
		if err != nil {
			return fmt.Errorf("failed to void gift card redemption: %w", err)
		}
		if err := tx.Model(&models.GiftCard{}).Where("id = ?", card.ID).
			Update("status", types.GiftCardStatusExpired).Error; err != nil {
			return fmt.Errorf("failed to expire gift card: %w", err)
		}
		// The booking no longer carries a gift-card portion; the shortfall
		// stays visible through the voided redemption.
		return tx.Model(&models.Booking{}).Where("id = ?", booking.ID).
			Updates(map[string]any{"gift_card_id": nil, "gift_card_amount": 0}).Error
	}

	res := tx.Model(&models.GiftCardRedemption{}).
		Where("gift_card_id = ? AND booking_id = ? AND status = ?", card.ID, booking.ID, types.RedemptionStatusReserved).
		Update("status", types.RedemptionStatusCaptured)
	if res.Error != nil {
		return fmt.Errorf("failed to capture gift card redemption: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Already captured by an earlier delivery, or never reserved.
		log.Infow("gift_card_redemption_not_reserved", "gift_card_id", card.ID, "booking_id", booking.ID)
		return nil
	}

	deduct := tx.Model(&models.GiftCard{}).
		Where("id = ? AND balance >= ?", card.ID, booking.GiftCardAmount).
		Update("balance", gorm.Expr("balance - ?", booking.GiftCardAmount))
	if deduct.Error != nil {
		return fmt.Errorf("failed to deduct gift card balance: %w", deduct.Error)
	}
	if deduct.RowsAffected == 0 {
		return fmt.Errorf("gift card %s balance below reserved amount", card.ID)
	}
	return tx.Model(&models.GiftCard{}).
		Where("id = ? AND balance = 0", card.ID).
		Update("status", types.GiftCardStatusRedeemed).Error
}

func (s *Service) notifyBookingPaid(ctx context.Context, booking *models.Booking, ev *ChargeEvent) {
	s.bestEffort(ctx, "notify_customer_payment", func() error {
		return s.notifier.Send(ctx, notification("Payment confirmed", "Your booking payment was received.", booking.CustomerID, booking.ID))
	})
	s.bestEffort(ctx, "notify_provider_payment", func() error {
		return s.notifier.Send(ctx, notification("Booking paid", "A booking has been paid and confirmed.", booking.ProviderID, booking.ID))
	})
	s.bestEffort(ctx, "track_booking_paid", func() error {
		return s.tracker.Track(ctx, "booking_paid", booking.CustomerID, map[string]any{
			"booking_id": booking.ID,
			"amount":     ev.Amount.String(),
			"reference":  ev.Reference,
		})
	})
}

// failBooking applies a failed charge: payment status flips to failed and any
// tentatively held wallet or gift-card portions are released. A booking that
// already settled ignores a late failure event.
func (s *Service) failBooking(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var booking models.Booking
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.BookingID).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: booking %s", ErrUnknownEntity, ev.Target.BookingID)
		}
		return fmt.Errorf("failed to load booking %s: %w", ev.Target.BookingID, err)
	}
	if booking.PaymentStatus == types.PaymentStatusPaid {
		log.Infow("booking_failure_after_settlement_ignored", "booking_id", booking.ID, "reference", ev.Reference)
		return nil
	}
	if booking.PaymentStatus == types.PaymentStatusFailed {
		log.Infow("booking_already_failed", "booking_id", booking.ID)
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Booking{}).Where("id = ?", booking.ID).
			Updates(map[string]any{
				"payment_status":    types.PaymentStatusFailed,
				"payment_reference": ev.Reference,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark booking failed: %w", err)
		}

		if booking.WalletAmount.IsPositive() {
			if err := s.wallet.Credit(ctx, tx, booking.CustomerID, booking.WalletAmount); err != nil {
				return err
			}
			if err := tx.Model(&models.Booking{}).Where("id = ?", booking.ID).
				Update("wallet_amount", 0).Error; err != nil {
				return fmt.Errorf("failed to clear booking wallet amount: %w", err)
			}
		}

		if booking.GiftCardID != nil {
			err := tx.Model(&models.GiftCardRedemption{}).
				Where("gift_card_id = ? AND booking_id = ? AND status = ?", *booking.GiftCardID, booking.ID, types.RedemptionStatusReserved).
				Update("status", types.RedemptionStatusVoided).Error
			if err != nil {
				return fmt.Errorf("failed to void gift card redemption: %w", err)
			}
			if err := tx.Model(&models.Booking{}).Where("id = ?", booking.ID).
				Updates(map[string]any{"gift_card_id": nil, "gift_card_amount": 0}).Error; err != nil {
				return fmt.Errorf("failed to clear booking gift card fields: %w", err)
			}
		}

		if err := recordPayment(ctx, tx, ev, &booking.ID, "booking_payment", types.PaymentTransactionStatusFailed); err != nil {
			return err
		}
		return addTimelineEvent(ctx, tx, booking.ID, "payment_failed", "Payment failed")
	})
	if err != nil {
		return err
	}

	s.bestEffort(ctx, "notify_customer_payment_failed", func() error {
		return s.notifier.Send(ctx, notification("Payment failed", "Your booking payment could not be processed.", booking.CustomerID, booking.ID))
	})
	log.Infow("booking_charge_failed", "booking_id", booking.ID, "reference", ev.Reference)
	return nil
}

// settleAdditionalCharge handles a top-up charge against an already-paid
// booking. Commission applies to the full extra amount.
func (s *Service) settleAdditionalCharge(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var charge models.AdditionalCharge
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.AdditionalChargeID).First(&charge).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: additional charge %s", ErrUnknownEntity, ev.Target.AdditionalChargeID)
		}
		return fmt.Errorf("failed to load additional charge %s: %w", ev.Target.AdditionalChargeID, err)
	}
	if charge.Status == types.PaymentStatusPaid {
		log.Infow("additional_charge_already_settled", "additional_charge_id", charge.ID)
		return nil
	}

	var booking models.Booking
	if err := s.db.WithContext(ctx).Where("id = ?", charge.BookingID).First(&booking).Error; err != nil {
		return fmt.Errorf("failed to load booking %s for additional charge: %w", charge.BookingID, err)
	}

	rate := s.ledger.ActiveCommissionRate(ctx)
	commission := commissionOn(charge.Amount, rate)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AdditionalCharge{}).Where("id = ?", charge.ID).
			Updates(map[string]any{
				"status":    types.PaymentStatusPaid,
				"reference": ev.Reference,
				"paid_at":   time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("failed to mark additional charge paid: %w", err)
		}
		// The extra amount joins the booking's running total so later reads
		// (refunds, reporting) see what was actually collected.
		if err := tx.Model(&models.Booking{}).Where("id = ?", charge.BookingID).
			Update("total_amount", gorm.Expr("total_amount + ?", charge.Amount)).Error; err != nil {
			return fmt.Errorf("failed to add charge to booking total: %w", err)
		}
		if err := recordPayment(ctx, tx, ev, &charge.BookingID, "additional_charge", types.PaymentTransactionStatusSuccess); err != nil {
			return err
		}
		row := &models.FinanceTransaction{
			BookingID:       &charge.BookingID,
			ProviderID:      &booking.ProviderID,
			TransactionType: types.FinanceTxAdditionalCharge,
			Amount:          charge.Amount,
			Fees:            ev.Fees,
			Commission:      commission,
			Net:             charge.Amount.Sub(commission),
			Description:     "additional charge: " + charge.Reason,
		}
		if err := s.ledger.Append(ctx, tx, row); err != nil {
			return err
		}
		return addTimelineEvent(ctx, tx, charge.BookingID, "additional_charge_paid", "Additional charge paid")
	})
	if err != nil {
		return err
	}

	s.bestEffort(ctx, "notify_customer_additional_charge", func() error {
		return s.notifier.Send(ctx, notification("Additional charge paid", "Your additional charge payment was received.", booking.CustomerID, booking.ID))
	})
	s.bestEffort(ctx, "notify_provider_additional_charge", func() error {
		return s.notifier.Send(ctx, notification("Additional charge paid", "An additional charge on your booking has been paid.", booking.ProviderID, booking.ID))
	})
	log.Infow("additional_charge_settled", "additional_charge_id", charge.ID, "booking_id", charge.BookingID)
	return nil
}

func (s *Service) failAdditionalCharge(ctx context.Context, ev *ChargeEvent) error {
	res := s.db.WithContext(ctx).Model(&models.AdditionalCharge{}).
		Where("id = ? AND status = ?", ev.Target.AdditionalChargeID, types.PaymentStatusPending).
		Updates(map[string]any{"status": types.PaymentStatusFailed, "reference": ev.Reference})
	if res.Error != nil {
		return fmt.Errorf("failed to mark additional charge failed: %w", res.Error)
	}
	return nil
}
