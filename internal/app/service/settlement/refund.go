package settlement

import (
	"context"
	"fmt"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"gorm.io/gorm"
)

// SettleRefund applies a processed refund. Refunds are keyed by the original
// transaction reference: the matching successful PaymentTransaction decides
// what was refunded, so non-booking payments (top-ups, orders) get their
// refunded audit row too. A reference that matches nothing is unrecoverable
// and gets logged; the gateway sometimes refunds transactions this service
// never settled.
func (s *Service) SettleRefund(ctx context.Context, ev *RefundEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	if ev.Reference == "" {
		return fmt.Errorf("%w: refund without reference", ErrMalformedEvent)
	}

	// A refunded row for this reference means an earlier delivery finished.
	var prior int64
	err := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("reference = ? AND status = ?", ev.Reference, types.PaymentTransactionStatusRefunded).
		Count(&prior).Error
	if err != nil {
		return fmt.Errorf("failed to check prior refunds for %s: %w", ev.Reference, err)
	}
	if prior > 0 {
		log.Infow("refund_already_settled", "reference", ev.Reference)
		return nil
	}

	original, booking, err := s.findRefundTarget(ctx, ev.Reference)
	if err != nil {
		return err
	}
	if booking != nil && booking.PaymentStatus == types.PaymentStatusRefunded {
		log.Infow("refund_already_settled", "booking_id", booking.ID, "reference", ev.Reference)
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &models.PaymentTransaction{
			ID:              tool.GenerateUUIDV7(),
			Reference:       ev.Reference,
			Amount:          ev.Amount,
			NetAmount:       ev.Amount,
			Status:          types.PaymentTransactionStatusRefunded,
			Provider:        types.PaymentProviderPaystack,
			TransactionType: "refund",
		}
		ledgerRow := &models.FinanceTransaction{
			TransactionType: types.FinanceTxRefund,
			Amount:          ev.Amount,
			Net:             ev.Amount.Neg(),
			Description:     "refund for " + ev.Reference,
		}
		if original != nil {
			row.BookingID = original.BookingID
			ledgerRow.BookingID = original.BookingID
		}
		if booking != nil {
			row.BookingID = &booking.ID
			ledgerRow.BookingID = &booking.ID
			ledgerRow.ProviderID = &booking.ProviderID
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to record refund transaction: %w", err)
		}
		if err := s.ledger.Append(ctx, tx, ledgerRow); err != nil {
			return err
		}

		if booking == nil {
			return nil
		}
		if err := tx.Model(&models.Booking{}).Where("id = ?", booking.ID).
			Update("payment_status", types.PaymentStatusRefunded).Error; err != nil {
			return fmt.Errorf("failed to mark booking refunded: %w", err)
		}
		return addTimelineEvent(ctx, tx, booking.ID, "refund_processed", "Refund processed")
	})
	if err != nil {
		return err
	}

	if booking != nil {
		s.bestEffort(ctx, "notify_refund", func() error {
			return s.notifier.Send(ctx, notification("Refund processed", "Your refund has been processed.", booking.CustomerID, booking.ID))
		})
	}
	log.Infow("refund_settled", "reference", ev.Reference, "amount", ev.Amount.String())
	return nil
}

// findRefundTarget resolves a refund reference to the original successful
// PaymentTransaction and, when that transaction paid a booking, the booking
// itself. Payments that predate the transaction table fall back to the
// booking's stored reference.
func (s *Service) findRefundTarget(ctx context.Context, reference string) (*models.PaymentTransaction, *models.Booking, error) {
	var original models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("reference = ? AND status = ?", reference, types.PaymentTransactionStatusSuccess).
		Order("created_at asc").
		First(&original).Error
	if err == nil {
		if original.BookingID == nil {
			return &original, nil, nil
		}
		var booking models.Booking
		if err := s.db.WithContext(ctx).Where("id = ?", *original.BookingID).First(&booking).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to load booking %s for refund: %w", *original.BookingID, err)
		}
		return &original, &booking, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, nil, fmt.Errorf("failed to find transaction for refund %s: %w", reference, err)
	}

	var booking models.Booking
	err = s.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&booking).Error
	if err == nil {
		return nil, &booking, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, nil, fmt.Errorf("failed to find booking for refund %s: %w", reference, err)
	}
	return nil, nil, fmt.Errorf("%w: no transaction for refund reference %s", ErrUnknownEntity, reference)
}
