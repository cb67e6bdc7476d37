package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// giftCardValidity is how long freshly issued cards stay redeemable.
const giftCardValidity = 365 * 24 * time.Hour

// settleWalletTopup credits the customer's wallet for a paid top-up order.
func (s *Service) settleWalletTopup(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var topup models.WalletTopup
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.WalletTopupID).First(&topup).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: wallet topup %s", ErrUnknownEntity, ev.Target.WalletTopupID)
		}
		return fmt.Errorf("failed to load wallet topup %s: %w", ev.Target.WalletTopupID, err)
	}
	if topup.Status == types.PaymentStatusPaid {
		log.Infow("wallet_topup_already_settled", "wallet_topup_id", topup.ID)
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WalletTopup{}).Where("id = ?", topup.ID).
			Updates(map[string]any{
				"status":    types.PaymentStatusPaid,
				"reference": ev.Reference,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark wallet topup paid: %w", err)
		}
		if err := s.wallet.Credit(ctx, tx, topup.UserID, topup.Amount); err != nil {
			return err
		}
		if err := recordPayment(ctx, tx, ev, nil, "wallet_topup", types.PaymentTransactionStatusSuccess); err != nil {
			return err
		}
		return s.ledger.Append(ctx, tx, &models.FinanceTransaction{
			TransactionType: types.FinanceTxWalletTopup,
			Amount:          topup.Amount,
			Fees:            ev.Fees,
			Net:             topup.Amount,
			Description:     "wallet top-up",
		})
	})
	if err != nil {
		return err
	}

	s.bestEffort(ctx, "notify_wallet_topup", func() error {
		return s.notifier.Send(ctx, notification("Wallet topped up", "Your wallet top-up was successful.", topup.UserID, ""))
	})
	log.Infow("wallet_topup_settled", "wallet_topup_id", topup.ID, "amount", topup.Amount.String())
	return nil
}

func (s *Service) failWalletTopup(ctx context.Context, ev *ChargeEvent) error {
	res := s.db.WithContext(ctx).Model(&models.WalletTopup{}).
		Where("id = ? AND status = ?", ev.Target.WalletTopupID, types.PaymentStatusPending).
		Updates(map[string]any{"status": types.PaymentStatusFailed, "reference": ev.Reference})
	if res.Error != nil {
		return fmt.Errorf("failed to mark wallet topup failed: %w", res.Error)
	}
	return nil
}

// settleGiftCardOrder issues the ordered cards. Codes are random and globally
// unique; an insert that hits the unique index regenerates and retries.
func (s *Service) settleGiftCardOrder(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var order models.GiftCardOrder
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.GiftCardOrderID).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: gift card order %s", ErrUnknownEntity, ev.Target.GiftCardOrderID)
		}
		return fmt.Errorf("failed to load gift card order %s: %w", ev.Target.GiftCardOrderID, err)
	}
	if order.Status == types.PaymentStatusPaid {
		log.Infow("gift_card_order_already_settled", "gift_card_order_id", order.ID)
		return nil
	}

	total := order.UnitValue.Mul(decimalFromInt(order.Quantity))
	expires := time.Now().Add(giftCardValidity)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.GiftCardOrder{}).Where("id = ?", order.ID).
			Updates(map[string]any{
				"status":    types.PaymentStatusPaid,
				"reference": ev.Reference,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark gift card order paid: %w", err)
		}

		for i := 0; i < order.Quantity; i++ {
			if err := s.issueGiftCard(ctx, tx, &order, expires); err != nil {
				return err
			}
		}

		if err := recordPayment(ctx, tx, ev, nil, "gift_card_sale", types.PaymentTransactionStatusSuccess); err != nil {
			return err
		}
		return s.ledger.Append(ctx, tx, &models.FinanceTransaction{
			TransactionType: types.FinanceTxGiftCardSale,
			Amount:          total,
			Fees:            ev.Fees,
			Net:             total,
			Description:     fmt.Sprintf("gift card sale (%d cards)", order.Quantity),
		})
	})
	if err != nil {
		return err
	}

	s.bestEffort(ctx, "notify_gift_card_order", func() error {
		return s.notifier.Send(ctx, notification("Gift cards ready", "Your gift card purchase is complete.", order.PurchaserID, ""))
	})
	log.Infow("gift_card_order_settled", "gift_card_order_id", order.ID, "quantity", order.Quantity)
	return nil
}

func (s *Service) issueGiftCard(ctx context.Context, tx *gorm.DB, order *models.GiftCardOrder, expires time.Time) error {
	for attempt := 0; attempt < 5; attempt++ {
		card := &models.GiftCard{
			ID:           tool.GenerateUUIDV7(),
			Code:         tool.GenerateGiftCardCode(),
			OrderID:      &order.ID,
			InitialValue: order.UnitValue,
			Balance:      order.UnitValue,
			Status:       types.GiftCardStatusActive,
			ExpiresAt:    &expires,
		}
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(card)
		if res.Error != nil {
			return fmt.Errorf("failed to issue gift card: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		// Code collision; regenerate.
	}
	return fmt.Errorf("could not generate a unique gift card code for order %s", order.ID)
}

func (s *Service) failGiftCardOrder(ctx context.Context, ev *ChargeEvent) error {
	res := s.db.WithContext(ctx).Model(&models.GiftCardOrder{}).
		Where("id = ? AND status = ?", ev.Target.GiftCardOrderID, types.PaymentStatusPending).
		Updates(map[string]any{"status": types.PaymentStatusFailed, "reference": ev.Reference})
	if res.Error != nil {
		return fmt.Errorf("failed to mark gift card order failed: %w", res.Error)
	}
	return nil
}

// settleMembershipOrder activates (or extends) the buyer's membership with
// the provider. One logical membership per (user, provider); the upsert keeps
// duplicate deliveries from creating a second row.
func (s *Service) settleMembershipOrder(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var order models.MembershipOrder
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.MembershipOrderID).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: membership order %s", ErrUnknownEntity, ev.Target.MembershipOrderID)
		}
		return fmt.Errorf("failed to load membership order %s: %w", ev.Target.MembershipOrderID, err)
	}
	if order.Status == types.PaymentStatusPaid {
		log.Infow("membership_order_already_settled", "membership_order_id", order.ID)
		return nil
	}

	now := time.Now()
	expires := now.AddDate(0, 0, order.DurationDays)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MembershipOrder{}).Where("id = ?", order.ID).
			Updates(map[string]any{
				"status":    types.PaymentStatusPaid,
				"reference": ev.Reference,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark membership order paid: %w", err)
		}

		membership := &models.Membership{
			ID:         tool.GenerateUUIDV7(),
			UserID:     order.UserID,
			ProviderID: order.ProviderID,
			PlanName:   order.PlanName,
			Active:     true,
			StartedAt:  now,
			ExpiresAt:  &expires,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "provider_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"plan_name":  order.PlanName,
				"active":     true,
				"expires_at": expires,
			}),
		}).Create(membership).Error
		if err != nil {
			return fmt.Errorf("failed to activate membership: %w", err)
		}

		if err := recordPayment(ctx, tx, ev, nil, "membership_sale", types.PaymentTransactionStatusSuccess); err != nil {
			return err
		}
		return s.ledger.Append(ctx, tx, &models.FinanceTransaction{
			ProviderID:      &order.ProviderID,
			TransactionType: types.FinanceTxMembershipSale,
			Amount:          order.Amount,
			Fees:            ev.Fees,
			Net:             order.Amount,
			Description:     "membership sale: " + order.PlanName,
		})
	})
	if err != nil {
		return err
	}

	s.bestEffort(ctx, "notify_membership", func() error {
		return s.notifier.Send(ctx, notification("Membership active", "Your membership is now active.", order.UserID, ""))
	})
	log.Infow("membership_order_settled", "membership_order_id", order.ID, "plan", order.PlanName)
	return nil
}

func (s *Service) failMembershipOrder(ctx context.Context, ev *ChargeEvent) error {
	res := s.db.WithContext(ctx).Model(&models.MembershipOrder{}).
		Where("id = ? AND status = ?", ev.Target.MembershipOrderID, types.PaymentStatusPending).
		Updates(map[string]any{"status": types.PaymentStatusFailed, "reference": ev.Reference})
	if res.Error != nil {
		return fmt.Errorf("failed to mark membership order failed: %w", res.Error)
	}
	return nil
}
