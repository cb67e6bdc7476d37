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

// Subscription lifecycle events arrive in arbitrary order relative to each
// other and to the charge that opened the subscription. Every handler below
// therefore works off the subscription's current state, never off an assumed
// previous event.

// SubscriptionCreated links the gateway-side subscription to the local
// provider subscription, resolving the provider through the customer email.
func (s *Service) SubscriptionCreated(ctx context.Context, ev *SubscriptionEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	sub, err := s.findSubscription(ctx, ev.SubscriptionCode, ev.CustomerEmail)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"paystack_subscription_code": ev.SubscriptionCode,
		"auto_renew":                 true,
	}
	if ev.CustomerCode != "" {
		updates["paystack_customer_code"] = ev.CustomerCode
	}
	if ev.NextPaymentDate != nil {
		updates["next_payment_date"] = *ev.NextPaymentDate
	}
	// A cancelled subscription is not resurrected by a late create event.
	if sub.Status != types.SubscriptionStatusCancelled {
		updates["status"] = types.SubscriptionStatusActive
	}

	if err := s.db.WithContext(ctx).Model(&models.ProviderSubscription{}).
		Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to link subscription %s: %w", ev.SubscriptionCode, err)
	}
	log.Infow("subscription_linked", "provider_id", sub.ProviderID, "subscription_code", ev.SubscriptionCode)
	return nil
}

// SubscriptionDisabled cancels the subscription. The provider keeps access
// until the already-paid period expires.
func (s *Service) SubscriptionDisabled(ctx context.Context, ev *SubscriptionEvent) error {
	sub, err := s.findSubscription(ctx, ev.SubscriptionCode, ev.CustomerEmail)
	if err != nil {
		return err
	}
	if sub.Status == types.SubscriptionStatusCancelled {
		return nil
	}
	err = s.db.WithContext(ctx).Model(&models.ProviderSubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"status":       types.SubscriptionStatusCancelled,
			"cancelled_at": gorm.Expr("CURRENT_TIMESTAMP"),
			"auto_renew":   false,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to cancel subscription %s: %w", ev.SubscriptionCode, err)
	}

	s.bestEffort(ctx, "notify_subscription_cancelled", func() error {
		return s.notifier.Send(ctx, notification("Subscription cancelled", "Your subscription has been cancelled.", sub.ProviderID, ""))
	})
	return nil
}

// SubscriptionEnabled reactivates a previously disabled subscription.
func (s *Service) SubscriptionEnabled(ctx context.Context, ev *SubscriptionEvent) error {
	sub, err := s.findSubscription(ctx, ev.SubscriptionCode, ev.CustomerEmail)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(&models.ProviderSubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"status":       types.SubscriptionStatusActive,
			"cancelled_at": nil,
			"auto_renew":   true,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reactivate subscription %s: %w", ev.SubscriptionCode, err)
	}
	return nil
}

// SubscriptionNotRenewing turns off auto-renewal; the subscription stays
// active for the paid period.
func (s *Service) SubscriptionNotRenewing(ctx context.Context, ev *SubscriptionEvent) error {
	sub, err := s.findSubscription(ctx, ev.SubscriptionCode, ev.CustomerEmail)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(&models.ProviderSubscription{}).
		Where("id = ?", sub.ID).
		Update("auto_renew", false).Error
	if err != nil {
		return fmt.Errorf("failed to stop subscription renewal %s: %w", ev.SubscriptionCode, err)
	}
	return nil
}

// InvoiceCreated records the upcoming charge date.
func (s *Service) InvoiceCreated(ctx context.Context, ev *InvoiceEvent) error {
	sub, err := s.findSubscription(ctx, ev.SubscriptionCode, ev.CustomerEmail)
	if err != nil {
		return err
	}
	if ev.PeriodEnd == nil {
		return nil
	}
	err = s.db.WithContext(ctx).Model(&models.ProviderSubscription{}).
		Where("id = ?", sub.ID).
		Update("next_payment_date", *ev.PeriodEnd).Error
	if err != nil {
		return fmt.Errorf("failed to record invoice for subscription %s: %w", ev.SubscriptionCode, err)
	}
	return nil
}

// InvoiceUpdated settles a renewal: a paid invoice extends the subscription
// and appends a ledger row; an unpaid one only refreshes the schedule.
func (s *Service) InvoiceUpdated(ctx context.Context, ev *InvoiceEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	sub, err := s.findSubscription(ctx, ev.SubscriptionCode, ev.CustomerEmail)
	if err != nil {
		return err
	}
	if !ev.Paid {
		return s.InvoiceCreated(ctx, ev)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		if sub.Status != types.SubscriptionStatusCancelled {
			updates["status"] = types.SubscriptionStatusActive
		}
		if ev.PeriodEnd != nil {
			updates["expires_at"] = *ev.PeriodEnd
			updates["next_payment_date"] = *ev.PeriodEnd
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.ProviderSubscription{}).
				Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to extend subscription %s: %w", ev.SubscriptionCode, err)
			}
		}

		row := &models.PaymentTransaction{
			ID:              tool.GenerateUUIDV7(),
			Reference:       ev.SubscriptionCode,
			Amount:          ev.Amount,
			NetAmount:       ev.Amount,
			Status:          types.PaymentTransactionStatusSuccess,
			Provider:        types.PaymentProviderPaystack,
			TransactionType: "subscription_renewal",
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to record renewal transaction: %w", err)
		}

		return s.ledger.Append(ctx, tx, &models.FinanceTransaction{
			ProviderID:      &sub.ProviderID,
			TransactionType: types.FinanceTxProviderSubPayment,
			Amount:          ev.Amount,
			Net:             ev.Amount,
			Description:     "subscription renewal",
		})
	})
	if err != nil {
		return err
	}

	s.bestEffort(ctx, "notify_subscription_renewed", func() error {
		return s.notifier.Send(ctx, notification("Subscription renewed", s.renewalMessage(ctx, sub, ev), sub.ProviderID, ""))
	})
	log.Infow("subscription_renewed", "provider_id", sub.ProviderID, "subscription_code", ev.SubscriptionCode)
	return nil
}

// renewalMessage builds the renewal notification body: plan, amount, and the
// next payment date when known. The plan name lookup is best-effort; the
// billing period stands in when the plan row is gone.
func (s *Service) renewalMessage(ctx context.Context, sub *models.ProviderSubscription, ev *InvoiceEvent) string {
	planName := string(sub.BillingPeriod)
	var plan models.ProviderSubscriptionPlan
	if err := s.db.WithContext(ctx).Where("id = ?", sub.PlanID).First(&plan).Error; err == nil && plan.Name != "" {
		planName = plan.Name
	}
	msg := fmt.Sprintf("Your %s subscription renewed for %s.", planName, ev.Amount.StringFixed(2))
	if ev.PeriodEnd != nil {
		msg += fmt.Sprintf(" Next payment on %s.", ev.PeriodEnd.Format("2 Jan 2006"))
	}
	return msg
}

// InvoicePaymentFailed marks the subscription past due. The gateway retries
// on its own schedule; a later paid invoice flips it back to active.
func (s *Service) InvoicePaymentFailed(ctx context.Context, ev *InvoiceEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	sub, err := s.findSubscription(ctx, ev.SubscriptionCode, ev.CustomerEmail)
	if err != nil {
		return err
	}
	if sub.Status == types.SubscriptionStatusCancelled {
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ProviderSubscription{}).
			Where("id = ? AND status <> ?", sub.ID, types.SubscriptionStatusCancelled).
			Update("status", types.SubscriptionStatusPastDue).Error; err != nil {
			return fmt.Errorf("failed to mark subscription past due: %w", err)
		}
		row := &models.PaymentTransaction{
			ID:              tool.GenerateUUIDV7(),
			Reference:       ev.SubscriptionCode,
			Amount:          ev.Amount,
			NetAmount:       ev.Amount,
			Status:          types.PaymentTransactionStatusFailed,
			Provider:        types.PaymentProviderPaystack,
			TransactionType: "subscription_renewal",
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to record failed renewal: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.bestEffort(ctx, "notify_subscription_past_due", func() error {
		return s.notifier.Send(ctx, notification("Payment problem", "Your subscription payment failed. Please update your card.", sub.ProviderID, ""))
	})
	log.Warnw("subscription_past_due", "provider_id", sub.ProviderID, "subscription_code", ev.SubscriptionCode)
	return nil
}

// findSubscription resolves a lifecycle event to its local subscription: by
// stored gateway code first, then through the provider's account email for
// events arriving before the code is linked.
func (s *Service) findSubscription(ctx context.Context, code, email string) (*models.ProviderSubscription, error) {
	var sub models.ProviderSubscription
	if code != "" {
		err := s.db.WithContext(ctx).Where("paystack_subscription_code = ?", code).First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to find subscription by code: %w", err)
		}
	}
	if email != "" {
		var provider models.Provider
		err := s.db.WithContext(ctx).Where("email = ?", email).First(&provider).Error
		if err == nil {
			err = s.db.WithContext(ctx).Where("provider_id = ?", provider.ID).First(&sub).Error
			if err == nil {
				return &sub, nil
			}
			if err != gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("failed to find subscription by provider: %w", err)
			}
		} else if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to find provider by email: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: subscription %s (%s)", ErrUnknownEntity, code, email)
}
