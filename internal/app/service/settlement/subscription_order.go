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

// settleProviderSubscriptionOrder activates the provider's plan after a paid
// subscription order. Authorization-purpose orders additionally enroll the
// saved card in gateway-side recurring billing.
func (s *Service) settleProviderSubscriptionOrder(ctx context.Context, ev *ChargeEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	var order models.ProviderSubscriptionOrder
	if err := s.db.WithContext(ctx).Where("id = ?", ev.Target.ProviderSubscriptionOrderID).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: provider subscription order %s", ErrUnknownEntity, ev.Target.ProviderSubscriptionOrderID)
		}
		return fmt.Errorf("failed to load provider subscription order %s: %w", ev.Target.ProviderSubscriptionOrderID, err)
	}
	if order.Status == types.PaymentStatusPaid {
		log.Infow("provider_subscription_order_already_settled", "order_id", order.ID)
		return nil
	}

	var plan models.ProviderSubscriptionPlan
	if err := s.db.WithContext(ctx).Where("id = ?", order.PlanID).First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: subscription plan %s", ErrUnknownEntity, order.PlanID)
		}
		return fmt.Errorf("failed to load subscription plan %s: %w", order.PlanID, err)
	}

	now := time.Now()
	expires := addBillingPeriod(now, order.BillingPeriod)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ProviderSubscriptionOrder{}).Where("id = ?", order.ID).
			Updates(map[string]any{
				"status":    types.PaymentStatusPaid,
				"reference": ev.Reference,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark subscription order paid: %w", err)
		}

		sub := &models.ProviderSubscription{
			ID:                   tool.GenerateUUIDV7(),
			ProviderID:           order.ProviderID,
			PlanID:               order.PlanID,
			Status:               types.SubscriptionStatusActive,
			PaystackCustomerCode: ev.CustomerCode,
			BillingPeriod:        order.BillingPeriod,
			AutoRenew:            order.Purpose == types.SubscriptionOrderPurposeAuthorization,
			StartedAt:            &now,
			ExpiresAt:            &expires,
		}
		if ev.Authorization != nil {
			sub.PaystackAuthorizationCode = ev.Authorization.AuthorizationCode
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"plan_id":                     order.PlanID,
				"status":                      types.SubscriptionStatusActive,
				"billing_period":              order.BillingPeriod,
				"auto_renew":                  sub.AutoRenew,
				"paystack_customer_code":      sub.PaystackCustomerCode,
				"paystack_authorization_code": sub.PaystackAuthorizationCode,
				"expires_at":                  expires,
				"cancelled_at":                nil,
			}),
		}).Create(sub).Error
		if err != nil {
			return fmt.Errorf("failed to activate provider subscription: %w", err)
		}

		if err := recordPayment(ctx, tx, ev, nil, "provider_subscription_payment", types.PaymentTransactionStatusSuccess); err != nil {
			return err
		}
		return s.ledger.Append(ctx, tx, &models.FinanceTransaction{
			ProviderID:      &order.ProviderID,
			TransactionType: types.FinanceTxProviderSubPayment,
			Amount:          order.Amount,
			Fees:            ev.Fees,
			Net:             order.Amount,
			Description:     "provider subscription: " + plan.Name,
		})
	})
	if err != nil {
		return err
	}

	if order.Purpose == types.SubscriptionOrderPurposeAuthorization {
		s.enrollRecurring(ctx, &order, &plan, ev)
	}

	s.bestEffort(ctx, "notify_provider_subscription", func() error {
		return s.notifier.Send(ctx, notification("Subscription active", "Your subscription plan is now active.", order.ProviderID, ""))
	})
	log.Infow("provider_subscription_order_settled", "order_id", order.ID, "plan", plan.Name)
	return nil
}

// enrollRecurring starts gateway-side recurring billing from the charge's
// saved authorization. Failures are logged gaps, not settlement failures: the
// paid period is already active, auto-renewal just won't happen until the
// subscription.create webhook or a manual retry fixes it.
func (s *Service) enrollRecurring(ctx context.Context, order *models.ProviderSubscriptionOrder, plan *models.ProviderSubscriptionPlan, ev *ChargeEvent) {
	log := logctx.FromCtx(ctx, s.log)

	planCode := plan.PlanCode(order.BillingPeriod)
	if planCode == "" {
		log.Warnw("subscription_plan_missing_gateway_code", "plan_id", plan.ID, "billing_period", order.BillingPeriod)
		return
	}
	if ev.Authorization == nil || ev.Authorization.AuthorizationCode == "" {
		log.Warnw("subscription_enroll_missing_authorization", "order_id", order.ID)
		return
	}

	customerCode := ev.CustomerCode
	if customerCode == "" {
		first, last := splitName(ev.CustomerName)
		customer, err := s.gateway.CreateCustomer(ctx, ev.CustomerEmail, first, last, ev.CustomerPhone)
		if err != nil {
			log.Errorw("subscription_customer_create_failed", "order_id", order.ID, "error", err.Error())
			return
		}
		customerCode = customer.CustomerCode
	}

	sub, err := s.gateway.CreateSubscription(ctx, customerCode, planCode, ev.Authorization.AuthorizationCode)
	if err != nil {
		log.Errorw("subscription_enroll_failed", "order_id", order.ID, "error", err.Error())
		return
	}

	err = s.db.WithContext(ctx).Model(&models.ProviderSubscription{}).
		Where("provider_id = ?", order.ProviderID).
		Updates(map[string]any{
			"paystack_subscription_code": sub.SubscriptionCode,
			"paystack_customer_code":     customerCode,
		}).Error
	if err != nil {
		log.Errorw("subscription_code_store_failed", "order_id", order.ID, "error", err.Error())
		return
	}
	log.Infow("subscription_enrolled", "order_id", order.ID, "subscription_code", sub.SubscriptionCode)
}

func (s *Service) failProviderSubscriptionOrder(ctx context.Context, ev *ChargeEvent) error {
	res := s.db.WithContext(ctx).Model(&models.ProviderSubscriptionOrder{}).
		Where("id = ? AND status = ?", ev.Target.ProviderSubscriptionOrderID, types.PaymentStatusPending).
		Updates(map[string]any{"status": types.PaymentStatusFailed, "reference": ev.Reference})
	if res.Error != nil {
		return fmt.Errorf("failed to mark subscription order failed: %w", res.Error)
	}
	return nil
}

func addBillingPeriod(t time.Time, period types.BillingPeriod) time.Time {
	if period == types.BillingPeriodYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

func splitName(full string) (string, string) {
	for i := 0; i < len(full); i++ {
		if full[i] == ' ' {
			return full[:i], full[i+1:]
		}
	}
	return full, ""
}
