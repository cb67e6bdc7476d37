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

func TestSettleWalletTopup(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	topup := &models.WalletTopup{
		ID:     tool.GenerateUUIDV7(),
		UserID: tool.GenerateUUIDV7(),
		Amount: dec("75"),
		Status: types.PaymentStatusPending,
	}
	require.NoError(t, db.Create(topup).Error)

	ev := &ChargeEvent{
		Reference: "ref_topup",
		Amount:    dec("75"),
		Target:    ChargeTarget{Kind: TargetWalletTopup, WalletTopupID: topup.ID},
	}
	require.NoError(t, svc.SettleCharge(ctx, ev))

	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", topup.UserID).First(&w).Error)
	assert.True(t, w.Balance.Equal(dec("75")))

	// Redelivery must not double-credit.
	require.NoError(t, svc.SettleCharge(ctx, ev))
	require.NoError(t, db.Where("user_id = ?", topup.UserID).First(&w).Error)
	assert.True(t, w.Balance.Equal(dec("75")), "balance after redelivery = %s", w.Balance)

	var row models.FinanceTransaction
	require.NoError(t, db.Where("transaction_type = ?", types.FinanceTxWalletTopup).First(&row).Error)
	assert.True(t, row.Amount.Equal(dec("75")))
}

func TestSettleGiftCardOrderIssuesUniqueCodes(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	order := &models.GiftCardOrder{
		ID:          tool.GenerateUUIDV7(),
		PurchaserID: tool.GenerateUUIDV7(),
		Quantity:    3,
		UnitValue:   dec("25"),
		Status:      types.PaymentStatusPending,
	}
	require.NoError(t, db.Create(order).Error)

	ev := &ChargeEvent{
		Reference: "ref_gc",
		Amount:    dec("75"),
		Target:    ChargeTarget{Kind: TargetGiftCardOrder, GiftCardOrderID: order.ID},
	}
	require.NoError(t, svc.SettleCharge(ctx, ev))

	var cards []models.GiftCard
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&cards).Error)
	require.Len(t, cards, 3)
	codes := map[string]bool{}
	for _, c := range cards {
		assert.True(t, c.Balance.Equal(dec("25")))
		assert.Equal(t, types.GiftCardStatusActive, c.Status)
		assert.NotNil(t, c.ExpiresAt)
		codes[c.Code] = true
	}
	assert.Len(t, codes, 3, "codes must be distinct")

	var row models.FinanceTransaction
	require.NoError(t, db.Where("transaction_type = ?", types.FinanceTxGiftCardSale).First(&row).Error)
	assert.True(t, row.Amount.Equal(dec("75")))

	// Redelivery issues no extra cards.
	require.NoError(t, svc.SettleCharge(ctx, ev))
	var n int64
	require.NoError(t, db.Model(&models.GiftCard{}).Where("order_id = ?", order.ID).Count(&n).Error)
	assert.Equal(t, int64(3), n)
}

func TestSettleMembershipOrderUpserts(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	userID := tool.GenerateUUIDV7()
	providerID := tool.GenerateUUIDV7()

	first := &models.MembershipOrder{
		ID:           tool.GenerateUUIDV7(),
		UserID:       userID,
		ProviderID:   providerID,
		PlanName:     "basic",
		Amount:       dec("10"),
		DurationDays: 30,
		Status:       types.PaymentStatusPending,
	}
	require.NoError(t, db.Create(first).Error)
	require.NoError(t, svc.SettleCharge(ctx, &ChargeEvent{
		Reference: "ref_m1",
		Amount:    dec("10"),
		Target:    ChargeTarget{Kind: TargetMembershipOrder, MembershipOrderID: first.ID},
	}))

	// A second order for the same pair updates the one membership row.
	second := &models.MembershipOrder{
		ID:           tool.GenerateUUIDV7(),
		UserID:       userID,
		ProviderID:   providerID,
		PlanName:     "premium",
		Amount:       dec("25"),
		DurationDays: 90,
		Status:       types.PaymentStatusPending,
	}
	require.NoError(t, db.Create(second).Error)
	require.NoError(t, svc.SettleCharge(ctx, &ChargeEvent{
		Reference: "ref_m2",
		Amount:    dec("25"),
		Target:    ChargeTarget{Kind: TargetMembershipOrder, MembershipOrderID: second.ID},
	}))

	var memberships []models.Membership
	require.NoError(t, db.Where("user_id = ?", userID).Find(&memberships).Error)
	require.Len(t, memberships, 1)
	assert.Equal(t, "premium", memberships[0].PlanName)
	assert.True(t, memberships[0].Active)
}

func TestSettleProviderSubscriptionOrderWithAuthorization(t *testing.T) {
	svc, db, gw := newTestService(t)
	ctx := context.Background()

	plan := &models.ProviderSubscriptionPlan{
		ID:              tool.GenerateUUIDV7(),
		Name:            "pro",
		MonthlyPrice:    dec("30"),
		YearlyPrice:     dec("300"),
		MonthlyPlanCode: "PLN_monthly",
	}
	require.NoError(t, db.Create(plan).Error)

	order := &models.ProviderSubscriptionOrder{
		ID:            tool.GenerateUUIDV7(),
		ProviderID:    tool.GenerateUUIDV7(),
		PlanID:        plan.ID,
		BillingPeriod: types.BillingPeriodMonthly,
		Amount:        dec("30"),
		Purpose:       types.SubscriptionOrderPurposeAuthorization,
		Status:        types.PaymentStatusPending,
	}
	require.NoError(t, db.Create(order).Error)

	ev := &ChargeEvent{
		Reference:     "ref_sub",
		Amount:        dec("30"),
		CustomerEmail: "pro@example.com",
		Target:        ChargeTarget{Kind: TargetProviderSubscriptionOrder, ProviderSubscriptionOrderID: order.ID},
		Authorization: &CardAuthorization{AuthorizationCode: "AUTH_sub", Signature: "SIG_sub", Reusable: true},
	}
	require.NoError(t, svc.SettleCharge(ctx, ev))

	assert.Equal(t, 1, gw.customers, "customer created when no code on event")
	assert.Equal(t, 1, gw.subscriptions)
	assert.Equal(t, "PLN_monthly", gw.lastPlanCode)
	assert.Equal(t, "AUTH_sub", gw.lastAuthCode)

	var sub models.ProviderSubscription
	require.NoError(t, db.Where("provider_id = ?", order.ProviderID).First(&sub).Error)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, "SUB_test", sub.PaystackSubscriptionCode)
	require.NotNil(t, sub.ExpiresAt)

	// Redelivery does not enroll twice.
	require.NoError(t, svc.SettleCharge(ctx, ev))
	assert.Equal(t, 1, gw.subscriptions)
}

func TestSettleProviderSubscriptionOrderMissingPlanCode(t *testing.T) {
	svc, db, gw := newTestService(t)
	ctx := context.Background()

	plan := &models.ProviderSubscriptionPlan{
		ID:           tool.GenerateUUIDV7(),
		Name:         "legacy",
		MonthlyPrice: dec("20"),
	}
	require.NoError(t, db.Create(plan).Error)

	order := &models.ProviderSubscriptionOrder{
		ID:            tool.GenerateUUIDV7(),
		ProviderID:    tool.GenerateUUIDV7(),
		PlanID:        plan.ID,
		BillingPeriod: types.BillingPeriodMonthly,
		Amount:        dec("20"),
		Purpose:       types.SubscriptionOrderPurposeAuthorization,
		Status:        types.PaymentStatusPending,
	}
	require.NoError(t, db.Create(order).Error)

	ev := &ChargeEvent{
		Reference:     "ref_sub_nocode",
		Amount:        dec("20"),
		Target:        ChargeTarget{Kind: TargetProviderSubscriptionOrder, ProviderSubscriptionOrderID: order.ID},
		Authorization: &CardAuthorization{AuthorizationCode: "AUTH_x", Reusable: true},
	}
	// Settlement succeeds; recurring enrollment is skipped as a logged gap.
	require.NoError(t, svc.SettleCharge(ctx, ev))
	assert.Equal(t, 0, gw.subscriptions)

	var sub models.ProviderSubscription
	require.NoError(t, db.Where("provider_id = ?", order.ProviderID).First(&sub).Error)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
}

func TestFailOrderFlows(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	topup := &models.WalletTopup{
		ID:     tool.GenerateUUIDV7(),
		UserID: tool.GenerateUUIDV7(),
		Amount: dec("10"),
		Status: types.PaymentStatusPending,
	}
	require.NoError(t, db.Create(topup).Error)
	require.NoError(t, svc.FailCharge(ctx, &ChargeEvent{
		Reference: "ref_topup_fail",
		Amount:    dec("10"),
		Target:    ChargeTarget{Kind: TargetWalletTopup, WalletTopupID: topup.ID},
	}))

	var got models.WalletTopup
	require.NoError(t, db.First(&got, "id = ?", topup.ID).Error)
	assert.Equal(t, types.PaymentStatusFailed, got.Status)

	// No wallet was credited.
	var n int64
	require.NoError(t, db.Model(&models.Wallet{}).Where("user_id = ?", topup.UserID).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}
