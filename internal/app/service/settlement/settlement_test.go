package settlement

import (
	"context"
	"testing"

	"github.com/bookora/payments/internal/app/service/ledger"
	"github.com/bookora/payments/internal/app/service/notify"
	"github.com/bookora/payments/internal/app/service/wallet"
	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/internal/platform/paystack"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	customers     int
	subscriptions int
	lastPlanCode  string
	lastAuthCode  string
	customerCode  string
	subCode       string
}

func (f *fakeGateway) CreateCustomer(_ context.Context, email, _, _, _ string) (*paystack.Customer, error) {
	f.customers++
	if f.customerCode == "" {
		f.customerCode = "CUS_test"
	}
	return &paystack.Customer{CustomerCode: f.customerCode, Email: email}, nil
}

func (f *fakeGateway) CreateSubscription(_ context.Context, _, planCode, authCode string) (*paystack.Subscription, error) {
	f.subscriptions++
	f.lastPlanCode = planCode
	f.lastAuthCode = authCode
	if f.subCode == "" {
		f.subCode = "SUB_test"
	}
	return &paystack.Subscription{SubscriptionCode: f.subCode, Status: "active"}, nil
}

type fakeNotifier struct {
	sent []*notify.Notification
}

func (f *fakeNotifier) Send(_ context.Context, n *notify.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.WebhookEvent{},
		&models.PaymentTransaction{},
		&models.FinanceTransaction{},
		&models.Booking{},
		&models.AdditionalCharge{},
		&models.BookingService{},
		&models.BookingTimelineEvent{},
		&models.CustomOffer{},
		&models.ServiceRequest{},
		&models.Offering{},
		&models.ConversationMessage{},
		&models.Wallet{},
		&models.WalletTopup{},
		&models.GiftCardOrder{},
		&models.GiftCard{},
		&models.GiftCardRedemption{},
		&models.MembershipOrder{},
		&models.Membership{},
		&models.Provider{},
		&models.ProviderSubscriptionPlan{},
		&models.ProviderSubscriptionOrder{},
		&models.ProviderSubscription{},
		&models.Payout{},
		&models.ReconciliationEntry{},
		&models.CommissionSetting{},
		&models.PaymentAuthorization{},
		&models.PromotionUsage{},
		&models.User{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeGateway) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{
		Commission: config.CommissionConfig{DefaultRate: 15, Enabled: true},
	}
	log := zap.NewNop().Sugar()
	gw := &fakeGateway{}
	svc := New(
		db, cfg, log,
		ledger.New(db, cfg, log),
		wallet.New(db, log),
		&fakeNotifier{},
		notify.NewTracker(cfg, log),
		gw,
	)
	return svc, db, gw
}

// sentNotifications reads back what the service pushed during a test.
func sentNotifications(svc *Service) []*notify.Notification {
	return svc.notifier.(*fakeNotifier).sent
}

func seedBooking(t *testing.T, db *gorm.DB, mutate func(*models.Booking)) *models.Booking {
	t.Helper()
	b := &models.Booking{
		ID:            tool.GenerateUUIDV7(),
		CustomerID:    tool.GenerateUUIDV7(),
		ProviderID:    tool.GenerateUUIDV7(),
		Status:        types.BookingStatusPending,
		PaymentStatus: types.PaymentStatusPending,
	}
	if mutate != nil {
		mutate(b)
	}
	require.NoError(t, db.Create(b).Error)
	return b
}
