package webhook

import (
	"context"
	"fmt"
	"testing"

	"github.com/bookora/payments/internal/app/service/idempotency"
	"github.com/bookora/payments/internal/app/service/ledger"
	"github.com/bookora/payments/internal/app/service/notify"
	"github.com/bookora/payments/internal/app/service/reconciliation"
	"github.com/bookora/payments/internal/app/service/settlement"
	"github.com/bookora/payments/internal/app/service/wallet"
	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/internal/platform/paystack"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "sk_test_webhook"

type stubGateway struct{}

func (stubGateway) CreateCustomer(context.Context, string, string, string, string) (*paystack.Customer, error) {
	return &paystack.Customer{CustomerCode: "CUS_stub"}, nil
}

func (stubGateway) CreateSubscription(context.Context, string, string, string) (*paystack.Subscription, error) {
	return &paystack.Subscription{SubscriptionCode: "SUB_stub", Status: "active"}, nil
}

func newTestHandler(t *testing.T) (*Handler, *gorm.DB) {
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

	cfg := &config.Config{
		Paystack:   config.PaystackConfig{SecretKey: testSecret},
		Commission: config.CommissionConfig{DefaultRate: 15, Enabled: true},
	}
	log := zap.NewNop().Sugar()
	settle := settlement.New(
		db, cfg, log,
		ledger.New(db, cfg, log),
		wallet.New(db, log),
		notify.NewNotifier(cfg, log),
		notify.NewTracker(cfg, log),
		stubGateway{},
	)
	h := NewHandler(cfg, NewVerifier(cfg), idempotency.NewService(db, log), settle, reconciliation.NewQueue(db, log), log)
	return h, db
}

func chargeBody(eventID int, reference, bookingID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "charge.success",
		"data": {
			"id": %d,
			"reference": %q,
			"amount": 50000,
			"currency": "NGN",
			"customer": {"email": "pay@example.com"},
			"metadata": {"booking_id": %q}
		}
	}`, eventID, reference, bookingID))
}

func deliver(t *testing.T, h *Handler, body []byte) error {
	t.Helper()
	return h.Handle(context.Background(), body, signBody(testSecret, body))
}

func TestHandleRejectsBadSignature(t *testing.T) {
	h, db := newTestHandler(t)

	body := chargeBody(1, "ref_sig", "bk_sig")
	err := h.Handle(context.Background(), body, signBody("wrong_secret", body))
	require.ErrorIs(t, err, ErrInvalidSignature)

	var n int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&n).Error)
	assert.Zero(t, n, "rejected delivery must not touch the ledger")
}

func TestHandleRejectsMalformedEnvelope(t *testing.T) {
	h, _ := newTestHandler(t)
	body := []byte(`{"data":{"id":1}}`)
	err := h.Handle(context.Background(), body, signBody(testSecret, body))
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestHandleChargeSuccessSettlesBooking(t *testing.T) {
	h, db := newTestHandler(t)

	booking := &models.Booking{
		ID:            tool.GenerateUUIDV7(),
		CustomerID:    tool.GenerateUUIDV7(),
		ProviderID:    tool.GenerateUUIDV7(),
		Status:        types.BookingStatusPending,
		PaymentStatus: types.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(500),
	}
	require.NoError(t, db.Create(booking).Error)

	require.NoError(t, deliver(t, h, chargeBody(10, "ref_ok", booking.ID)))

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, types.PaymentStatusPaid, got.PaymentStatus)

	var row models.WebhookEvent
	require.NoError(t, db.Where("source = ? AND event_id = ?", Source, "10").First(&row).Error)
	assert.Equal(t, models.WebhookEventStatusProcessed, row.Status)
	require.NotNil(t, row.ProcessedAt)
}

func TestHandleDuplicateDeliveryShortCircuits(t *testing.T) {
	h, db := newTestHandler(t)

	booking := &models.Booking{
		ID:            tool.GenerateUUIDV7(),
		CustomerID:    tool.GenerateUUIDV7(),
		ProviderID:    tool.GenerateUUIDV7(),
		Status:        types.BookingStatusPending,
		PaymentStatus: types.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(500),
	}
	require.NoError(t, db.Create(booking).Error)

	body := chargeBody(11, "ref_dup", booking.ID)
	require.NoError(t, deliver(t, h, body))
	require.NoError(t, deliver(t, h, body))

	var txns int64
	require.NoError(t, db.Model(&models.PaymentTransaction{}).Count(&txns).Error)
	assert.Equal(t, int64(1), txns)

	var events int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestHandleInFlightDeliveryShortCircuits(t *testing.T) {
	h, db := newTestHandler(t)

	// A concurrent delivery holds the claim.
	require.NoError(t, db.Create(&models.WebhookEvent{
		ID:        tool.GenerateUUIDV7(),
		Source:    Source,
		EventID:   "12",
		EventType: "charge.success",
		Payload:   []byte(`{}`),
		Status:    models.WebhookEventStatusClaimed,
	}).Error)

	require.NoError(t, deliver(t, h, chargeBody(12, "ref_inflight", "bk_none")))

	var txns int64
	require.NoError(t, db.Model(&models.PaymentTransaction{}).Count(&txns).Error)
	assert.Zero(t, txns)
}

func TestHandleUnhandledEventIsAccepted(t *testing.T) {
	h, db := newTestHandler(t)

	body := []byte(`{"event":"charge.dispute.create","data":{"id":13}}`)
	require.NoError(t, h.Handle(context.Background(), body, signBody(testSecret, body)))

	var n int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestHandleUnknownEntityCountsAsProcessed(t *testing.T) {
	h, db := newTestHandler(t)

	// Charge for a booking that does not exist: a gateway retry would hit the
	// same wall, so the event is terminal.
	require.NoError(t, deliver(t, h, chargeBody(14, "ref_ghost", tool.GenerateUUIDV7())))

	var row models.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "14").First(&row).Error)
	assert.Equal(t, models.WebhookEventStatusProcessed, row.Status)

	var entries int64
	require.NoError(t, db.Model(&models.ReconciliationEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestHandleFailureQueuesReconciliationAndRedrives(t *testing.T) {
	h, db := newTestHandler(t)
	ctx := context.Background()

	booking := &models.Booking{
		ID:            tool.GenerateUUIDV7(),
		CustomerID:    tool.GenerateUUIDV7(),
		ProviderID:    tool.GenerateUUIDV7(),
		Status:        types.BookingStatusPending,
		PaymentStatus: types.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(500),
	}
	require.NoError(t, db.Create(booking).Error)

	// Break the settlement transaction mid-flight.
	require.NoError(t, db.Migrator().DropTable(&models.FinanceTransaction{}))

	require.NoError(t, deliver(t, h, chargeBody(15, "ref_retry", booking.ID)), "internal failures still answer 200")

	var row models.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "15").First(&row).Error)
	assert.Equal(t, models.WebhookEventStatusFailed, row.Status)
	assert.NotEmpty(t, row.Error)

	var entry models.ReconciliationEntry
	require.NoError(t, db.Where("booking_id = ?", booking.ID).First(&entry).Error)
	assert.Equal(t, types.ReconciliationStatusPending, entry.Status)
	assert.Equal(t, row.ID, entry.WebhookEventID)
	assert.Equal(t, "ref_retry", entry.PaymentReference)

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, types.PaymentStatusPending, got.PaymentStatus, "failed settlement rolls back")

	// Heal the schema and re-drive from the stored payload.
	require.NoError(t, db.AutoMigrate(&models.FinanceTransaction{}))
	require.NoError(t, h.Redrive(ctx, &entry))

	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, types.PaymentStatusPaid, got.PaymentStatus)

	require.NoError(t, db.First(&row, "id = ?", row.ID).Error)
	assert.Equal(t, models.WebhookEventStatusProcessed, row.Status)
}

func TestHandleFailedEventIsReclaimable(t *testing.T) {
	h, db := newTestHandler(t)

	booking := &models.Booking{
		ID:            tool.GenerateUUIDV7(),
		CustomerID:    tool.GenerateUUIDV7(),
		ProviderID:    tool.GenerateUUIDV7(),
		Status:        types.BookingStatusPending,
		PaymentStatus: types.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(500),
	}
	require.NoError(t, db.Create(booking).Error)

	body := chargeBody(16, "ref_reclaim", booking.ID)

	require.NoError(t, db.Migrator().DropTable(&models.FinanceTransaction{}))
	require.NoError(t, deliver(t, h, body))
	require.NoError(t, db.AutoMigrate(&models.FinanceTransaction{}))

	// The gateway retries the same delivery; the failed row is re-claimed and
	// this time settlement goes through.
	require.NoError(t, deliver(t, h, body))

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, types.PaymentStatusPaid, got.PaymentStatus)

	var row models.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "16").First(&row).Error)
	assert.Equal(t, models.WebhookEventStatusProcessed, row.Status)
}
