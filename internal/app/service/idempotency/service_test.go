package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/types"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.WebhookEvent{}))
	return NewService(db, zap.NewNop().Sugar()), db
}

func TestClaimFreshEvent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	outcome, row, err := svc.Claim(ctx, "paystack", "evt_1", "charge.success", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeClaimed, outcome)
	require.NotNil(t, row)
	assert.Equal(t, models.WebhookEventStatusClaimed, row.Status)
	assert.Equal(t, "evt_1", row.EventID)
}

func TestClaimDuplicateOfProcessed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, row, err := svc.Claim(ctx, "paystack", "evt_2", "charge.success", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.MarkProcessed(ctx, row.ID))

	outcome, existing, err := svc.Claim(ctx, "paystack", "evt_2", "charge.success", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.Equal(t, row.ID, existing.ID)
}

func TestClaimWhileInFlight(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Claim(ctx, "paystack", "evt_3", "charge.success", []byte(`{}`))
	require.NoError(t, err)

	outcome, _, err := svc.Claim(ctx, "paystack", "evt_3", "charge.success", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyInFlight, outcome)
}

func TestClaimReclaimsFailedEvent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, row, err := svc.Claim(ctx, "paystack", "evt_4", "charge.success", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailed(ctx, row.ID, errors.New("boom")))

	outcome, reclaimed, err := svc.Claim(ctx, "paystack", "evt_4", "charge.success", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeClaimed, outcome)
	assert.Equal(t, row.ID, reclaimed.ID)

	var got models.WebhookEvent
	require.NoError(t, db.First(&got, "id = ?", row.ID).Error)
	assert.Equal(t, models.WebhookEventStatusClaimed, got.Status)
	assert.Empty(t, got.Error)
}

func TestClaimSameEventIDDifferentSource(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	outcome, _, err := svc.Claim(ctx, "paystack", "evt_5", "charge.success", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeClaimed, outcome)

	outcome, _, err = svc.Claim(ctx, "stripe", "evt_5", "charge.success", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeClaimed, outcome, "uniqueness is per (source, event_id)")
}

func TestMarkFailedRecordsError(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, row, err := svc.Claim(ctx, "paystack", "evt_6", "transfer.success", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailed(ctx, row.ID, errors.New("ledger append failed")))

	var got models.WebhookEvent
	require.NoError(t, db.First(&got, "id = ?", row.ID).Error)
	assert.Equal(t, models.WebhookEventStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "ledger append failed", *got.Error)
	require.NotNil(t, got.ProcessedAt)
}

func TestScanFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, eventType := range []string{"charge.success", "charge.success", "transfer.success"} {
		_, row, err := svc.Claim(ctx, "paystack", "evt_scan_"+string(rune('a'+i)), eventType, []byte(`{}`))
		require.NoError(t, err)
		require.NoError(t, svc.MarkProcessed(ctx, row.ID))
	}

	resp, err := svc.Scan(ctx, &ScanRequest{
		Filters: []*types.CommonFilter{{Field: "event_type", Operator: types.CommonFilterOperatorEq, Values: []any{"charge.success"}}},
		Size:    1,
		SortBy:  "created_at",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	assert.Len(t, resp.Items, 1)
}
