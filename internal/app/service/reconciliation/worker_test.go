package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeRedriver struct {
	calls int
	err   error
}

func (f *fakeRedriver) Redrive(context.Context, *models.ReconciliationEntry) error {
	f.calls++
	return f.err
}

func newTestQueue(t *testing.T) (*Queue, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ReconciliationEntry{}))
	return NewQueue(db, zap.NewNop().Sugar()), db
}

func newTestWorker(t *testing.T, redrive Redriver, maxAttempts int) (*Worker, *Queue, *gorm.DB) {
	t.Helper()
	q, db := newTestQueue(t)
	cfg := &config.Config{Reconciliation: config.ReconciliationConfig{Interval: time.Minute, MaxAttempts: maxAttempts}}
	return NewWorker(cfg, q, redrive, zap.NewNop().Sugar()), q, db
}

func seedDueEntry(t *testing.T, db *gorm.DB) *models.ReconciliationEntry {
	t.Helper()
	entry := &models.ReconciliationEntry{
		ID:               tool.GenerateUUIDV7(),
		BookingID:        tool.GenerateUUIDV7(),
		PaymentReference: "ref_due",
		WebhookEventID:   tool.GenerateUUIDV7(),
		Status:           types.ReconciliationStatusPending,
		NextRetryAt:      time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestEnqueueIsNotImmediatelyDue(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "bk_1", "ref_1", "evt_1", errors.New("boom"))

	var entry models.ReconciliationEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, types.ReconciliationStatusPending, entry.Status)
	assert.Equal(t, "boom", entry.ErrorMessage)
	assert.True(t, entry.NextRetryAt.After(time.Now()), "first retry waits out the backoff")

	due, err := q.Due(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDueReturnsOnlyRipePendingEntries(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	ripe := seedDueEntry(t, db)
	require.NoError(t, db.Create(&models.ReconciliationEntry{
		ID: tool.GenerateUUIDV7(), Status: types.ReconciliationStatusPending, NextRetryAt: time.Now().Add(time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.ReconciliationEntry{
		ID: tool.GenerateUUIDV7(), Status: types.ReconciliationStatusCompleted, NextRetryAt: time.Now().Add(-time.Hour),
	}).Error)

	due, err := q.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ripe.ID, due[0].ID)
}

func TestMarkAttemptFailedDoublesBackoff(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()
	entry := seedDueEntry(t, db)

	require.NoError(t, q.MarkAttemptFailed(ctx, entry, 5, errors.New("still broken")))

	var got models.ReconciliationEntry
	require.NoError(t, db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, types.ReconciliationStatusPending, got.Status)
	firstRetry := got.NextRetryAt

	require.NoError(t, q.MarkAttemptFailed(ctx, &got, 5, errors.New("still broken")))
	require.NoError(t, db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, 2, got.AttemptCount)
	assert.True(t, got.NextRetryAt.After(firstRetry), "backoff grows with each attempt")
}

func TestMarkAttemptFailedAbandonsAtMax(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()
	entry := seedDueEntry(t, db)
	entry.AttemptCount = 4

	require.NoError(t, q.MarkAttemptFailed(ctx, entry, 5, errors.New("final straw")))

	var got models.ReconciliationEntry
	require.NoError(t, db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, types.ReconciliationStatusAbandoned, got.Status)
	assert.Equal(t, 5, got.AttemptCount)
}

func TestProcessDueCompletesOnSuccess(t *testing.T) {
	redrive := &fakeRedriver{}
	w, _, db := newTestWorker(t, redrive, 5)
	entry := seedDueEntry(t, db)

	w.ProcessDue(context.Background())

	assert.Equal(t, 1, redrive.calls)
	var got models.ReconciliationEntry
	require.NoError(t, db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, types.ReconciliationStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestProcessDueBacksOffOnFailure(t *testing.T) {
	redrive := &fakeRedriver{err: errors.New("not yet")}
	w, _, db := newTestWorker(t, redrive, 5)
	entry := seedDueEntry(t, db)

	w.ProcessDue(context.Background())

	var got models.ReconciliationEntry
	require.NoError(t, db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, types.ReconciliationStatusPending, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, "not yet", got.ErrorMessage)

	// Not due again until the backoff passes.
	w.ProcessDue(context.Background())
	assert.Equal(t, 1, redrive.calls)
}

func TestRetryBypassesBackoff(t *testing.T) {
	redrive := &fakeRedriver{}
	w, q, db := newTestWorker(t, redrive, 5)
	ctx := context.Background()

	q.Enqueue(ctx, "bk_r", "ref_r", "evt_r", errors.New("boom"))
	var entry models.ReconciliationEntry
	require.NoError(t, db.First(&entry).Error)

	require.NoError(t, w.Retry(ctx, entry.ID))
	assert.Equal(t, 1, redrive.calls)

	var got models.ReconciliationEntry
	require.NoError(t, db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, types.ReconciliationStatusCompleted, got.Status)

	// Retrying a completed entry is a no-op.
	require.NoError(t, w.Retry(ctx, entry.ID))
	assert.Equal(t, 1, redrive.calls)
}

func TestRetryUnknownEntry(t *testing.T) {
	w, _, _ := newTestWorker(t, &fakeRedriver{}, 5)
	require.Error(t, w.Retry(context.Background(), tool.GenerateUUIDV7()))
}
