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

func seedPayout(t *testing.T, svc *Service, status types.PayoutStatus) *models.Payout {
	t.Helper()
	p := &models.Payout{
		ID:           tool.GenerateUUIDV7(),
		TransferCode: "TRF_" + tool.GenerateUUIDV7(),
		ProviderID:   tool.GenerateUUIDV7(),
		Amount:       dec("120"),
		Status:       status,
	}
	require.NoError(t, svc.db.Create(p).Error)
	return p
}

func TestSettleTransferCompletes(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := seedPayout(t, svc, types.PayoutStatusProcessing)

	require.NoError(t, svc.SettleTransfer(context.Background(), &TransferEvent{
		TransferCode: p.TransferCode,
		Amount:       dec("120"),
	}))

	var got models.Payout
	require.NoError(t, db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, types.PayoutStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestSettleTransferFailureRecordsReason(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := seedPayout(t, svc, types.PayoutStatusProcessing)

	require.NoError(t, svc.SettleTransfer(context.Background(), &TransferEvent{
		TransferCode: p.TransferCode,
		Amount:       dec("120"),
		Reason:       "insufficient balance",
		Failed:       true,
	}))

	var got models.Payout
	require.NoError(t, db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, types.PayoutStatusFailed, got.Status)
	assert.Equal(t, "insufficient balance", got.FailureReason)
	require.NotNil(t, got.FailedAt)
}

func TestSettleTransferTerminalStateIsMonotonic(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := seedPayout(t, svc, types.PayoutStatusProcessing)
	ctx := context.Background()

	require.NoError(t, svc.SettleTransfer(ctx, &TransferEvent{TransferCode: p.TransferCode}))

	// A late failure event for a completed payout must be ignored.
	require.NoError(t, svc.SettleTransfer(ctx, &TransferEvent{
		TransferCode: p.TransferCode,
		Failed:       true,
		Reason:       "late duplicate",
	}))

	var got models.Payout
	require.NoError(t, db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, types.PayoutStatusCompleted, got.Status)
	assert.Empty(t, got.FailureReason)
}

func TestSettleTransferLookupByProviderTransactionID(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := seedPayout(t, svc, types.PayoutStatusProcessing)
	require.NoError(t, db.Model(&models.Payout{}).Where("id = ?", p.ID).
		Update("provider_transaction_id", "9912").Error)

	require.NoError(t, svc.SettleTransfer(context.Background(), &TransferEvent{
		ProviderTransactionID: "9912",
		Reversed:              true,
	}))

	var got models.Payout
	require.NoError(t, db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, types.PayoutStatusFailed, got.Status)
	assert.Equal(t, "transfer reversed", got.FailureReason)
}

func TestSettleTransferUnknownPayout(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.SettleTransfer(context.Background(), &TransferEvent{TransferCode: "TRF_missing"})
	require.ErrorIs(t, err, ErrUnknownEntity)
}
