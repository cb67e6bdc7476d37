package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/types"

	"gorm.io/gorm"
)

// SettleTransfer resolves a transfer event against its payout record.
// Completed and failed are terminal: a late or duplicated transfer event for
// a finished payout is ignored.
func (s *Service) SettleTransfer(ctx context.Context, ev *TransferEvent) error {
	log := logctx.FromCtx(ctx, s.log)

	payout, err := s.findPayout(ctx, ev)
	if err != nil {
		return err
	}
	if payout.Status.Terminal() {
		log.Infow("payout_event_after_terminal_ignored",
			"payout_id", payout.ID, "status", payout.Status, "transfer_code", ev.TransferCode)
		return nil
	}

	now := time.Now()
	updates := map[string]any{}
	switch {
	case ev.Reversed:
		updates["status"] = types.PayoutStatusFailed
		updates["failed_at"] = now
		updates["failure_reason"] = "transfer reversed"
	case ev.Failed:
		updates["status"] = types.PayoutStatusFailed
		updates["failed_at"] = now
		updates["failure_reason"] = ev.Reason
	default:
		updates["status"] = types.PayoutStatusCompleted
		updates["completed_at"] = now
	}
	if ev.ProviderTransactionID != "" && payout.ProviderTransactionID == "" {
		updates["provider_transaction_id"] = ev.ProviderTransactionID
	}

	// The status guard makes the transition race-safe: two concurrent events
	// for the same payout cannot both win.
	res := s.db.WithContext(ctx).Model(&models.Payout{}).
		Where("id = ? AND status = ?", payout.ID, types.PayoutStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update payout %s: %w", payout.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		log.Infow("payout_transition_lost_race", "payout_id", payout.ID)
		return nil
	}

	if ev.Failed || ev.Reversed {
		s.bestEffort(ctx, "notify_payout_failed", func() error {
			return s.notifier.Send(ctx, notification("Payout failed", "Your payout could not be completed.", payout.ProviderID, ""))
		})
	} else {
		s.bestEffort(ctx, "notify_payout_completed", func() error {
			return s.notifier.Send(ctx, notification("Payout sent", "Your payout has been sent.", payout.ProviderID, ""))
		})
	}
	log.Infow("payout_settled", "payout_id", payout.ID, "status", updates["status"], "transfer_code", ev.TransferCode)
	return nil
}

// findPayout tries the transfer code first, then the gateway-side transaction
// id some event subtypes carry instead.
func (s *Service) findPayout(ctx context.Context, ev *TransferEvent) (*models.Payout, error) {
	var payout models.Payout
	if ev.TransferCode != "" {
		err := s.db.WithContext(ctx).Where("transfer_code = ?", ev.TransferCode).First(&payout).Error
		if err == nil {
			return &payout, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to find payout by transfer code: %w", err)
		}
	}
	if ev.ProviderTransactionID != "" {
		err := s.db.WithContext(ctx).Where("provider_transaction_id = ?", ev.ProviderTransactionID).First(&payout).Error
		if err == nil {
			return &payout, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to find payout by provider transaction id: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: payout for transfer %s / %s", ErrUnknownEntity, ev.TransferCode, ev.ProviderTransactionID)
}
