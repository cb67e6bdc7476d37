package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/metrics"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// initialBackoff is the delay before the first out-of-band retry.
const initialBackoff = 5 * time.Minute

// Queue owns the durable retry records for charge-flow failures.
type Queue struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewQueue(db *gorm.DB, log *zap.SugaredLogger) *Queue {
	return &Queue{db: db, log: log}
}

// Enqueue records a failed charge settlement for out-of-band re-drive.
// Best-effort: a queue insert failure is logged, never propagated, because
// the idempotency row already carries the failed status.
func (q *Queue) Enqueue(ctx context.Context, bookingID, reference, webhookEventID string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	entry := &models.ReconciliationEntry{
		ID:               tool.GenerateUUIDV7(),
		BookingID:        bookingID,
		PaymentReference: reference,
		WebhookEventID:   webhookEventID,
		Status:           types.ReconciliationStatusPending,
		AttemptCount:     0,
		NextRetryAt:      time.Now().Add(initialBackoff),
		ErrorMessage:     msg,
	}
	if err := q.db.WithContext(ctx).Create(entry).Error; err != nil {
		logctx.FromCtx(ctx, q.log).Errorw("reconciliation_enqueue_failed",
			"booking_id", bookingID, "reference", reference, "error", err.Error())
		return
	}
	metrics.ReconciliationEnqueuedTotal.Inc()
	logctx.FromCtx(ctx, q.log).Warnw("reconciliation_enqueued",
		"booking_id", bookingID, "reference", reference, "entry_id", entry.ID)
}

// Due returns pending entries whose next_retry_at has passed.
func (q *Queue) Due(ctx context.Context, limit int) ([]*models.ReconciliationEntry, error) {
	var entries []*models.ReconciliationEntry
	err := q.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", types.ReconciliationStatusPending, time.Now()).
		Order("next_retry_at asc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due reconciliation entries: %w", err)
	}
	return entries, nil
}

func (q *Queue) Get(ctx context.Context, id string) (*models.ReconciliationEntry, error) {
	var entry models.ReconciliationEntry
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkCompleted finishes an entry after a successful re-drive.
func (q *Queue) MarkCompleted(ctx context.Context, id string) error {
	return q.db.WithContext(ctx).Model(&models.ReconciliationEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": types.ReconciliationStatusCompleted, "error_message": ""}).Error
}

// MarkAttemptFailed bumps the attempt counter and doubles the backoff;
// beyond maxAttempts the entry is abandoned, which is the operational signal
// for manual intervention.
func (q *Queue) MarkAttemptFailed(ctx context.Context, entry *models.ReconciliationEntry, maxAttempts int, cause error) error {
	attempts := entry.AttemptCount + 1
	updates := map[string]any{
		"attempt_count": attempts,
		"error_message": cause.Error(),
	}
	if attempts >= maxAttempts {
		updates["status"] = types.ReconciliationStatusAbandoned
	} else {
		updates["next_retry_at"] = time.Now().Add(initialBackoff << attempts)
	}
	return q.db.WithContext(ctx).Model(&models.ReconciliationEntry{}).
		Where("id = ?", entry.ID).
		Updates(updates).Error
}

// ScanRequest mirrors the admin listing contract used across services.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.ReconciliationEntry `json:"items"`
	Total int64                         `json:"total"`
}

type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// Scan implements paginated/filtered admin listing.
func (q *Queue) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}

	tx := q.db.WithContext(ctx).Model(&models.ReconciliationEntry{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count reconciliation entries: %w", err)
	}

	var rows []*models.ReconciliationEntry
	query := tx.Limit(req.Size)
	if req.From > 0 {
		query = query.Offset(req.From)
	}
	if req.SortBy != "" {
		query = query.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reconciliation entries: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
