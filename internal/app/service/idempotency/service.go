package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome is the result of a claim attempt.
type Outcome int

const (
	// OutcomeClaimed means this delivery owns processing of the event.
	OutcomeClaimed Outcome = iota
	// OutcomeAlreadyProcessed means a prior delivery finished; short-circuit.
	OutcomeAlreadyProcessed
	// OutcomeAlreadyInFlight means a concurrent delivery holds the claim.
	OutcomeAlreadyInFlight
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Claim inserts the idempotency row for (source, eventID). The unique index
// makes the insert the arbiter under concurrent duplicate deliveries: on a
// uniqueness violation the existing row's status decides the outcome. A
// failed row is re-claimable so a gateway retry can re-drive the handler.
func (s *Service) Claim(ctx context.Context, source, eventID, eventType string, payload []byte) (Outcome, *models.WebhookEvent, error) {
	row := &models.WebhookEvent{
		ID:        tool.GenerateUUIDV7(),
		Source:    source,
		EventID:   eventID,
		EventType: eventType,
		Payload:   datatypes.JSON(payload),
		Status:    models.WebhookEventStatusClaimed,
	}

	err := s.db.WithContext(ctx).Create(row).Error
	if err == nil {
		return OutcomeClaimed, row, nil
	}

	// Not every driver maps uniqueness violations to gorm.ErrDuplicatedKey,
	// so on any insert error check whether the row exists before giving up.
	var existing models.WebhookEvent
	findErr := s.db.WithContext(ctx).
		Where("source = ? AND event_id = ?", source, eventID).
		First(&existing).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return 0, nil, fmt.Errorf("failed to insert webhook event: %w", err)
		}
		return 0, nil, fmt.Errorf("failed to load existing webhook event: %w", findErr)
	}

	switch existing.Status {
	case models.WebhookEventStatusProcessed:
		return OutcomeAlreadyProcessed, &existing, nil
	case models.WebhookEventStatusFailed:
		// Re-claim with a guarded update so only one retry wins.
		res := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
			Where("id = ? AND status = ?", existing.ID, models.WebhookEventStatusFailed).
			Updates(map[string]any{"status": models.WebhookEventStatusClaimed, "error": nil})
		if res.Error != nil {
			return 0, nil, fmt.Errorf("failed to reclaim webhook event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return OutcomeAlreadyInFlight, &existing, nil
		}
		existing.Status = models.WebhookEventStatusClaimed
		logctx.FromCtx(ctx, s.log).Infow("webhook_event_reclaimed", "event_id", eventID, "event_type", eventType)
		return OutcomeClaimed, &existing, nil
	default:
		return OutcomeAlreadyInFlight, &existing, nil
	}
}

// MarkProcessed flips the claimed row to its terminal success state.
func (s *Service) MarkProcessed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.WebhookEventStatusProcessed,
			"processed_at": lo.ToPtr(time.Now()),
			"error":        nil,
		}).Error
}

// MarkFailed records the handler failure; the row stays re-claimable.
func (s *Service) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.WebhookEventStatusFailed,
			"processed_at": lo.ToPtr(time.Now()),
			"error":        msg,
		}).Error
}

// Get loads one ledger row by id; used by the reconciliation re-drive.
func (s *Service) Get(ctx context.Context, id string) (*models.WebhookEvent, error) {
	var row models.WebhookEvent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ScanRequest is the admin listing contract shared across services.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.WebhookEvent `json:"items"`
	Total int64                  `json:"total"`
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

// Scan implements the paginated/filtered admin listing of the event ledger.
func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}

	tx := s.db.WithContext(ctx).Model(&models.WebhookEvent{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count webhook events: %w", err)
	}

	var rows []*models.WebhookEvent
	query := tx.Limit(req.Size)
	if req.From > 0 {
		query = query.Offset(req.From)
	}
	if req.SortBy != "" {
		query = query.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
