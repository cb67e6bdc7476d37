package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/types"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Redriver re-runs settlement for a queued entry. Implemented by the webhook
// handler, bound through fx in the app module to avoid a dependency cycle.
type Redriver interface {
	Redrive(ctx context.Context, entry *models.ReconciliationEntry) error
}

// Worker periodically re-drives due entries.
type Worker struct {
	queue       *Queue
	redrive     Redriver
	log         *zap.SugaredLogger
	interval    time.Duration
	maxAttempts int

	stop chan struct{}
	done chan struct{}
}

func NewWorker(cfg *config.Config, queue *Queue, redrive Redriver, log *zap.SugaredLogger) *Worker {
	interval := cfg.Reconciliation.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	maxAttempts := cfg.Reconciliation.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Worker{
		queue:       queue,
		redrive:     redrive,
		log:         log,
		interval:    interval,
		maxAttempts: maxAttempts,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (w *Worker) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.ProcessDue(context.Background())
		}
	}
}

// ProcessDue re-drives every due entry once. Failures only adjust the
// entry's own backoff; one bad entry never blocks the rest of the batch.
func (w *Worker) ProcessDue(ctx context.Context) {
	entries, err := w.queue.Due(ctx, 50)
	if err != nil {
		w.log.Errorw("reconciliation_scan_failed", "error", err.Error())
		return
	}
	for _, entry := range entries {
		w.attempt(ctx, entry)
	}
}

// Retry re-drives a single entry immediately, regardless of its backoff.
// Used by the admin endpoint.
func (w *Worker) Retry(ctx context.Context, id string) error {
	entry, err := w.queue.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load reconciliation entry: %w", err)
	}
	if entry.Status == types.ReconciliationStatusCompleted {
		return nil
	}
	return w.attempt(ctx, entry)
}

func (w *Worker) attempt(ctx context.Context, entry *models.ReconciliationEntry) error {
	err := w.redrive.Redrive(ctx, entry)
	if err == nil {
		w.log.Infow("reconciliation_completed", "entry_id", entry.ID, "booking_id", entry.BookingID)
		return w.queue.MarkCompleted(ctx, entry.ID)
	}
	w.log.Warnw("reconciliation_attempt_failed",
		"entry_id", entry.ID, "booking_id", entry.BookingID,
		"attempt", entry.AttemptCount+1, "error", err.Error())
	if markErr := w.queue.MarkAttemptFailed(ctx, entry, w.maxAttempts, err); markErr != nil {
		w.log.Errorw("reconciliation_mark_failed", "entry_id", entry.ID, "error", markErr.Error())
	}
	return err
}

// registerWorker ties the retry loop to the fx lifecycle.
func registerWorker(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go w.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(w.stop)
			select {
			case <-w.done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

// Module exposes the reconciliation queue and worker via Fx.
var Module = fx.Options(
	fx.Provide(NewQueue),
	fx.Provide(NewWorker),
	fx.Invoke(registerWorker),
)
