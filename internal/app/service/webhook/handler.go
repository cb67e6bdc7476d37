package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookora/payments/internal/app/service/idempotency"
	"github.com/bookora/payments/internal/app/service/reconciliation"
	"github.com/bookora/payments/internal/app/service/settlement"
	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/logctx"
	"github.com/bookora/payments/pkg/metrics"

	"go.uber.org/zap"
)

// Source tags idempotency rows with the originating gateway.
const Source = "paystack"

// Handler drives the full inbound pipeline: verify → parse → claim → route →
// settle → mark. Internal processing failures never surface as HTTP errors;
// they land in the idempotency ledger and the reconciliation queue.
type Handler struct {
	cfg      *config.Config
	verifier *Verifier
	idem     *idempotency.Service
	settle   *settlement.Service
	queue    *reconciliation.Queue
	Logger   *zap.SugaredLogger
}

func NewHandler(cfg *config.Config, v *Verifier, idem *idempotency.Service, settle *settlement.Service, queue *reconciliation.Queue, log *zap.SugaredLogger) *Handler {
	return &Handler{cfg: cfg, verifier: v, idem: idem, settle: settle, queue: queue, Logger: log}
}

// Handle returns ErrInvalidSignature or ErrMalformedPayload for the two
// rejectable cases; any other outcome is nil so the HTTP layer answers 200
// and the gateway stops retrying.
func (h *Handler) Handle(ctx context.Context, body []byte, signature string) error {
	if err := h.verifier.Verify(body, signature); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected_signature").Inc()
		return err
	}

	env, err := parseEnvelope(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected_payload").Inc()
		return err
	}

	log := logctx.FromCtx(ctx, h.Logger).With("event_type", env.Event)
	kind := KindOf(env.Event)
	if kind == EventUnhandled {
		log.Infow("webhook_event_unhandled")
		metrics.WebhookEventsTotal.WithLabelValues(env.Event, "unhandled").Inc()
		return nil
	}

	var row *models.WebhookEvent
	eventID := env.extractEventID()
	if eventID == "" {
		// Known gap: no usable id means no idempotency tracking.
		log.Warnw("webhook_event_untracked")
	} else {
		outcome, claimed, claimErr := h.idem.Claim(ctx, Source, eventID, env.Event, body)
		if claimErr != nil {
			log.Errorw("webhook_claim_failed", "event_id", eventID, "error", claimErr.Error())
			metrics.WebhookEventsTotal.WithLabelValues(env.Event, "claim_error").Inc()
			return nil
		}
		switch outcome {
		case idempotency.OutcomeAlreadyProcessed:
			log.Infow("webhook_event_duplicate", "event_id", eventID)
			metrics.WebhookEventsTotal.WithLabelValues(env.Event, "duplicate").Inc()
			return nil
		case idempotency.OutcomeAlreadyInFlight:
			log.Infow("webhook_event_in_flight", "event_id", eventID)
			metrics.WebhookEventsTotal.WithLabelValues(env.Event, "in_flight").Inc()
			return nil
		}
		row = claimed
	}

	ref, procErr := h.dispatch(ctx, kind, env)

	// Malformed events and missing entities are unrecoverable: a gateway
	// retry would hit the same wall, so they count as processed.
	if procErr != nil && (errors.Is(procErr, settlement.ErrMalformedEvent) || errors.Is(procErr, settlement.ErrUnknownEntity) || errors.Is(procErr, ErrMalformedPayload)) {
		log.Warnw("webhook_event_unprocessable", "event_id", eventID, "error", procErr.Error())
		metrics.WebhookEventsTotal.WithLabelValues(env.Event, "unprocessable").Inc()
		procErr = nil
	}

	if procErr == nil {
		if row != nil {
			if err := h.idem.MarkProcessed(ctx, row.ID); err != nil {
				log.Errorw("webhook_mark_processed_failed", "event_id", eventID, "error", err.Error())
			}
		}
		metrics.WebhookEventsTotal.WithLabelValues(env.Event, "processed").Inc()
		return nil
	}

	log.Errorw("webhook_event_failed", "event_id", eventID, "error", procErr.Error())
	metrics.WebhookEventsTotal.WithLabelValues(env.Event, "failed").Inc()
	if row != nil {
		if err := h.idem.MarkFailed(ctx, row.ID, procErr); err != nil {
			log.Errorw("webhook_mark_failed_failed", "event_id", eventID, "error", err.Error())
		}
	}
	if kind.IsCharge() && ref.bookingID != "" {
		rowID := ""
		if row != nil {
			rowID = row.ID
		}
		h.queue.Enqueue(ctx, ref.bookingID, ref.reference, rowID, procErr)
	}
	return nil
}

// reconcileRef carries enough of the charge context to enqueue a
// reconciliation entry when the handler fails after claiming.
type reconcileRef struct {
	bookingID string
	reference string
}

func (h *Handler) dispatch(ctx context.Context, kind EventKind, env *envelope) (reconcileRef, error) {
	switch kind {
	case EventChargeSucceeded, EventChargeFailed:
		ev, err := parseCharge(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		ref := reconcileRef{reference: ev.Reference}
		if ev.Target.Kind == settlement.TargetBooking {
			ref.bookingID = ev.Target.BookingID
		}
		if kind == EventChargeSucceeded {
			return ref, h.settle.SettleCharge(ctx, ev)
		}
		return ref, h.settle.FailCharge(ctx, ev)

	case EventTransferSucceeded, EventTransferFailed, EventTransferReversed:
		ev, err := parseTransfer(env.Data, kind)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.SettleTransfer(ctx, ev)

	case EventRefundProcessed:
		ev, err := parseRefund(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.SettleRefund(ctx, ev)

	case EventSubscriptionCreated:
		ev, err := parseSubscription(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.SubscriptionCreated(ctx, ev)
	case EventSubscriptionDisabled:
		ev, err := parseSubscription(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.SubscriptionDisabled(ctx, ev)
	case EventSubscriptionEnabled:
		ev, err := parseSubscription(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.SubscriptionEnabled(ctx, ev)
	case EventSubscriptionNotRenewing:
		ev, err := parseSubscription(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.SubscriptionNotRenewing(ctx, ev)

	case EventInvoiceCreated:
		ev, err := parseInvoice(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.InvoiceCreated(ctx, ev)
	case EventInvoiceUpdated:
		ev, err := parseInvoice(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.InvoiceUpdated(ctx, ev)
	case EventInvoicePaymentFailed:
		ev, err := parseInvoice(env.Data)
		if err != nil {
			return reconcileRef{}, err
		}
		return reconcileRef{}, h.settle.InvoicePaymentFailed(ctx, ev)
	}

	return reconcileRef{}, fmt.Errorf("no dispatcher for event kind %d", kind)
}

// Redrive re-runs settlement for a queued charge failure from the stored
// webhook payload, implementing reconciliation.Redriver.
func (h *Handler) Redrive(ctx context.Context, entry *models.ReconciliationEntry) error {
	if entry.WebhookEventID == "" {
		return errors.New("entry has no stored webhook event")
	}
	row, err := h.idem.Get(ctx, entry.WebhookEventID)
	if err != nil {
		return fmt.Errorf("failed to load webhook event: %w", err)
	}
	env, err := parseEnvelope(row.Payload)
	if err != nil {
		return err
	}
	ev, err := parseCharge(env.Data)
	if err != nil {
		return err
	}
	if err := h.settle.SettleCharge(ctx, ev); err != nil {
		return err
	}
	if err := h.idem.MarkProcessed(ctx, row.ID); err != nil {
		logctx.FromCtx(ctx, h.Logger).Errorw("redrive_mark_processed_failed", "event_id", row.EventID, "error", err.Error())
	}
	return nil
}
