package settlement

import (
	"context"
	"fmt"

	"github.com/bookora/payments/internal/app/service/ledger"
	"github.com/bookora/payments/internal/app/service/notify"
	"github.com/bookora/payments/internal/app/service/wallet"
	"github.com/bookora/payments/internal/platform/paystack"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/logctx"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Gateway is the outbound slice of the payment gateway the settlement flows
// need: creating customers and starting recurring subscriptions from a saved
// authorization.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, firstName, lastName, phone string) (*paystack.Customer, error)
	CreateSubscription(ctx context.Context, customerCode, planCode, authorizationCode string) (*paystack.Subscription, error)
}

// Service applies verified, deduplicated gateway events to domain state.
// Every flow is idempotent against redelivery: the first check is always the
// current state of the target entity.
type Service struct {
	db       *gorm.DB
	cfg      *config.Config
	log      *zap.SugaredLogger
	ledger   *ledger.Service
	wallet   *wallet.Service
	notifier notify.Notifier
	tracker  notify.Tracker
	gateway  Gateway
}

func New(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger, led *ledger.Service, wal *wallet.Service, notifier notify.Notifier, tracker notify.Tracker, gateway Gateway) *Service {
	return &Service{
		db:       db,
		cfg:      cfg,
		log:      log,
		ledger:   led,
		wallet:   wal,
		notifier: notifier,
		tracker:  tracker,
		gateway:  gateway,
	}
}

// SettleCharge routes a successful charge to the flow matching its target.
func (s *Service) SettleCharge(ctx context.Context, ev *ChargeEvent) error {
	switch ev.Target.Kind {
	case TargetBooking:
		if ev.Target.AdditionalChargeID != "" {
			return s.settleAdditionalCharge(ctx, ev)
		}
		return s.settleBooking(ctx, ev)
	case TargetCustomOffer:
		return s.settleCustomOffer(ctx, ev)
	case TargetWalletTopup:
		return s.settleWalletTopup(ctx, ev)
	case TargetGiftCardOrder:
		return s.settleGiftCardOrder(ctx, ev)
	case TargetMembershipOrder:
		return s.settleMembershipOrder(ctx, ev)
	case TargetProviderSubscriptionOrder:
		return s.settleProviderSubscriptionOrder(ctx, ev)
	}
	return fmt.Errorf("%w: target kind %s", ErrMalformedEvent, ev.Target.Kind)
}

// FailCharge routes a failed charge to the matching failure flow.
func (s *Service) FailCharge(ctx context.Context, ev *ChargeEvent) error {
	switch ev.Target.Kind {
	case TargetBooking:
		if ev.Target.AdditionalChargeID != "" {
			return s.failAdditionalCharge(ctx, ev)
		}
		return s.failBooking(ctx, ev)
	case TargetCustomOffer:
		return s.failCustomOffer(ctx, ev)
	case TargetWalletTopup:
		return s.failWalletTopup(ctx, ev)
	case TargetGiftCardOrder:
		return s.failGiftCardOrder(ctx, ev)
	case TargetMembershipOrder:
		return s.failMembershipOrder(ctx, ev)
	case TargetProviderSubscriptionOrder:
		return s.failProviderSubscriptionOrder(ctx, ev)
	}
	return fmt.Errorf("%w: target kind %s", ErrMalformedEvent, ev.Target.Kind)
}

// bestEffort runs a side effect that must never fail the settlement: outbound
// notifications, analytics, conversation messages.
func (s *Service) bestEffort(ctx context.Context, op string, fn func() error) {
	if err := fn(); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("settlement_side_effect_failed", "op", op, "error", err.Error())
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
