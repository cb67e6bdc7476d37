package app

import (
	"time"

	"github.com/bookora/payments/internal/app/api/server"
	"github.com/bookora/payments/internal/app/service/idempotency"
	"github.com/bookora/payments/internal/app/service/ledger"
	"github.com/bookora/payments/internal/app/service/notify"
	"github.com/bookora/payments/internal/app/service/reconciliation"
	"github.com/bookora/payments/internal/app/service/settlement"
	"github.com/bookora/payments/internal/app/service/wallet"
	"github.com/bookora/payments/internal/app/service/webhook"
	"github.com/bookora/payments/internal/platform/db"
	"github.com/bookora/payments/internal/platform/paystack"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	idempotency.Module,
	webhook.Module,
	settlement.Module,
	ledger.Module,
	wallet.Module,
	notify.Module,
	reconciliation.Module,
	paystack.Module,
	// Interface bindings: the gateway client serves settlement's outbound
	// calls, and the webhook handler re-drives queued reconciliation entries.
	fx.Provide(func(c *paystack.Client) settlement.Gateway { return c }),
	fx.Provide(func(h *webhook.Handler) reconciliation.Redriver { return h }),
)
