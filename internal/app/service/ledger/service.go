package ledger

import (
	"context"
	"fmt"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/config"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// Split is the commission breakdown for a paid booking. The parts conserve
// the total: Commission + ProviderEarnings + ServiceFee + Tip + Tax +
// TravelFee == TotalAmount.
type Split struct {
	CommissionBase     decimal.Decimal
	PlatformCommission decimal.Decimal
	ProviderEarnings   decimal.Decimal
	Rate               decimal.Decimal
}

// Service appends rows to the finance ledger and resolves the commission
// rate. Ledger rows are insert-only; corrections are new rows.
type Service struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.SugaredLogger
}

func New(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, cfg: cfg, log: log}
}

// ActiveCommissionRate returns the rate from the most recent active settings
// row, falling back to the configured default. A disabled row means zero
// commission.
func (s *Service) ActiveCommissionRate(ctx context.Context) decimal.Decimal {
	var setting models.CommissionSetting
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at desc").
		First(&setting).Error
	if err == nil {
		if !setting.Enabled {
			return decimal.Zero
		}
		return setting.Rate
	}
	if err != gorm.ErrRecordNotFound {
		s.log.Warnw("commission_setting_lookup_failed", "error", err.Error())
	}
	if !s.cfg.Commission.Enabled {
		return decimal.Zero
	}
	return decimal.NewFromFloat(s.cfg.Commission.DefaultRate)
}

// ComputeSplit derives the commission split for a booking. Tip, tax, travel
// fee and service fee are excluded from the commissionable base; the provider
// keeps travel fee and tip on top of their base earnings.
func ComputeSplit(b *models.Booking, rate decimal.Decimal) Split {
	base := b.TotalAmount.
		Sub(b.TipAmount).
		Sub(b.TaxAmount).
		Sub(b.TravelFee).
		Sub(b.ServiceFee)
	commission := base.Mul(rate).Div(oneHundred).Round(2)
	earnings := base.Sub(commission).Add(b.TravelFee).Add(b.TipAmount)
	return Split{
		CommissionBase:     base,
		PlatformCommission: commission,
		ProviderEarnings:   earnings,
		Rate:               rate,
	}
}

// Append inserts one finance ledger row.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, row *models.FinanceTransaction) error {
	if tx == nil {
		tx = s.db
	}
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to append finance transaction: %w", err)
	}
	return nil
}

// AppendBookingSettlement emits the full row set for a successful booking
// payment in one shot: payment, provider earnings, service fee, and the
// conditional tip/tax/travel rows.
func (s *Service) AppendBookingSettlement(ctx context.Context, tx *gorm.DB, b *models.Booking, split Split, fees decimal.Decimal) error {
	rows := []*models.FinanceTransaction{
		{
			BookingID:       &b.ID,
			ProviderID:      &b.ProviderID,
			TransactionType: types.FinanceTxPayment,
			Amount:          b.TotalAmount,
			Fees:            fees,
			Commission:      split.PlatformCommission,
			Net:             b.TotalAmount.Sub(split.PlatformCommission),
			Description:     "booking payment",
		},
		{
			BookingID:       &b.ID,
			ProviderID:      &b.ProviderID,
			TransactionType: types.FinanceTxProviderEarnings,
			Amount:          split.ProviderEarnings,
			Net:             split.ProviderEarnings,
			Description:     "provider earnings",
		},
	}
	if b.ServiceFee.IsPositive() {
		rows = append(rows, &models.FinanceTransaction{
			BookingID:       &b.ID,
			ProviderID:      &b.ProviderID,
			TransactionType: types.FinanceTxServiceFee,
			Amount:          b.ServiceFee,
			Net:             b.ServiceFee,
			Description:     "service fee",
		})
	}
	if b.TipAmount.IsPositive() {
		rows = append(rows, &models.FinanceTransaction{
			BookingID:       &b.ID,
			ProviderID:      &b.ProviderID,
			TransactionType: types.FinanceTxTip,
			Amount:          b.TipAmount,
			Net:             b.TipAmount,
			Description:     "tip",
		})
	}
	if b.TaxAmount.IsPositive() {
		rows = append(rows, &models.FinanceTransaction{
			BookingID:       &b.ID,
			ProviderID:      &b.ProviderID,
			TransactionType: types.FinanceTxTax,
			Amount:          b.TaxAmount,
			Net:             b.TaxAmount,
			Description:     "tax",
		})
	}
	if b.TravelFee.IsPositive() {
		rows = append(rows, &models.FinanceTransaction{
			BookingID:       &b.ID,
			ProviderID:      &b.ProviderID,
			TransactionType: types.FinanceTxTravelFee,
			Amount:          b.TravelFee,
			Net:             b.TravelFee,
			Description:     "travel fee",
		})
	}
	for _, row := range rows {
		if err := s.Append(ctx, tx, row); err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(New),
)
