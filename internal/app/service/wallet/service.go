package wallet

import (
	"context"
	"fmt"

	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/tool"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service mutates wallet balances. Every mutation is a single atomic SQL
// statement; concurrent settlements for the same user must not lose updates.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Credit adds amount to the user's wallet, creating the wallet row if it does
// not exist yet. Upsert keeps the whole operation one statement.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) error {
	if tx == nil {
		tx = s.db
	}
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return fmt.Errorf("credit amount must be positive, got %s", amount)
	}
	wallet := &models.Wallet{
		ID:      tool.GenerateUUIDV7(),
		UserID:  userID,
		Balance: amount,
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"balance": gorm.Expr("wallets.balance + ?", amount)}),
	}).Create(wallet).Error
	if err != nil {
		return fmt.Errorf("failed to credit wallet for user %s: %w", userID, err)
	}
	return nil
}

// Debit subtracts amount from an existing wallet. The balance guard lives in
// the statement itself; zero rows affected means missing wallet or
// insufficient funds.
func (s *Service) Debit(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) error {
	if tx == nil {
		tx = s.db
	}
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return fmt.Errorf("debit amount must be positive, got %s", amount)
	}
	res := tx.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to debit wallet for user %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("insufficient wallet balance for user %s", userID)
	}
	return nil
}

// Balance reads the current balance; a missing wallet reads as zero.
func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var w models.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to read wallet for user %s: %w", userID, err)
	}
	return w.Balance, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
