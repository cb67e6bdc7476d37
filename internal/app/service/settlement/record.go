package settlement

import (
	"context"
	"fmt"

	"github.com/bookora/payments/internal/app/service/notify"
	"github.com/bookora/payments/internal/models"
	"github.com/bookora/payments/pkg/tool"
	"github.com/bookora/payments/pkg/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// recordPayment appends one audit row for a monetary movement.
func recordPayment(ctx context.Context, tx *gorm.DB, ev *ChargeEvent, bookingID *string, txType string, status types.PaymentTransactionStatus) error {
	row := &models.PaymentTransaction{
		ID:              tool.GenerateUUIDV7(),
		BookingID:       bookingID,
		Reference:       ev.Reference,
		Amount:          ev.Amount,
		Fees:            ev.Fees,
		NetAmount:       ev.Amount.Sub(ev.Fees),
		Status:          status,
		Provider:        types.PaymentProviderPaystack,
		TransactionType: txType,
		Metadata:        ev.Raw,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to record payment transaction: %w", err)
	}
	return nil
}

// saveAuthorization persists a reusable card token. The unique signature
// index makes re-saving the same card a no-op.
func saveAuthorization(ctx context.Context, tx *gorm.DB, userID string, auth *CardAuthorization) error {
	if auth == nil || !auth.Reusable || auth.Signature == "" {
		return nil
	}
	row := &models.PaymentAuthorization{
		ID:                tool.GenerateUUIDV7(),
		UserID:            userID,
		AuthorizationCode: auth.AuthorizationCode,
		CardType:          auth.CardType,
		Last4:             auth.Last4,
		ExpMonth:          auth.ExpMonth,
		ExpYear:           auth.ExpYear,
		Bank:              auth.Bank,
		Signature:         auth.Signature,
		Reusable:          auth.Reusable,
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signature"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save payment authorization: %w", err)
	}
	return nil
}

// addTimelineEvent appends a customer-visible activity entry on a booking.
func addTimelineEvent(ctx context.Context, tx *gorm.DB, bookingID, kind, message string) error {
	row := &models.BookingTimelineEvent{
		ID:        tool.GenerateUUIDV7(),
		BookingID: bookingID,
		Kind:      kind,
		Message:   message,
	}
	return tx.WithContext(ctx).Create(row).Error
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// commissionOn applies rate (a percentage) to amount, rounded to cents.
func commissionOn(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

func notification(title, body, userID, bookingID string) *notify.Notification {
	n := &notify.Notification{
		UserID: userID,
		Title:  title,
		Body:   body,
	}
	if bookingID != "" {
		n.Data = map[string]any{"booking_id": bookingID}
		n.URL = "/bookings/" + bookingID
	}
	return n
}
