package voucher

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageRecord is an immutable entry in a voucher's redemption history
type UsageRecord struct {
	ID               uuid.UUID
	VoucherID        uuid.UUID
	SaleID           uuid.UUID
	Amount           decimal.Decimal
	BalanceAfter     decimal.Decimal
	Actor            uuid.UUID
	CustomerDocument string
	Sequence         int // commit order among the voucher's redemptions
	CreatedAt        time.Time
}

// NewUsageRecord creates a usage record
func NewUsageRecord(voucherID, saleID uuid.UUID, amount, balanceAfter decimal.Decimal, actor uuid.UUID, document string, at time.Time) *UsageRecord {
	return &UsageRecord{
		ID:               uuid.New(),
		VoucherID:        voucherID,
		SaleID:           saleID,
		Amount:           amount,
		BalanceAfter:     balanceAfter,
		Actor:            actor,
		CustomerDocument: document,
		CreatedAt:        at,
	}
}

// BalanceBefore returns the balance the redemption started from
func (r *UsageRecord) BalanceBefore() decimal.Decimal {
	return r.BalanceAfter.Add(r.Amount)
}
