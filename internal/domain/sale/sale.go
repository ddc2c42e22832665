// Package sale describes the parts of the point-of-sale domain the refund
// ledger reads and writes through: sales and their lines, product stock and
// the financial ledger. These are owned elsewhere; the ledger only sees them
// through the interfaces declared here.
package sale

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a sale
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsRefundable reports whether refunds may be raised against a sale in this status
func (s Status) IsRefundable() bool {
	return s == StatusPaid || s == StatusCompleted
}

// Sale is a read-only view of a completed checkout
type Sale struct {
	ID           uuid.UUID
	Number       string
	Status       Status
	Total        decimal.Decimal
	CustomerID   *uuid.UUID
	CustomerName string
	Items        []Item
	CreatedAt    time.Time
}

// Item is one sold line
type Item struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Item looks up a line by ID
func (s *Sale) Item(id uuid.UUID) (*Item, bool) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// Reader reads sales together with what has already been refunded against them.
// Refunded figures only count refunds that are not cancelled.
type Reader interface {
	FindSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	RefundedQuantities(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	RefundedValue(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error)
}

// StockAdjuster increments on-hand stock for a product
type StockAdjuster interface {
	IncreaseStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal, reference string) error
}

// Reversal is a monetary reversal posted to the financial ledger
type Reversal struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	RefundID  uuid.UUID
	Amount    decimal.Decimal
	Method    string
	Actor     uuid.UUID
	CreatedAt time.Time
}

// FinancialLedger records monetary reversals for cash and original-method refunds
type FinancialLedger interface {
	RecordReversal(ctx context.Context, reversal Reversal) error
}
