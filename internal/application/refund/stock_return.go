package refund

import (
	"context"
	"fmt"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/sale"
	"go.uber.org/zap"
)

// StockReturnCoordinator puts returned goods back on the shelf during completion.
//
// It must be called with a StockAdjuster bound to the completion transaction:
// the first failed increment aborts the whole completion, so no partial stock
// change is ever committed.
type StockReturnCoordinator struct {
	logger *zap.Logger
}

// NewStockReturnCoordinator creates a StockReturnCoordinator
func NewStockReturnCoordinator(logger *zap.Logger) *StockReturnCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockReturnCoordinator{logger: logger}
}

// Apply increments stock for every line flagged return_to_stock and returns how many lines were restocked
func (c *StockReturnCoordinator) Apply(ctx context.Context, adjuster sale.StockAdjuster, r *refund.Refund) (int, error) {
	items := r.ItemsToRestock()
	for _, item := range items {
		if err := adjuster.IncreaseStock(ctx, item.ProductID, item.Quantity, r.RefundNumber); err != nil {
			c.logger.Warn("Stock increment failed, aborting refund completion",
				zap.String("refund_number", r.RefundNumber),
				zap.String("product_id", item.ProductID.String()),
				zap.String("quantity", item.Quantity.String()),
				zap.Error(err),
			)
			return 0, fmt.Errorf("restock %s for refund %s: %w", item.ProductName, r.RefundNumber, err)
		}
	}
	return len(items), nil
}
