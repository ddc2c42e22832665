package persistence

import (
	"context"
	"time"

	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStockAdjuster implements sale.StockAdjuster using GORM
type GormStockAdjuster struct {
	db *gorm.DB
}

// NewGormStockAdjuster creates a new GormStockAdjuster
func NewGormStockAdjuster(db *gorm.DB) *GormStockAdjuster {
	return &GormStockAdjuster{db: db}
}

// IncreaseStock adds quantity to a product's on-hand stock. The product row
// must exist; returned goods for unknown products are rejected.
func (a *GormStockAdjuster) IncreaseStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal, reference string) error {
	if !quantity.IsPositive() {
		return shared.NewValidationError("Restock quantity must be positive")
	}

	result := a.db.WithContext(ctx).
		Model(&models.ProductStockModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", quantity),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("Product stock", productID)
	}
	return nil
}

// Ensure GormStockAdjuster implements sale.StockAdjuster
var _ sale.StockAdjuster = (*GormStockAdjuster)(nil)
