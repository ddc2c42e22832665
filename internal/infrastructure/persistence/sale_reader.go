package persistence

import (
	"context"
	"errors"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSaleReader implements sale.Reader using GORM
type GormSaleReader struct {
	db   *gorm.DB
	lock bool
}

// NewGormSaleReader creates a new GormSaleReader
func NewGormSaleReader(db *gorm.DB) *GormSaleReader {
	return &GormSaleReader{db: db}
}

// newLockingSaleReader reads sales with a row lock, so refunds raised against
// the same sale inside concurrent transactions see each other's lines.
func newLockingSaleReader(tx *gorm.DB) *GormSaleReader {
	return &GormSaleReader{db: tx, lock: true}
}

// FindSale finds a sale with its lines
func (r *GormSaleReader) FindSale(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	query := r.db.WithContext(ctx)
	if r.lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model models.SaleModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", id).
		Find(&model.Items).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// RefundedQuantities sums refunded quantities per sale line, over refunds that are not cancelled
func (r *GormSaleReader) RefundedQuantities(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []struct {
		SaleItemID uuid.UUID
		Quantity   decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Table("refund_items AS ri").
		Select("ri.sale_item_id AS sale_item_id, SUM(ri.quantity) AS quantity").
		Joins("JOIN refunds AS r ON r.id = ri.refund_id").
		Where("r.sale_id = ? AND r.status <> ? AND ri.sale_item_id IS NOT NULL", saleID, string(refund.StatusCancelled)).
		Group("ri.sale_item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	quantities := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		quantities[row.SaleItemID] = row.Quantity
	}
	return quantities, nil
}

// RefundedValue sums the value of refunds against a sale that are not cancelled
func (r *GormSaleReader) RefundedValue(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&models.RefundModel{}).
		Select("SUM(total_refund_value)").
		Where("sale_id = ? AND status <> ?", saleID, string(refund.StatusCancelled)).
		Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// Ensure GormSaleReader implements sale.Reader
var _ sale.Reader = (*GormSaleReader)(nil)
