package models

import (
	"time"

	"github.com/erp/refunds/internal/domain/sale"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleModel maps the point-of-sale sales table. The ledger only reads it.
type SaleModel struct {
	BaseModel
	SaleNumber   string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status       string          `gorm:"type:varchar(20);not null"`
	Total        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CustomerID   *uuid.UUID      `gorm:"type:uuid;index"`
	CustomerName string          `gorm:"type:varchar(200)"`
	Items        []SaleItemModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale
func (m *SaleModel) ToDomain() *sale.Sale {
	s := &sale.Sale{
		ID:           m.ID,
		Number:       m.SaleNumber,
		Status:       sale.Status(m.Status),
		Total:        m.Total,
		CustomerID:   m.CustomerID,
		CustomerName: m.CustomerName,
		CreatedAt:    m.CreatedAt,
		Items:        make([]sale.Item, len(m.Items)),
	}
	for i, item := range m.Items {
		s.Items[i] = sale.Item{
			ID:          item.ID,
			SaleID:      item.SaleID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	return s
}

// SaleItemModel maps one sold line.
type SaleItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (SaleItemModel) TableName() string {
	return "sale_items"
}

// ProductStockModel holds on-hand stock per product.
type ProductStockModel struct {
	ProductID     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductName   string          `gorm:"type:varchar(200)"`
	StockQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductStockModel) TableName() string {
	return "product_stocks"
}

// LedgerReversalModel is a monetary reversal posted for a cash or original-method refund.
type LedgerReversalModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	RefundID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method    string          `gorm:"type:varchar(20);not null"`
	Actor     uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerReversalModel) TableName() string {
	return "ledger_reversals"
}

// LedgerReversalModelFromDomain creates a persistence model from a domain Reversal
func LedgerReversalModelFromDomain(r sale.Reversal) *LedgerReversalModel {
	return &LedgerReversalModel{
		ID:        r.ID,
		SaleID:    r.SaleID,
		RefundID:  r.RefundID,
		Amount:    r.Amount,
		Method:    r.Method,
		Actor:     r.Actor,
		CreatedAt: r.CreatedAt,
	}
}

// SequenceModel is a named counter used for human-readable document numbers.
type SequenceModel struct {
	Name      string    `gorm:"type:varchar(50);primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceModel) TableName() string {
	return "number_sequences"
}

// All lists every model owned by the ledger, in dependency order
func All() []any {
	return []any{
		&SaleModel{},
		&SaleItemModel{},
		&ProductStockModel{},
		&RefundModel{},
		&RefundItemModel{},
		&VoucherModel{},
		&VoucherUsageModel{},
		&LedgerReversalModel{},
		&SequenceModel{},
	}
}
