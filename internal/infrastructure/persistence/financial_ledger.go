package persistence

import (
	"context"
	"errors"

	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFinancialLedger implements sale.FinancialLedger using GORM
type GormFinancialLedger struct {
	db *gorm.DB
}

// NewGormFinancialLedger creates a new GormFinancialLedger
func NewGormFinancialLedger(db *gorm.DB) *GormFinancialLedger {
	return &GormFinancialLedger{db: db}
}

// RecordReversal inserts a reversal row. A refund can be reversed only once.
func (l *GormFinancialLedger) RecordReversal(ctx context.Context, reversal sale.Reversal) error {
	if reversal.ID == uuid.Nil {
		reversal.ID = uuid.New()
	}
	if err := l.db.WithContext(ctx).Create(models.LedgerReversalModelFromDomain(reversal)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("Refund %s has already been reversed", reversal.RefundID)
		}
		return err
	}
	return nil
}

// Ensure GormFinancialLedger implements sale.FinancialLedger
var _ sale.FinancialLedger = (*GormFinancialLedger)(nil)
