package persistence

import (
	"context"

	apprefund "github.com/erp/refunds/internal/application/refund"
	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/voucher"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apprefund.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Refunds() refund.Repository {
	return NewGormRefundRepository(r.tx)
}

func (r *gormTransactionalRepositories) Vouchers() voucher.Repository {
	return NewGormVoucherRepository(r.tx)
}

// Sales locks the sale row so concurrent refunds against it are serialized
func (r *gormTransactionalRepositories) Sales() sale.Reader {
	return newLockingSaleReader(r.tx)
}

func (r *gormTransactionalRepositories) Stock() sale.StockAdjuster {
	return NewGormStockAdjuster(r.tx)
}

func (r *gormTransactionalRepositories) Ledger() sale.FinancialLedger {
	return NewGormFinancialLedger(r.tx)
}

func (r *gormTransactionalRepositories) Sequences() refund.NumberSequence {
	return NewGormSequenceRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ apprefund.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ apprefund.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
