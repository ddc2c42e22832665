package refund

import (
	"context"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/voucher"
)

// TransactionScope runs a unit of work inside one database transaction.
// If fn returns an error every write made through the repositories is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to every store a refund touches,
// all bound to the same transaction.
type TransactionalRepositories interface {
	Refunds() refund.Repository
	Vouchers() voucher.Repository
	Sales() sale.Reader
	Stock() sale.StockAdjuster
	Ledger() sale.FinancialLedger
	Sequences() refund.NumberSequence
}

// NoOpTransactionScope runs fn against fixed repositories without a transaction.
// Used by tests and single-process setups that provide their own atomicity.
type NoOpTransactionScope struct {
	refunds   refund.Repository
	vouchers  voucher.Repository
	sales     sale.Reader
	stock     sale.StockAdjuster
	ledger    sale.FinancialLedger
	sequences refund.NumberSequence
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	refunds refund.Repository,
	vouchers voucher.Repository,
	sales sale.Reader,
	stock sale.StockAdjuster,
	ledger sale.FinancialLedger,
	sequences refund.NumberSequence,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		refunds:   refunds,
		vouchers:  vouchers,
		sales:     sales,
		stock:     stock,
		ledger:    ledger,
		sequences: sequences,
	}
}

// Execute runs fn directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Refunds() refund.Repository { return s.refunds }
func (s *NoOpTransactionScope) Vouchers() voucher.Repository { return s.vouchers }
func (s *NoOpTransactionScope) Sales() sale.Reader { return s.sales }
func (s *NoOpTransactionScope) Stock() sale.StockAdjuster { return s.stock }
func (s *NoOpTransactionScope) Ledger() sale.FinancialLedger { return s.ledger }
func (s *NoOpTransactionScope) Sequences() refund.NumberSequence { return s.sequences }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
