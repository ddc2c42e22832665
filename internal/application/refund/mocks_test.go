package refund

import (
	"context"
	"time"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockRefundRepository is a mock implementation of refund.Repository
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Refund), args.Error(1)
}

func (m *MockRefundRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Refund), args.Error(1)
}

func (m *MockRefundRepository) FindByIdempotencyKey(ctx context.Context, key string) (*refund.Refund, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Refund), args.Error(1)
}

func (m *MockRefundRepository) FindInFlightByFingerprint(ctx context.Context, saleID uuid.UUID, fingerprint string) (*refund.Refund, error) {
	args := m.Called(ctx, saleID, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Refund), args.Error(1)
}

func (m *MockRefundRepository) FindAll(ctx context.Context, filter refund.Filter) ([]refund.Refund, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]refund.Refund), args.Get(1).(int64), args.Error(2)
}

func (m *MockRefundRepository) Create(ctx context.Context, r *refund.Refund) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRefundRepository) SaveStatus(ctx context.Context, r *refund.Refund) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// MockVoucherRepository is a mock implementation of voucher.Repository
type MockVoucherRepository struct {
	mock.Mock
}

func (m *MockVoucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voucher.Voucher), args.Error(1)
}

func (m *MockVoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voucher.Voucher), args.Error(1)
}

func (m *MockVoucherRepository) FindAll(ctx context.Context, filter voucher.Filter) ([]voucher.Voucher, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]voucher.Voucher), args.Get(1).(int64), args.Error(2)
}

func (m *MockVoucherRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockVoucherRepository) Create(ctx context.Context, v *voucher.Voucher) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockVoucherRepository) Redeem(ctx context.Context, req voucher.Redemption) (*voucher.UsageRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voucher.UsageRecord), args.Error(1)
}

func (m *MockVoucherRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVoucherRepository) Cancel(ctx context.Context, v *voucher.Voucher) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockVoucherRepository) History(ctx context.Context, voucherID uuid.UUID) ([]voucher.UsageRecord, error) {
	args := m.Called(ctx, voucherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]voucher.UsageRecord), args.Error(1)
}

func (m *MockVoucherRepository) ListBatch(ctx context.Context, afterID uuid.UUID, limit int) ([]voucher.Voucher, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]voucher.Voucher), args.Error(1)
}

// MockSaleReader is a mock implementation of sale.Reader
type MockSaleReader struct {
	mock.Mock
}

func (m *MockSaleReader) FindSale(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleReader) RefundedQuantities(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockSaleReader) RefundedValue(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, saleID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockStockAdjuster is a mock implementation of sale.StockAdjuster
type MockStockAdjuster struct {
	mock.Mock
}

func (m *MockStockAdjuster) IncreaseStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal, reference string) error {
	args := m.Called(ctx, productID, quantity, reference)
	return args.Error(0)
}

// MockFinancialLedger is a mock implementation of sale.FinancialLedger
type MockFinancialLedger struct {
	mock.Mock
}

func (m *MockFinancialLedger) RecordReversal(ctx context.Context, reversal sale.Reversal) error {
	args := m.Called(ctx, reversal)
	return args.Error(0)
}

// MockNumberSequence is a mock implementation of refund.NumberSequence
type MockNumberSequence struct {
	mock.Mock
}

func (m *MockNumberSequence) Next(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

// MockCodeGenerator is a mock implementation of voucher.CodeGenerator
type MockCodeGenerator struct {
	mock.Mock
}

func (m *MockCodeGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, key, resourceID string, ttl time.Duration) error {
	args := m.Called(ctx, key, resourceID, ttl)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
