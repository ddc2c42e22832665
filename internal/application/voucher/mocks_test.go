package voucher

import (
	"context"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

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
	return m.Called(ctx, v).Error(0)
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
	return m.Called(ctx, v).Error(0)
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

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}
