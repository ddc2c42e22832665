// Package voucher exposes store-credit operations: lookup, redemption,
// manual cancellation, the expiration sweep and the balance audit.
package voucher

import (
	"context"
	"errors"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service handles voucher lookups, redemptions and cancellations
type Service struct {
	vouchers  voucher.Repository
	publisher shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a voucher service
func NewService(vouchers voucher.Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		vouchers: vouchers,
		logger:   log,
		now:      time.Now,
	}
}

// SetEventPublisher sets the publisher for voucher events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *Service) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// CheckVoucher looks a voucher up by its code and reports whether it can be spent now
func (s *Service) CheckVoucher(ctx context.Context, code string) (*CheckVoucherResponse, error) {
	v, err := s.vouchers.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Voucher", code)
		}
		return nil, err
	}
	return &CheckVoucherResponse{
		Voucher: ToVoucherResponse(v),
		Usable:  v.IsUsable(s.now()),
	}, nil
}

// GetVoucher returns a voucher by ID
func (s *Service) GetVoucher(ctx context.Context, id uuid.UUID) (*VoucherResponse, error) {
	v, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToVoucherResponse(v)
	return &response, nil
}

// ListVouchers returns vouchers filtered by status and holder
func (s *Service) ListVouchers(ctx context.Context, in ListVouchersFilter) (*shared.Paginated[VoucherResponse], error) {
	paging := shared.Filter{
		Page:     in.Page,
		PageSize: in.PageSize,
		OrderBy:  in.OrderBy,
		OrderDir: in.OrderDir,
	}.Normalize(shared.MaxPageSize)

	filter := voucher.Filter{
		CustomerID:       in.CustomerID,
		CustomerDocument: in.CustomerDocument,
		Page:             paging.Page,
		PageSize:         paging.PageSize,
		OrderBy:          paging.OrderBy,
		OrderDir:         paging.OrderDir,
	}
	if in.Status != "" {
		status := voucher.Status(in.Status)
		if !status.IsValid() {
			return nil, shared.NewValidationError("Invalid voucher status: %s", in.Status)
		}
		filter.Status = &status
	}

	vouchers, total, err := s.vouchers.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToVoucherResponses(vouchers), total, paging.Page, paging.PageSize)
	return &page, nil
}

// UseVoucher spends amount from a voucher against a new sale.
//
// The checks run here give early, precise errors; the repository repeats them
// inside the conditional write that performs the decrement, which is what
// actually prevents double spending.
func (s *Service) UseVoucher(ctx context.Context, id uuid.UUID, req UseVoucherRequest, actor uuid.UUID) (*UseVoucherResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, shared.NewValidationError("Redemption amount must be positive")
	}
	if req.SaleID == uuid.Nil {
		return nil, shared.NewValidationError("Sale ID cannot be empty")
	}

	v, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := v.CheckHolder(req.CustomerDocument); err != nil {
		return nil, err
	}
	if err := v.CheckRedeemable(req.Amount, now); err != nil {
		return nil, err
	}

	record, err := s.vouchers.Redeem(ctx, voucher.Redemption{
		VoucherID:        v.ID,
		SaleID:           req.SaleID,
		Amount:           req.Amount,
		Actor:            actor,
		CustomerDocument: req.CustomerDocument,
		At:               now,
	})
	if err != nil {
		return nil, err
	}

	v.CurrentValue = record.BalanceAfter
	exhausted := record.BalanceAfter.IsZero()
	if exhausted {
		v.Status = voucher.StatusUsed
	}

	logger.WithLogger(ctx, s.logger).Info("Voucher redeemed",
		zap.String("voucher_code", v.Code),
		zap.String("sale_id", req.SaleID.String()),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("balance_after", record.BalanceAfter.StringFixed(2)),
	)
	if s.metrics != nil {
		s.metrics.RecordVoucherRedeemed(ctx, req.Amount, exhausted)
	}
	s.publish(ctx, voucher.NewRedeemedEvent(v, record))

	return &UseVoucherResponse{
		VoucherID:    v.ID,
		Code:         v.Code,
		UsageID:      record.ID,
		Amount:       record.Amount,
		BalanceAfter: record.BalanceAfter,
		Status:       string(v.Status),
	}, nil
}

// CancelVoucher withdraws an active voucher
func (s *Service) CancelVoucher(ctx context.Context, id, actor uuid.UUID, reason string) (*VoucherResponse, error) {
	v, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.Cancel(actor, reason); err != nil {
		return nil, err
	}
	if err := s.vouchers.Cancel(ctx, v); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Voucher cancelled",
		zap.String("voucher_code", v.Code),
		zap.String("remaining_balance", v.CurrentValue.StringFixed(2)),
		zap.String("reason", reason),
	)
	events := v.GetDomainEvents()
	v.ClearDomainEvents()
	s.publish(ctx, events...)

	response := ToVoucherResponse(v)
	return &response, nil
}

// FetchVoucherHistory returns a voucher's redemptions, oldest first
func (s *Service) FetchVoucherHistory(ctx context.Context, id uuid.UUID) ([]UsageRecordResponse, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.vouchers.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToUsageRecordResponses(records), nil
}

func (s *Service) find(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	v, err := s.vouchers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Voucher", id)
		}
		return nil, err
	}
	return v, nil
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish voucher events", zap.Error(err))
	}
}
