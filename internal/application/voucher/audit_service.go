package voucher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultAuditBatchSize is how many vouchers VerifyAll loads per page
const DefaultAuditBatchSize = 200

// AuditService replays voucher histories against stored balances.
// Mismatches are logged and published for manual reconciliation, never corrected.
type AuditService struct {
	vouchers  voucher.Repository
	publisher shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
	logger    *zap.Logger
	batchSize int
}

// NewAuditService creates an AuditService
func NewAuditService(vouchers voucher.Repository, log *zap.Logger, batchSize int) *AuditService {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultAuditBatchSize
	}
	return &AuditService{
		vouchers:  vouchers,
		logger:    log,
		batchSize: batchSize,
	}
}

// SetEventPublisher sets the operator channel for integrity violations
func (s *AuditService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *AuditService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// VerifyVoucher checks one voucher. On a mismatch the verification is returned
// together with the *shared.IntegrityError.
func (s *AuditService) VerifyVoucher(ctx context.Context, id uuid.UUID) (*VerificationResponse, error) {
	v, err := s.vouchers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Voucher", id)
		}
		return nil, err
	}
	result, ie, err := s.verify(ctx, v)
	if err != nil {
		return nil, err
	}
	if ie != nil {
		return result, ie
	}
	return result, nil
}

// VerifyAll walks every voucher in ID order and reports each mismatch
func (s *AuditService) VerifyAll(ctx context.Context) (*AuditSummary, error) {
	start := time.Now()
	summary := &AuditSummary{Violations: []VerificationResponse{}}

	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch, err := s.vouchers.ListBatch(ctx, after, s.batchSize)
		if err != nil {
			return summary, fmt.Errorf("list vouchers after %s: %w", after, err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			result, ie, err := s.verify(ctx, &batch[i])
			if err != nil {
				return summary, err
			}
			summary.Checked++
			if ie != nil {
				summary.Violations = append(summary.Violations, *result)
			}
		}
		after = batch[len(batch)-1].ID
	}
	summary.Duration = time.Since(start)

	logger.WithLogger(ctx, s.logger).Info("Voucher integrity check finished",
		zap.Int("checked", summary.Checked),
		zap.Int("violations", len(summary.Violations)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (s *AuditService) verify(ctx context.Context, v *voucher.Voucher) (*VerificationResponse, *shared.IntegrityError, error) {
	records, err := s.vouchers.History(ctx, v.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load history of voucher %s: %w", v.Code, err)
	}

	result := &VerificationResponse{
		VoucherID:       v.ID,
		Code:            v.Code,
		Status:          string(v.Status),
		OriginalValue:   v.OriginalValue,
		StoredBalance:   v.CurrentValue,
		ReplayedBalance: voucher.ReplayBalance(v.OriginalValue, records),
		UsageCount:      len(records),
		Consistent:      true,
	}

	var ie *shared.IntegrityError
	if err := v.Verify(records); err != nil {
		if !errors.As(err, &ie) {
			return nil, nil, err
		}
		result.Consistent = false
		s.report(ctx, v, ie)
	}
	return result, ie, nil
}

// report sends a violation to the operator channel
func (s *AuditService) report(ctx context.Context, v *voucher.Voucher, ie *shared.IntegrityError) {
	log := logger.WithLogger(ctx, s.logger)
	log.Error("Voucher balance does not match its usage history",
		zap.String("voucher_id", v.ID.String()),
		zap.String("voucher_code", v.Code),
		zap.String("status", string(v.Status)),
		zap.String("original_value", v.OriginalValue.StringFixed(2)),
		zap.String("stored_balance", ie.Actual.StringFixed(2)),
		zap.String("replayed_balance", ie.Expected.StringFixed(2)),
	)
	if s.metrics != nil {
		s.metrics.RecordIntegrityViolation(ctx)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, voucher.NewIntegrityViolatedEvent(v, ie)); err != nil {
			log.Warn("Failed to publish integrity violation", zap.Error(err))
		}
	}
}
