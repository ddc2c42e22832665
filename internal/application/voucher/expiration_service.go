package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ExpirationService moves vouchers past their expiry to expired.
// A sweep is a single conditional update, so it is safe to run repeatedly
// or from several processes at once.
type ExpirationService struct {
	vouchers  voucher.Repository
	publisher shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewExpirationService creates an ExpirationService
func NewExpirationService(vouchers voucher.Repository, log *zap.Logger) *ExpirationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExpirationService{
		vouchers: vouchers,
		logger:   log,
		now:      time.Now,
	}
}

// SetEventPublisher sets the publisher for expiration events
func (s *ExpirationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *ExpirationService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// ExpireVouchers runs one sweep
func (s *ExpirationService) ExpireVouchers(ctx context.Context) (*ExpirationResult, error) {
	start := time.Now()
	expired, err := s.vouchers.ExpireDue(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("expire vouchers: %w", err)
	}
	result := &ExpirationResult{Expired: expired, Duration: time.Since(start)}

	log := logger.WithLogger(ctx, s.logger)
	if expired == 0 {
		log.Debug("Voucher expiration sweep found nothing to expire")
		return result, nil
	}

	log.Info("Vouchers expired",
		zap.Int64("count", expired),
		zap.Duration("duration", result.Duration),
	)
	if s.metrics != nil {
		s.metrics.RecordVouchersExpired(ctx, expired)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, voucher.NewExpiredEvent(expired)); err != nil {
			log.Warn("Failed to publish expiration event", zap.Error(err))
		}
	}
	return result, nil
}
