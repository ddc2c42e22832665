package scheduler

import (
	"context"
	"time"

	appvoucher "github.com/erp/refunds/internal/application/voucher"
	"go.uber.org/zap"
)

// VoucherExpirer runs one expiration sweep
type VoucherExpirer interface {
	ExpireVouchers(ctx context.Context) (*appvoucher.ExpirationResult, error)
}

// VoucherExpirationScheduler sweeps expired vouchers on a fixed interval
type VoucherExpirationScheduler struct {
	*intervalScheduler
	expirer VoucherExpirer
	logger  *zap.Logger
}

// DefaultVoucherExpirationConfig returns the default sweep configuration
func DefaultVoucherExpirationConfig() IntervalConfig {
	return IntervalConfig{
		Enabled:    true,
		Interval:   time.Hour,
		RunOnStart: true,
		Timeout:    5 * time.Minute,
	}
}

// NewVoucherExpirationScheduler creates a new voucher expiration scheduler
func NewVoucherExpirationScheduler(expirer VoucherExpirer, log *zap.Logger, config IntervalConfig) *VoucherExpirationScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &VoucherExpirationScheduler{
		expirer: expirer,
		logger:  log,
	}
	s.intervalScheduler = newIntervalScheduler("voucher-expiration", config, log, s.sweep)
	return s
}

func (s *VoucherExpirationScheduler) sweep(ctx context.Context) {
	result, err := s.expirer.ExpireVouchers(ctx)
	if err != nil {
		s.logger.Error("Voucher expiration sweep failed", zap.Error(err))
		return
	}
	if result.Expired > 0 {
		s.logger.Info("Voucher expiration sweep completed",
			zap.Int64("expired", result.Expired),
			zap.Duration("duration", result.Duration),
		)
	}
}
