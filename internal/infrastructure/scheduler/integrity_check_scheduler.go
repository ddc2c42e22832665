package scheduler

import (
	"context"
	"time"

	appvoucher "github.com/erp/refunds/internal/application/voucher"
	"go.uber.org/zap"
)

// IntegrityChecker replays every voucher history
type IntegrityChecker interface {
	VerifyAll(ctx context.Context) (*appvoucher.AuditSummary, error)
}

// IntegrityCheckScheduler runs the voucher ledger audit on a fixed interval
type IntegrityCheckScheduler struct {
	*intervalScheduler
	checker IntegrityChecker
	logger  *zap.Logger
}

// DefaultIntegrityCheckConfig returns the default audit configuration
func DefaultIntegrityCheckConfig() IntervalConfig {
	return IntervalConfig{
		Enabled:  true,
		Interval: 24 * time.Hour,
		Timeout:  30 * time.Minute,
	}
}

// NewIntegrityCheckScheduler creates a new integrity check scheduler
func NewIntegrityCheckScheduler(checker IntegrityChecker, log *zap.Logger, config IntervalConfig) *IntegrityCheckScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &IntegrityCheckScheduler{
		checker: checker,
		logger:  log,
	}
	s.intervalScheduler = newIntervalScheduler("voucher-integrity-check", config, log, s.check)
	return s
}

func (s *IntegrityCheckScheduler) check(ctx context.Context) {
	summary, err := s.checker.VerifyAll(ctx)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if summary != nil {
			fields = append(fields, zap.Int("checked", summary.Checked))
		}
		s.logger.Error("Voucher integrity check failed", fields...)
		return
	}
	if len(summary.Violations) > 0 {
		s.logger.Warn("Voucher integrity check found violations",
			zap.Int("checked", summary.Checked),
			zap.Int("violations", len(summary.Violations)),
		)
	}
}
