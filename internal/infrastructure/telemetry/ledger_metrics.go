package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics tracks refund throughput, voucher spending and ledger health.
// Monetary amounts are recorded in cents.
type LedgerMetrics struct {
	logger *zap.Logger

	refundsTotal        *Counter
	refundAmountCents   *Counter
	voucherRedemptions  *Counter
	voucherSpentCents   *Counter
	vouchersExpired     *Counter
	integrityViolations *Counter

	outstandingBalanceCents *Gauge
	activeVouchers          *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	balanceProvider VoucherBalanceProvider
}

// VoucherBalanceProvider reports the outstanding store-credit liability
type VoucherBalanceProvider interface {
	// OutstandingBalance returns the summed current value and count of active vouchers
	OutstandingBalance(ctx context.Context) (decimal.Decimal, int64, error)
}

// LedgerMetricsConfig holds configuration for LedgerMetrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	BalanceProvider VoucherBalanceProvider
}

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewLedgerMetrics creates the ledger instruments on the given meter.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		logger:          logger,
		stopChan:        make(chan struct{}),
		balanceProvider: cfg.BalanceProvider,
	}

	counters := []struct {
		target     **Counter
		name, desc string
		unit       string
	}{
		{&lm.refundsTotal, "refund_transitions_total", "Refunds by resulting status and method", "{refunds}"},
		{&lm.refundAmountCents, "refund_amount_cents_total", "Value of completed refunds in cents", "{cents}"},
		{&lm.voucherRedemptions, "voucher_redemptions_total", "Number of voucher redemptions", "{redemptions}"},
		{&lm.voucherSpentCents, "voucher_spent_cents_total", "Voucher balance spent in cents", "{cents}"},
		{&lm.vouchersExpired, "vouchers_expired_total", "Vouchers moved to expired by the expiration job", "{vouchers}"},
		{&lm.integrityViolations, "voucher_integrity_violations_total", "Vouchers whose balance disagrees with their history", "{vouchers}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	lm.outstandingBalanceCents, err = NewGauge(cfg.Meter, "voucher_outstanding_balance_cents",
		"Summed current value of active vouchers in cents", "{cents}")
	if err != nil {
		return nil, err
	}
	lm.activeVouchers, err = NewGauge(cfg.Meter, "voucher_active_count",
		"Number of active vouchers", "{vouchers}")
	if err != nil {
		return nil, err
	}
	return lm, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// RecordRefundCreated counts a new pending refund.
func (lm *LedgerMetrics) RecordRefundCreated(ctx context.Context, method string, amount decimal.Decimal) {
	lm.refundsTotal.Inc(ctx, AttrRefundStatus.String("pending"), AttrRefundMethod.String(method))
}

// RecordRefundCompleted counts a completed refund and its value.
func (lm *LedgerMetrics) RecordRefundCompleted(ctx context.Context, method string, amount decimal.Decimal) {
	lm.refundsTotal.Inc(ctx, AttrRefundStatus.String("completed"), AttrRefundMethod.String(method))
	lm.refundAmountCents.Add(ctx, toCents(amount), AttrRefundMethod.String(method))
}

// RecordRefundCancelled counts a cancelled refund.
func (lm *LedgerMetrics) RecordRefundCancelled(ctx context.Context, method string) {
	lm.refundsTotal.Inc(ctx, AttrRefundStatus.String("cancelled"), AttrRefundMethod.String(method))
}

// RecordVoucherRedeemed counts a redemption and the amount spent.
func (lm *LedgerMetrics) RecordVoucherRedeemed(ctx context.Context, amount decimal.Decimal, exhausted bool) {
	status := "active"
	if exhausted {
		status = "used"
	}
	lm.voucherRedemptions.Inc(ctx, AttrVoucherState.String(status))
	lm.voucherSpentCents.Add(ctx, toCents(amount))
}

// RecordVouchersExpired counts vouchers moved to expired in one sweep.
func (lm *LedgerMetrics) RecordVouchersExpired(ctx context.Context, count int64) {
	if count > 0 {
		lm.vouchersExpired.Add(ctx, count)
	}
}

// RecordIntegrityViolation counts a voucher that failed verification.
func (lm *LedgerMetrics) RecordIntegrityViolation(ctx context.Context) {
	lm.integrityViolations.Inc(ctx)
}

// StartPeriodicCollection samples the outstanding voucher balance every interval.
// It does not block; call Stop to end collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.CollectBalances(ctx)
	for {
		select {
		case <-lm.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.CollectBalances(ctx)
		}
	}
}

// CollectBalances records the outstanding balance gauges once.
func (lm *LedgerMetrics) CollectBalances(ctx context.Context) {
	if lm.balanceProvider == nil {
		return
	}
	balance, count, err := lm.balanceProvider.OutstandingBalance(ctx)
	if err != nil {
		lm.logger.Warn("Failed to read outstanding voucher balance", zap.Error(err))
		return
	}
	lm.outstandingBalanceCents.Record(ctx, toCents(balance))
	lm.activeVouchers.Record(ctx, count)
}

// Stop ends periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}
