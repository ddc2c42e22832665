package event

import (
	"context"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// IntegrityAlertHandler is the operator channel for voucher balance mismatches
type IntegrityAlertHandler struct {
	logger *zap.Logger
}

// NewIntegrityAlertHandler creates an IntegrityAlertHandler
func NewIntegrityAlertHandler(log *zap.Logger) *IntegrityAlertHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IntegrityAlertHandler{logger: log.Named("integrity-alert")}
}

// EventTypes returns the integrity violation event type
func (h *IntegrityAlertHandler) EventTypes() []string {
	return []string{voucher.EventTypeIntegrityViolation}
}

// Handle logs the violation with everything needed to reconcile it by hand
func (h *IntegrityAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*voucher.IntegrityViolatedEvent)
	if !ok {
		return nil
	}
	logger.WithLogger(ctx, h.logger).Error("ALERT: voucher ledger integrity violated",
		zap.String("event_id", e.EventID().String()),
		zap.String("voucher_id", e.AggregateID().String()),
		zap.String("voucher_code", e.Code),
		zap.String("status", string(e.Status)),
		zap.String("stored_balance", e.Stored.StringFixed(2)),
		zap.String("replayed_balance", e.Replayed.StringFixed(2)),
		zap.String("difference", e.Stored.Sub(e.Replayed).StringFixed(2)),
		zap.Time("detected_at", e.OccurredAt()),
	)
	return nil
}

// AlertKey identifies a mismatch so the same one is not alerted on every audit run
func (h *IntegrityAlertHandler) AlertKey(event shared.DomainEvent) string {
	e, ok := event.(*voucher.IntegrityViolatedEvent)
	if !ok {
		return event.EventID().String()
	}
	return "integrity:" + e.AggregateID().String() + ":" + e.Stored.String() + ":" + e.Replayed.String()
}

// LoggingEventHandler writes a debug line for every lifecycle event
type LoggingEventHandler struct {
	logger *zap.Logger
}

// NewLoggingEventHandler creates a LoggingEventHandler
func NewLoggingEventHandler(log *zap.Logger) *LoggingEventHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingEventHandler{logger: log.Named("events")}
}

// EventTypes returns nil so the handler receives every event
func (h *LoggingEventHandler) EventTypes() []string {
	return nil
}

// Handle logs the event
func (h *LoggingEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
	}
	switch e := event.(type) {
	case *refund.CreatedEvent:
		fields = append(fields, zap.String("refund_number", e.RefundNumber), zap.String("total", e.Total.StringFixed(2)))
	case *refund.CompletedEvent:
		fields = append(fields, zap.String("refund_number", e.RefundNumber), zap.String("method", string(e.Method)))
	case *refund.CancelledEvent:
		fields = append(fields, zap.String("refund_number", e.RefundNumber), zap.String("reason", e.Reason))
	case *voucher.RedeemedEvent:
		fields = append(fields, zap.String("amount", e.Amount.StringFixed(2)), zap.String("balance_after", e.BalanceAfter.StringFixed(2)))
	case *voucher.ExpiredEvent:
		fields = append(fields, zap.Int64("count", e.Count))
	}
	logger.WithLogger(ctx, h.logger).Debug("Domain event", fields...)
	return nil
}

var (
	_ shared.EventHandler = (*IntegrityAlertHandler)(nil)
	_ shared.EventHandler = (*LoggingEventHandler)(nil)
)
