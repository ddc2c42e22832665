package voucher

import (
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateType is the aggregate name used on voucher events
const AggregateType = "Voucher"

// Event type constants for Voucher
const (
	EventTypeIssued             = "VoucherIssued"
	EventTypeRedeemed           = "VoucherRedeemed"
	EventTypeCancelled          = "VoucherCancelled"
	EventTypeExpired            = "VouchersExpired"
	EventTypeIntegrityViolation = "VoucherIntegrityViolated"
)

// IssuedEvent is raised when a refund issues store credit
type IssuedEvent struct {
	shared.BaseDomainEvent
	Code     string          `json:"code"`
	RefundID *uuid.UUID      `json:"refund_id,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

// NewIssuedEvent creates an IssuedEvent
func NewIssuedEvent(v *Voucher) *IssuedEvent {
	return &IssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIssued, AggregateType, v.ID),
		Code:            v.Code,
		RefundID:        v.RefundID,
		Value:           v.OriginalValue,
	}
}

// RedeemedEvent is raised after a redemption commits
type RedeemedEvent struct {
	shared.BaseDomainEvent
	Code         string          `json:"code"`
	SaleID       uuid.UUID       `json:"sale_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Status       Status          `json:"status"`
}

// NewRedeemedEvent creates a RedeemedEvent
func NewRedeemedEvent(v *Voucher, r *UsageRecord) *RedeemedEvent {
	return &RedeemedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRedeemed, AggregateType, v.ID),
		Code:            v.Code,
		SaleID:          r.SaleID,
		Amount:          r.Amount,
		BalanceAfter:    r.BalanceAfter,
		Status:          v.Status,
	}
}

// CancelledEvent is raised when a voucher is withdrawn manually
type CancelledEvent struct {
	shared.BaseDomainEvent
	Code             string          `json:"code"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Reason           string          `json:"reason"`
}

// NewCancelledEvent creates a CancelledEvent
func NewCancelledEvent(v *Voucher) *CancelledEvent {
	return &CancelledEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCancelled, AggregateType, v.ID),
		Code:             v.Code,
		RemainingBalance: v.CurrentValue,
		Reason:           v.CancelReason,
	}
}

// ExpiredEvent summarises one expiration sweep
type ExpiredEvent struct {
	shared.BaseDomainEvent
	Count int64 `json:"count"`
}

// NewExpiredEvent creates an ExpiredEvent
func NewExpiredEvent(count int64) *ExpiredEvent {
	return &ExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpired, AggregateType, uuid.Nil),
		Count:           count,
	}
}

// IntegrityViolatedEvent goes to the operator channel when a replay disagrees with the stored balance
type IntegrityViolatedEvent struct {
	shared.BaseDomainEvent
	Code     string          `json:"code"`
	Replayed decimal.Decimal `json:"replayed_balance"`
	Stored   decimal.Decimal `json:"stored_balance"`
	Status   Status          `json:"status"`
}

// NewIntegrityViolatedEvent creates an IntegrityViolatedEvent
func NewIntegrityViolatedEvent(v *Voucher, ie *shared.IntegrityError) *IntegrityViolatedEvent {
	return &IntegrityViolatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIntegrityViolation, AggregateType, v.ID),
		Code:            v.Code,
		Replayed:        ie.Expected,
		Stored:          ie.Actual,
		Status:          v.Status,
	}
}
