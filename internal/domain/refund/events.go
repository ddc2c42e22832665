package refund

import (
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateType is the aggregate name used on refund events
const AggregateType = "Refund"

// Event type constants for Refund
const (
	EventTypeCreated   = "RefundCreated"
	EventTypeApproved  = "RefundApproved"
	EventTypeCompleted = "RefundCompleted"
	EventTypeCancelled = "RefundCancelled"
)

// CreatedEvent is raised when a refund request is accepted
type CreatedEvent struct {
	shared.BaseDomainEvent
	RefundNumber string          `json:"refund_number"`
	SaleID       uuid.UUID       `json:"sale_id"`
	Type         Type            `json:"refund_type"`
	Method       Method          `json:"refund_method"`
	Total        decimal.Decimal `json:"total_refund_value"`
	CreatedBy    uuid.UUID       `json:"created_by"`
}

// NewCreatedEvent creates a CreatedEvent
func NewCreatedEvent(r *Refund) *CreatedEvent {
	return &CreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreated, AggregateType, r.ID),
		RefundNumber:    r.RefundNumber,
		SaleID:          r.SaleID,
		Type:            r.Type,
		Method:          r.Method,
		Total:           r.TotalRefundValue,
		CreatedBy:       r.CreatedBy,
	}
}

// ApprovedEvent is raised when a refund is approved
type ApprovedEvent struct {
	shared.BaseDomainEvent
	RefundNumber string    `json:"refund_number"`
	ApprovedBy   uuid.UUID `json:"approved_by"`
}

// NewApprovedEvent creates an ApprovedEvent
func NewApprovedEvent(r *Refund) *ApprovedEvent {
	e := &ApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeApproved, AggregateType, r.ID),
		RefundNumber:    r.RefundNumber,
	}
	if r.ApprovedBy != nil {
		e.ApprovedBy = *r.ApprovedBy
	}
	return e
}

// RestockedLine is a line that went back into stock on completion
type RestockedLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// CompletedEvent is raised once stock, ledger and voucher effects are committed
type CompletedEvent struct {
	shared.BaseDomainEvent
	RefundNumber string          `json:"refund_number"`
	SaleID       uuid.UUID       `json:"sale_id"`
	Method       Method          `json:"refund_method"`
	Total        decimal.Decimal `json:"total_refund_value"`
	VoucherID    *uuid.UUID      `json:"voucher_id,omitempty"`
	Restocked    []RestockedLine `json:"restocked"`
}

// NewCompletedEvent creates a CompletedEvent
func NewCompletedEvent(r *Refund) *CompletedEvent {
	restocked := make([]RestockedLine, 0)
	for _, item := range r.ItemsToRestock() {
		restocked = append(restocked, RestockedLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return &CompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCompleted, AggregateType, r.ID),
		RefundNumber:    r.RefundNumber,
		SaleID:          r.SaleID,
		Method:          r.Method,
		Total:           r.TotalRefundValue,
		VoucherID:       r.VoucherID,
		Restocked:       restocked,
	}
}

// CancelledEvent is raised when a pending or approved refund is cancelled
type CancelledEvent struct {
	shared.BaseDomainEvent
	RefundNumber   string `json:"refund_number"`
	PreviousStatus Status `json:"previous_status"`
	Reason         string `json:"reason"`
}

// NewCancelledEvent creates a CancelledEvent
func NewCancelledEvent(r *Refund, previous Status) *CancelledEvent {
	return &CancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCancelled, AggregateType, r.ID),
		RefundNumber:    r.RefundNumber,
		PreviousStatus:  previous,
		Reason:          r.CancelReason,
	}
}
