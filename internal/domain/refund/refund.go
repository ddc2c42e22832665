package refund

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerRef identifies who is being refunded
type CustomerRef struct {
	ID       *uuid.UUID
	Name     string
	Document string
}

// Refund reverses all or part of a completed sale
type Refund struct {
	shared.BaseAggregateRoot
	SaleID             uuid.UUID
	RefundNumber       string
	Type               Type
	Reason             string
	ReasonDetails      string
	TotalRefundValue   decimal.Decimal // sum of item subtotals
	Method             Method
	VoucherID          *uuid.UUID // set on completion when Method is voucher
	Status             Status
	Customer           CustomerRef
	CreatedBy          uuid.UUID
	Items              []Item
	IdempotencyKey     string
	RequestFingerprint string
	ApprovedAt         *time.Time
	ApprovedBy         *uuid.UUID
	CompletedAt        *time.Time
	CompletedBy        *uuid.UUID
	CancelledAt        *time.Time
	CancelledBy        *uuid.UUID
	CancelReason       string
}

// NewRefundParams groups the inputs of NewRefund
type NewRefundParams struct {
	SaleID         uuid.UUID
	RefundNumber   string
	Type           Type
	Method         Method
	Reason         string
	ReasonDetails  string
	Customer       CustomerRef
	CreatedBy      uuid.UUID
	Items          []Item
	IdempotencyKey string
}

// NewRefund creates a pending refund and computes its total
func NewRefund(p NewRefundParams) (*Refund, error) {
	if p.SaleID == uuid.Nil {
		return nil, shared.NewValidationError("Sale ID cannot be empty")
	}
	if p.RefundNumber == "" {
		return nil, shared.NewValidationError("Refund number cannot be empty")
	}
	if !p.Type.IsValid() {
		return nil, shared.NewValidationError("Invalid refund type: %s", p.Type)
	}
	if !p.Method.IsValid() {
		return nil, shared.NewValidationError("Invalid refund method: %s", p.Method)
	}
	if strings.TrimSpace(p.Reason) == "" {
		return nil, shared.NewValidationError("Refund reason cannot be empty")
	}
	if len(p.Items) == 0 {
		return nil, shared.NewValidationError("Refund must contain at least one item")
	}

	r := &Refund{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		SaleID:             p.SaleID,
		RefundNumber:       p.RefundNumber,
		Type:               p.Type,
		Method:             p.Method,
		Reason:             p.Reason,
		ReasonDetails:      p.ReasonDetails,
		Customer:           p.Customer,
		CreatedBy:          p.CreatedBy,
		Status:             StatusPending,
		IdempotencyKey:     p.IdempotencyKey,
		RequestFingerprint: Fingerprint(p.SaleID, p.Items),
		Items:              make([]Item, len(p.Items)),
	}
	for i, item := range p.Items {
		item.RefundID = r.ID
		r.Items[i] = item
	}
	r.recalculateTotal()

	if r.TotalRefundValue.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Refund total must be positive")
	}

	r.AddDomainEvent(NewCreatedEvent(r))
	return r, nil
}

func (r *Refund) recalculateTotal() {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Subtotal)
	}
	r.TotalRefundValue = total
}

// ItemsToRestock returns the lines flagged return_to_stock
func (r *Refund) ItemsToRestock() []Item {
	items := make([]Item, 0, len(r.Items))
	for _, item := range r.Items {
		if item.ReturnToStock {
			items = append(items, item)
		}
	}
	return items
}

// Approve moves a pending refund to approved
func (r *Refund) Approve(actor uuid.UUID) error {
	if err := transitions.Transition(r.Status, StatusApproved); err != nil {
		return err
	}

	now := time.Now()
	r.Status = StatusApproved
	r.ApprovedAt = &now
	r.ApprovedBy = &actor
	r.Touch(now)

	r.AddDomainEvent(NewApprovedEvent(r))
	return nil
}

// Complete moves an approved refund to completed. voucherID must be set
// exactly when the refund pays out in store credit.
func (r *Refund) Complete(actor uuid.UUID, voucherID *uuid.UUID) error {
	if err := transitions.Transition(r.Status, StatusCompleted); err != nil {
		return err
	}
	if r.Method == MethodVoucher && voucherID == nil {
		return shared.NewStateError("Refund %s pays out by voucher but no voucher was issued", r.RefundNumber)
	}
	if r.Method != MethodVoucher && voucherID != nil {
		return shared.NewStateError("Refund %s does not pay out by voucher", r.RefundNumber)
	}

	now := time.Now()
	r.Status = StatusCompleted
	r.VoucherID = voucherID
	r.CompletedAt = &now
	r.CompletedBy = &actor
	r.Touch(now)

	r.AddDomainEvent(NewCompletedEvent(r))
	return nil
}

// Cancel moves a pending or approved refund to cancelled.
// A completed refund can only be offset by a new compensating transaction.
func (r *Refund) Cancel(actor uuid.UUID, reason string) error {
	if err := transitions.Transition(r.Status, StatusCancelled); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("Cancel reason cannot be empty")
	}

	now := time.Now()
	previous := r.Status
	r.Status = StatusCancelled
	r.CancelledAt = &now
	r.CancelledBy = &actor
	r.CancelReason = reason
	r.Touch(now)

	r.AddDomainEvent(NewCancelledEvent(r, previous))
	return nil
}

// IsInFlight reports whether the refund still holds quantities without being final
func (r *Refund) IsInFlight() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// Fingerprint derives a stable digest of a refund request so retried
// submissions without an idempotency key can be recognised.
func Fingerprint(saleID uuid.UUID, items []Item) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		ref := item.ProductID.String()
		if item.SaleItemID != nil {
			ref = item.SaleItemID.String()
		}
		lines = append(lines, fmt.Sprintf("%s|%s|%s", ref, item.Quantity.String(), item.UnitPrice.String()))
	}
	sort.Strings(lines)

	h := sha256.New()
	h.Write([]byte(saleID.String()))
	for _, line := range lines {
		h.Write([]byte{'\n'})
		h.Write([]byte(line))
	}
	return hex.EncodeToString(h.Sum(nil))
}
