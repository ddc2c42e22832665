package voucher

import (
	"strings"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer identifies the holder of a voucher
type Customer struct {
	ID       *uuid.UUID
	Name     string
	Document string
}

// Voucher is a store-credit instrument with a spendable balance
type Voucher struct {
	shared.BaseAggregateRoot
	Code           string
	OriginalSaleID uuid.UUID
	RefundID       *uuid.UUID
	Customer       Customer
	OriginalValue  decimal.Decimal
	CurrentValue   decimal.Decimal
	ExpiresAt      *time.Time
	Status         Status
	IsTransferable bool
	CancelledAt    *time.Time
	CancelledBy    *uuid.UUID
	CancelReason   string
}

// IssueParams groups the inputs for issuing a voucher from a refund
type IssueParams struct {
	Code           string
	RefundID       uuid.UUID
	SaleID         uuid.UUID
	Customer       Customer
	Value          decimal.Decimal
	ExpiresAt      *time.Time
	IsTransferable bool
}

// NewFromRefund issues an active voucher whose balance equals the refund total
func NewFromRefund(p IssueParams) (*Voucher, error) {
	if strings.TrimSpace(p.Code) == "" {
		return nil, shared.NewValidationError("Voucher code cannot be empty")
	}
	if p.RefundID == uuid.Nil {
		return nil, shared.NewValidationError("Refund ID cannot be empty")
	}
	if p.Value.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Voucher value must be positive")
	}

	refundID := p.RefundID
	v := &Voucher{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              p.Code,
		OriginalSaleID:    p.SaleID,
		RefundID:          &refundID,
		Customer:          p.Customer,
		OriginalValue:     p.Value,
		CurrentValue:      p.Value,
		ExpiresAt:         p.ExpiresAt,
		Status:            StatusActive,
		IsTransferable:    p.IsTransferable,
	}
	v.AddDomainEvent(NewIssuedEvent(v))
	return v, nil
}

// IsExpiredAt reports whether the voucher's expiry has passed at now
func (v *Voucher) IsExpiredAt(now time.Time) bool {
	return v.ExpiresAt != nil && !now.Before(*v.ExpiresAt)
}

// IsUsable reports whether the voucher can be redeemed at now
func (v *Voucher) IsUsable(now time.Time) bool {
	return v.Status == StatusActive &&
		v.CurrentValue.GreaterThan(decimal.Zero) &&
		!v.IsExpiredAt(now)
}

// CheckHolder enforces that a non-transferable voucher is only spent by its holder
func (v *Voucher) CheckHolder(document string) error {
	if v.IsTransferable || v.Customer.Document == "" {
		return nil
	}
	if normalizeDocument(document) != normalizeDocument(v.Customer.Document) {
		return shared.NewValidationError("Voucher %s is not transferable", v.Code)
	}
	return nil
}

// CheckRedeemable runs the redemption preconditions without mutating anything
func (v *Voucher) CheckRedeemable(amount decimal.Decimal, now time.Time) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Redemption amount must be positive")
	}
	if !v.IsUsable(now) {
		status := v.Status
		if status == StatusActive && v.IsExpiredAt(now) {
			status = StatusExpired
		}
		return shared.NewVoucherInactiveError(v.Code, string(status))
	}
	if amount.GreaterThan(v.CurrentValue) {
		return shared.NewInsufficientBalanceError(v.CurrentValue, amount)
	}
	return nil
}

// Redeem spends amount from the balance and returns the usage record to append.
// Persistence performs the same check and decrement as one conditional write.
func (v *Voucher) Redeem(amount decimal.Decimal, saleID, actor uuid.UUID, document string, now time.Time) (*UsageRecord, error) {
	if err := v.CheckRedeemable(amount, now); err != nil {
		return nil, err
	}

	v.CurrentValue = v.CurrentValue.Sub(amount)
	if v.CurrentValue.IsZero() {
		if err := transitions.Transition(v.Status, StatusUsed); err != nil {
			return nil, err
		}
		v.Status = StatusUsed
	}
	v.Touch(now)

	record := NewUsageRecord(v.ID, saleID, amount, v.CurrentValue, actor, document, now)
	v.AddDomainEvent(NewRedeemedEvent(v, record))
	return record, nil
}

// Expire marks an active voucher whose expiry has passed as expired
func (v *Voucher) Expire(now time.Time) error {
	if err := transitions.Transition(v.Status, StatusExpired); err != nil {
		return err
	}
	if !v.IsExpiredAt(now) {
		return shared.NewStateError("Voucher %s has not reached its expiry", v.Code)
	}
	v.Status = StatusExpired
	v.Touch(now)
	return nil
}

// Cancel withdraws an active voucher by manual action
func (v *Voucher) Cancel(actor uuid.UUID, reason string) error {
	if err := transitions.Transition(v.Status, StatusCancelled); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("Cancel reason cannot be empty")
	}
	now := time.Now()
	v.Status = StatusCancelled
	v.CancelledAt = &now
	v.CancelledBy = &actor
	v.CancelReason = reason
	v.Touch(now)

	v.AddDomainEvent(NewCancelledEvent(v))
	return nil
}

// ReplayBalance recomputes the balance from the original value and the usage history
func ReplayBalance(original decimal.Decimal, records []UsageRecord) decimal.Decimal {
	balance := original
	for _, r := range records {
		balance = balance.Sub(r.Amount)
	}
	return balance
}

// Verify replays the history and returns an IntegrityError when it disagrees
// with the stored balance or the status invariants.
func (v *Voucher) Verify(records []UsageRecord) error {
	replayed := ReplayBalance(v.OriginalValue, records)
	if !replayed.Equal(v.CurrentValue) ||
		v.CurrentValue.IsNegative() ||
		v.CurrentValue.GreaterThan(v.OriginalValue) ||
		(v.Status == StatusUsed && !v.CurrentValue.IsZero()) {
		return &shared.IntegrityError{
			VoucherID: v.ID,
			Code:      v.Code,
			Expected:  replayed,
			Actual:    v.CurrentValue,
		}
	}
	return nil
}

func normalizeDocument(doc string) string {
	var b strings.Builder
	for _, r := range doc {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}
