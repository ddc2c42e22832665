package shared

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes surfaced to callers as errorKind
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidState        = "INVALID_STATE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeVoucherInactive     = "VOUCHER_INACTIVE"
	CodeIntegrity           = "INTEGRITY_ERROR"
	CodeConflict            = "CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so
// errors.Is(err, ErrNotFound) holds for every not-found error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Sentinels for errors.Is checks
var (
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInvalidTransition   = NewDomainError(CodeInvalidTransition, "Status transition not allowed")
	ErrInsufficientBalance = NewDomainError(CodeInsufficientBalance, "Insufficient balance available")
	ErrVoucherInactive     = NewDomainError(CodeVoucherInactive, "Voucher is not usable")
	ErrIntegrity           = NewDomainError(CodeIntegrity, "Balance does not match usage history")
	ErrConflict            = NewDomainError(CodeConflict, "Resource was modified by another process")
)

// NewValidationError reports malformed input or invalid quantities
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing sale, refund, voucher or line item
func NewNotFoundError(resource string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", resource, id))
}

// NewStateError reports an entity that is not eligible for the operation
func NewStateError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// NewConflictError reports a duplicate or concurrently modified request
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewInsufficientBalanceError reports a redemption larger than the balance
func NewInsufficientBalanceError(available, requested decimal.Decimal) *DomainError {
	return NewDomainError(CodeInsufficientBalance,
		fmt.Sprintf("Insufficient voucher balance: available %s, requested %s", available.StringFixed(2), requested.StringFixed(2)))
}

// NewVoucherInactiveError reports a voucher that is used, expired, cancelled or empty
func NewVoucherInactiveError(code, status string) *DomainError {
	return NewDomainError(CodeVoucherInactive, fmt.Sprintf("Voucher %s is not usable (status: %s)", code, status))
}

// InvalidTransitionError is returned for any status change outside the transition table
type InvalidTransitionError struct {
	Entity    string
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition %s from %s to %s", e.Entity, e.Current, e.Requested)
}

// Unwrap exposes the DomainError so HTTP mapping and errors.Is work uniformly
func (e *InvalidTransitionError) Unwrap() error {
	return NewDomainError(CodeInvalidTransition, e.Error())
}

// IntegrityError is raised when a replayed voucher balance disagrees with the stored one.
// It is never auto-corrected.
type IntegrityError struct {
	VoucherID uuid.UUID
	Code      string
	Expected  decimal.Decimal
	Actual    decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("voucher %s balance mismatch: replayed %s, stored %s",
		e.Code, e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

// Unwrap exposes the DomainError
func (e *IntegrityError) Unwrap() error {
	return NewDomainError(CodeIntegrity, e.Error())
}
