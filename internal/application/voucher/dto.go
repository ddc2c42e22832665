package voucher

import (
	"time"

	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UseVoucherRequest is the input of useVoucher
type UseVoucherRequest struct {
	SaleID           uuid.UUID       `json:"sale_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	CustomerDocument string          `json:"customer_document" binding:"max=50"`
}

// CancelVoucherRequest is the input of cancelVoucher
type CancelVoucherRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListVouchersFilter is the input of listVouchers
type ListVouchersFilter struct {
	Status           string     `form:"status" binding:"omitempty,oneof=active used expired cancelled"`
	CustomerID       *uuid.UUID `form:"-"` // parsed from customer_id by the handler
	CustomerDocument string     `form:"customer_document" binding:"max=50"`
	Page             int        `form:"page" binding:"omitempty,min=1"`
	PageSize         int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy          string     `form:"order_by" binding:"max=50"`
	OrderDir         string     `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// CustomerResponse is the voucher holder in API responses
type CustomerResponse struct {
	ID       *uuid.UUID `json:"id,omitempty"`
	Name     string     `json:"name,omitempty"`
	Document string     `json:"document,omitempty"`
}

// VoucherResponse is a voucher in API responses
type VoucherResponse struct {
	ID             uuid.UUID        `json:"id"`
	Code           string           `json:"code"`
	OriginalSaleID uuid.UUID        `json:"original_sale_id"`
	RefundID       *uuid.UUID       `json:"refund_id,omitempty"`
	Customer       CustomerResponse `json:"customer"`
	OriginalValue  decimal.Decimal  `json:"original_value"`
	CurrentValue   decimal.Decimal  `json:"current_value"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	Status         string           `json:"status"`
	IsTransferable bool             `json:"is_transferable"`
	CancelledAt    *time.Time       `json:"cancelled_at,omitempty"`
	CancelledBy    *uuid.UUID       `json:"cancelled_by,omitempty"`
	CancelReason   string           `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Version        int              `json:"version"`
}

// CheckVoucherResponse is a voucher lookup result with its derived usability
type CheckVoucherResponse struct {
	Voucher VoucherResponse `json:"voucher"`
	Usable  bool            `json:"usable"`
}

// UseVoucherResponse is the result of a redemption
type UseVoucherResponse struct {
	VoucherID    uuid.UUID       `json:"voucher_id"`
	Code         string          `json:"code"`
	UsageID      uuid.UUID       `json:"usage_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Status       string          `json:"status"`
}

// UsageRecordResponse is one redemption in a voucher's history
type UsageRecordResponse struct {
	ID               uuid.UUID       `json:"id"`
	VoucherID        uuid.UUID       `json:"voucher_id"`
	SaleID           uuid.UUID       `json:"sale_id"`
	Amount           decimal.Decimal `json:"amount"`
	BalanceBefore    decimal.Decimal `json:"balance_before"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Actor            uuid.UUID       `json:"actor"`
	CustomerDocument string          `json:"customer_document,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// VerificationResponse reports one voucher's replayed balance against the stored one
type VerificationResponse struct {
	VoucherID       uuid.UUID       `json:"voucher_id"`
	Code            string          `json:"code"`
	Status          string          `json:"status"`
	OriginalValue   decimal.Decimal `json:"original_value"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ReplayedBalance decimal.Decimal `json:"replayed_balance"`
	UsageCount      int             `json:"usage_count"`
	Consistent      bool            `json:"consistent"`
}

// AuditSummary is the outcome of a full integrity pass
type AuditSummary struct {
	Checked    int                    `json:"checked"`
	Violations []VerificationResponse `json:"violations"`
	Duration   time.Duration          `json:"duration_ns"`
}

// ExpirationResult is the outcome of one expiration sweep
type ExpirationResult struct {
	Expired  int64         `json:"expired"`
	Duration time.Duration `json:"duration_ns"`
}

// ToVoucherResponse converts a domain voucher to its API form
func ToVoucherResponse(v *voucher.Voucher) VoucherResponse {
	return VoucherResponse{
		ID:             v.ID,
		Code:           v.Code,
		OriginalSaleID: v.OriginalSaleID,
		RefundID:       v.RefundID,
		Customer: CustomerResponse{
			ID:       v.Customer.ID,
			Name:     v.Customer.Name,
			Document: v.Customer.Document,
		},
		OriginalValue:  v.OriginalValue,
		CurrentValue:   v.CurrentValue,
		ExpiresAt:      v.ExpiresAt,
		Status:         string(v.Status),
		IsTransferable: v.IsTransferable,
		CancelledAt:    v.CancelledAt,
		CancelledBy:    v.CancelledBy,
		CancelReason:   v.CancelReason,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
		Version:        v.Version,
	}
}

// ToVoucherResponses converts a slice of domain vouchers
func ToVoucherResponses(vouchers []voucher.Voucher) []VoucherResponse {
	responses := make([]VoucherResponse, len(vouchers))
	for i := range vouchers {
		responses[i] = ToVoucherResponse(&vouchers[i])
	}
	return responses
}

// ToUsageRecordResponses converts usage records, keeping their order
func ToUsageRecordResponses(records []voucher.UsageRecord) []UsageRecordResponse {
	responses := make([]UsageRecordResponse, len(records))
	for i := range records {
		r := &records[i]
		responses[i] = UsageRecordResponse{
			ID:               r.ID,
			VoucherID:        r.VoucherID,
			SaleID:           r.SaleID,
			Amount:           r.Amount,
			BalanceBefore:    r.BalanceBefore(),
			BalanceAfter:     r.BalanceAfter,
			Actor:            r.Actor,
			CustomerDocument: r.CustomerDocument,
			CreatedAt:        r.CreatedAt,
		}
	}
	return responses
}
