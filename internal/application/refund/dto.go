package refund

import (
	"time"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRefundItemInput is one requested refund line
type CreateRefundItemInput struct {
	SaleItemID    *uuid.UUID      `json:"sale_item_id" binding:"omitempty"`
	ProductID     *uuid.UUID      `json:"product_id"`
	ProductName   string          `json:"product_name" binding:"max=200"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Reason        string          `json:"reason" binding:"max=500"`
	Condition     string          `json:"condition" binding:"omitempty,oneof=novo usado defeituoso"`
	ReturnToStock bool            `json:"return_to_stock"`
}

// CustomerInput identifies the customer receiving the refund
type CustomerInput struct {
	ID       *uuid.UUID `json:"id"`
	Name     string     `json:"name" binding:"max=200"`
	Document string     `json:"document" binding:"max=50"`
}

// CreateRefundRequest is the input of createRefund
type CreateRefundRequest struct {
	SaleID        uuid.UUID               `json:"sale_id" binding:"required"`
	RefundType    string                  `json:"refund_type" binding:"required,oneof=full partial"`
	RefundMethod  string                  `json:"refund_method" binding:"required,oneof=cash voucher original"`
	Reason        string                  `json:"reason" binding:"required,max=200"`
	ReasonDetails string                  `json:"reason_details" binding:"max=2000"`
	Items         []CreateRefundItemInput `json:"items" binding:"required,min=1,dive"`
	Customer      *CustomerInput          `json:"customer"`

	// Set by the transport layer, not bound from the body
	IdempotencyKey string    `json:"-"`
	CreatedBy      uuid.UUID `json:"-"`
}

// CancelRefundRequest is the input of cancelRefund
type CancelRefundRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListRefundsFilter is the input of listRefunds
type ListRefundsFilter struct {
	Status    string     `form:"status" binding:"omitempty,oneof=pending approved completed cancelled"`
	SaleID    *uuid.UUID `form:"-"` // parsed from sale_id by the handler
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by" binding:"max=50"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// RefundItemResponse is a refund line in API responses
type RefundItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	SaleItemID    *uuid.UUID      `json:"sale_item_id,omitempty"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Reason        string          `json:"reason,omitempty"`
	Condition     string          `json:"condition"`
	ReturnToStock bool            `json:"return_to_stock"`
}

// CustomerResponse is the customer reference in API responses
type CustomerResponse struct {
	ID       *uuid.UUID `json:"id,omitempty"`
	Name     string     `json:"name,omitempty"`
	Document string     `json:"document,omitempty"`
}

// RefundResponse is a refund in API responses
type RefundResponse struct {
	ID               uuid.UUID            `json:"id"`
	RefundNumber     string               `json:"refund_number"`
	SaleID           uuid.UUID            `json:"sale_id"`
	RefundType       string               `json:"refund_type"`
	Reason           string               `json:"reason"`
	ReasonDetails    string               `json:"reason_details,omitempty"`
	TotalRefundValue decimal.Decimal      `json:"total_refund_value"`
	RefundMethod     string               `json:"refund_method"`
	VoucherID        *uuid.UUID           `json:"voucher_id,omitempty"`
	Status           string               `json:"status"`
	Customer         CustomerResponse     `json:"customer"`
	CreatedBy        uuid.UUID            `json:"created_by"`
	Items            []RefundItemResponse `json:"items"`
	ApprovedAt       *time.Time           `json:"approved_at,omitempty"`
	ApprovedBy       *uuid.UUID           `json:"approved_by,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CompletedBy      *uuid.UUID           `json:"completed_by,omitempty"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
	CancelledBy      *uuid.UUID           `json:"cancelled_by,omitempty"`
	CancelReason     string               `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Version          int                  `json:"version"`
}

// ToRefundResponse converts a domain refund to its API form
func ToRefundResponse(r *refund.Refund) RefundResponse {
	items := make([]RefundItemResponse, len(r.Items))
	for i, item := range r.Items {
		items[i] = RefundItemResponse{
			ID:            item.ID,
			SaleItemID:    item.SaleItemID,
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Subtotal:      item.Subtotal,
			Reason:        item.Reason,
			Condition:     string(item.Condition),
			ReturnToStock: item.ReturnToStock,
		}
	}
	return RefundResponse{
		ID:               r.ID,
		RefundNumber:     r.RefundNumber,
		SaleID:           r.SaleID,
		RefundType:       string(r.Type),
		Reason:           r.Reason,
		ReasonDetails:    r.ReasonDetails,
		TotalRefundValue: r.TotalRefundValue,
		RefundMethod:     string(r.Method),
		VoucherID:        r.VoucherID,
		Status:           string(r.Status),
		Customer: CustomerResponse{
			ID:       r.Customer.ID,
			Name:     r.Customer.Name,
			Document: r.Customer.Document,
		},
		CreatedBy:    r.CreatedBy,
		Items:        items,
		ApprovedAt:   r.ApprovedAt,
		ApprovedBy:   r.ApprovedBy,
		CompletedAt:  r.CompletedAt,
		CompletedBy:  r.CompletedBy,
		CancelledAt:  r.CancelledAt,
		CancelledBy:  r.CancelledBy,
		CancelReason: r.CancelReason,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Version:      r.Version,
	}
}

// ToRefundResponses converts a slice of refunds
func ToRefundResponses(refunds []refund.Refund) []RefundResponse {
	out := make([]RefundResponse, len(refunds))
	for i := range refunds {
		out[i] = ToRefundResponse(&refunds[i])
	}
	return out
}
