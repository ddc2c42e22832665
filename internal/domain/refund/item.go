package refund

import (
	"strings"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item represents one line of a refund
type Item struct {
	ID            uuid.UUID
	RefundID      uuid.UUID
	SaleItemID    *uuid.UUID // optional reference to the sold line
	ProductID     uuid.UUID
	ProductName   string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Subtotal      decimal.Decimal // Quantity * UnitPrice
	Reason        string
	Condition     Condition
	ReturnToStock bool
	CreatedAt     time.Time
}

// ItemInput carries the caller's view of a refund line
type ItemInput struct {
	SaleItemID    *uuid.UUID
	ProductID     uuid.UUID
	ProductName   string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Reason        string
	Condition     Condition
	ReturnToStock bool
}

// NewItem creates a refund line
func NewItem(in ItemInput) (*Item, error) {
	if in.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("Product ID cannot be empty")
	}
	if strings.TrimSpace(in.ProductName) == "" {
		return nil, shared.NewValidationError("Product name cannot be empty")
	}
	if in.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Quantity for %s must be positive", in.ProductName)
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewValidationError("Unit price for %s cannot be negative", in.ProductName)
	}
	if in.Condition == "" {
		in.Condition = ConditionNew
	}
	if !in.Condition.IsValid() {
		return nil, shared.NewValidationError("Invalid item condition: %s", in.Condition)
	}

	return &Item{
		ID:            uuid.New(),
		SaleItemID:    in.SaleItemID,
		ProductID:     in.ProductID,
		ProductName:   in.ProductName,
		Quantity:      in.Quantity,
		UnitPrice:     in.UnitPrice,
		Subtotal:      in.Quantity.Mul(in.UnitPrice),
		Reason:        in.Reason,
		Condition:     in.Condition,
		ReturnToStock: in.ReturnToStock,
		CreatedAt:     time.Now(),
	}, nil
}
