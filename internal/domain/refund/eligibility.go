package refund

import (
	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleSnapshot is a sale together with what non-cancelled refunds already took from it
type SaleSnapshot struct {
	Sale               *sale.Sale
	RefundedQuantities map[uuid.UUID]decimal.Decimal
	RefundedValue      decimal.Decimal
}

// RefundableValue is the sale total minus everything already refunded
func (s SaleSnapshot) RefundableValue() decimal.Decimal {
	return s.Sale.Total.Sub(s.RefundedValue)
}

// RemainingQuantity is the sold quantity of a line minus what was already refunded
func (s SaleSnapshot) RemainingQuantity(item *sale.Item) decimal.Decimal {
	return item.Quantity.Sub(s.RefundedQuantities[item.ID])
}

// ResolveItems builds refund lines from caller input and binds every line to a
// sold line. A line naming only a product is bound to the first line of the sale
// selling that product which still has room for the quantity. Product, name and
// price are inherited from the sold line when the caller leaves them blank.
func ResolveItems(snapshot SaleSnapshot, inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, shared.NewValidationError("Refund must contain at least one item")
	}

	claimed := make(map[uuid.UUID]decimal.Decimal)
	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		soldItem, err := snapshot.soldLineFor(in, claimed)
		if err != nil {
			return nil, err
		}
		id := soldItem.ID
		in.SaleItemID = &id
		if in.ProductID == uuid.Nil {
			in.ProductID = soldItem.ProductID
		}
		if in.ProductName == "" {
			in.ProductName = soldItem.ProductName
		}
		if in.UnitPrice.IsZero() {
			in.UnitPrice = soldItem.UnitPrice
		}
		if in.ProductID != soldItem.ProductID {
			return nil, shared.NewValidationError("Product %s does not match sale item %s", in.ProductID, soldItem.ID)
		}
		if in.UnitPrice.GreaterThan(soldItem.UnitPrice) {
			return nil, shared.NewValidationError(
				"Unit price %s for %s exceeds the sold price %s",
				in.UnitPrice.StringFixed(2), soldItem.ProductName, soldItem.UnitPrice.StringFixed(2))
		}
		item, err := NewItem(in)
		if err != nil {
			return nil, err
		}
		claimed[id] = claimed[id].Add(item.Quantity)
		items = append(items, *item)
	}
	return items, nil
}

func (s SaleSnapshot) soldLineFor(in ItemInput, claimed map[uuid.UUID]decimal.Decimal) (*sale.Item, error) {
	if in.SaleItemID != nil {
		soldItem, ok := s.Sale.Item(*in.SaleItemID)
		if !ok {
			return nil, shared.NewNotFoundError("Sale item", *in.SaleItemID)
		}
		return soldItem, nil
	}
	if in.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("Refund item needs a sale item or a product")
	}

	var first *sale.Item
	for i := range s.Sale.Items {
		soldItem := &s.Sale.Items[i]
		if soldItem.ProductID != in.ProductID {
			continue
		}
		if first == nil {
			first = soldItem
		}
		room := s.RemainingQuantity(soldItem).Sub(claimed[soldItem.ID])
		if room.GreaterThanOrEqual(in.Quantity) {
			return soldItem, nil
		}
	}
	if first == nil {
		return nil, shared.NewNotFoundError("Sale item for product", in.ProductID)
	}
	// No single line has room; CheckEligibility reports the shortfall.
	return first, nil
}

// CheckEligibility validates a refund request against the sale it reverses.
//
// Every line must reference a sale line with enough unrefunded quantity, the total may
// not exceed the refundable value and a full refund must cover it exactly.
func CheckEligibility(snapshot SaleSnapshot, refundType Type, items []Item) error {
	if snapshot.Sale == nil {
		return shared.NewNotFoundError("Sale", "")
	}
	if !snapshot.Sale.Status.IsRefundable() {
		return shared.NewStateError("Sale %s is %s and cannot be refunded", snapshot.Sale.Number, snapshot.Sale.Status)
	}
	if !refundType.IsValid() {
		return shared.NewValidationError("Invalid refund type: %s", refundType)
	}
	if len(items) == 0 {
		return shared.NewValidationError("Refund must contain at least one item")
	}

	requested := make(map[uuid.UUID]decimal.Decimal)
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
		if item.SaleItemID == nil {
			return shared.NewValidationError("Refund item %s is not bound to a sale item", item.ProductName)
		}
		requested[*item.SaleItemID] = requested[*item.SaleItemID].Add(item.Quantity)
	}

	for saleItemID, qty := range requested {
		soldItem, ok := snapshot.Sale.Item(saleItemID)
		if !ok {
			return shared.NewNotFoundError("Sale item", saleItemID)
		}
		remaining := snapshot.RemainingQuantity(soldItem)
		if qty.GreaterThan(remaining) {
			return shared.NewValidationError(
				"Requested quantity %s for %s exceeds refundable remainder %s",
				qty.String(), soldItem.ProductName, remaining.String())
		}
	}

	refundable := snapshot.RefundableValue()
	if total.GreaterThan(refundable) {
		return shared.NewValidationError(
			"Refund total %s exceeds refundable value %s of sale %s",
			total.StringFixed(2), refundable.StringFixed(2), snapshot.Sale.Number)
	}
	if refundType == TypeFull && !total.Equal(refundable) {
		return shared.NewValidationError(
			"Full refund must cover the refundable value %s, got %s",
			refundable.StringFixed(2), total.StringFixed(2))
	}
	return nil
}
