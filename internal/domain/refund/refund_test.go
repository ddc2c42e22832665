package refund

import (
	"errors"
	"testing"

	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestSale() *sale.Sale {
	saleID := uuid.New()
	return &sale.Sale{
		ID:     saleID,
		Number: "S1",
		Status: sale.StatusCompleted,
		Total:  dec("110"),
		Items: []sale.Item{
			{ID: uuid.New(), SaleID: saleID, ProductID: uuid.New(), ProductName: "Capinha", Quantity: dec("1"), UnitPrice: dec("50")},
			{ID: uuid.New(), SaleID: saleID, ProductID: uuid.New(), ProductName: "Pelicula", Quantity: dec("2"), UnitPrice: dec("30")},
		},
	}
}

func snapshotOf(s *sale.Sale) SaleSnapshot {
	return SaleSnapshot{Sale: s, RefundedQuantities: map[uuid.UUID]decimal.Decimal{}, RefundedValue: decimal.Zero}
}

func inputsFor(s *sale.Sale, qty ...string) []ItemInput {
	inputs := make([]ItemInput, 0, len(qty))
	for i, q := range qty {
		id := s.Items[i].ID
		inputs = append(inputs, ItemInput{SaleItemID: &id, Quantity: dec(q), ReturnToStock: true})
	}
	return inputs
}

func newTestRefund(t *testing.T, method Method) *Refund {
	s := newTestSale()
	items, err := ResolveItems(snapshotOf(s), inputsFor(s, "1", "2"))
	require.NoError(t, err)

	r, err := NewRefund(NewRefundParams{
		SaleID:       s.ID,
		RefundNumber: "RF-2026-000001",
		Type:         TypeFull,
		Method:       method,
		Reason:       "defeito",
		CreatedBy:    uuid.New(),
		Items:        items,
	})
	require.NoError(t, err)
	return r
}

func TestNewRefund(t *testing.T) {
	t.Run("should compute the total from the item lines", func(t *testing.T) {
		r := newTestRefund(t, MethodVoucher)
		assert.True(t, r.TotalRefundValue.Equal(dec("110")))
		assert.Equal(t, StatusPending, r.Status)
		assert.Len(t, r.Items, 2)
		for _, item := range r.Items {
			assert.Equal(t, r.ID, item.RefundID)
		}
		assert.NotEmpty(t, r.RequestFingerprint)
		require.Len(t, r.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeCreated, r.GetDomainEvents()[0].EventType())
	})

	t.Run("should reject a refund without items", func(t *testing.T) {
		_, err := NewRefund(NewRefundParams{
			SaleID: uuid.New(), RefundNumber: "RF-1", Type: TypePartial, Method: MethodCash, Reason: "x",
		})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("should reject an unknown method", func(t *testing.T) {
		item, err := NewItem(ItemInput{ProductID: uuid.New(), ProductName: "A", Quantity: dec("1"), UnitPrice: dec("1")})
		require.NoError(t, err)
		_, err = NewRefund(NewRefundParams{
			SaleID: uuid.New(), RefundNumber: "RF-1", Type: TypePartial, Method: "pix", Reason: "x", Items: []Item{*item},
		})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestRefundTransitions(t *testing.T) {
	actor := uuid.New()

	t.Run("should fail a second approval with an invalid transition", func(t *testing.T) {
		r := newTestRefund(t, MethodCash)
		require.NoError(t, r.Approve(actor))

		err := r.Approve(actor)
		var te *shared.InvalidTransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "approved", te.Current)
		assert.Equal(t, "approved", te.Requested)
		assert.Equal(t, StatusApproved, r.Status)
	})

	t.Run("should require approval before completion", func(t *testing.T) {
		r := newTestRefund(t, MethodCash)
		err := r.Complete(actor, nil)
		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
		assert.Equal(t, StatusPending, r.Status)
	})

	t.Run("should require a voucher to complete a voucher refund", func(t *testing.T) {
		r := newTestRefund(t, MethodVoucher)
		require.NoError(t, r.Approve(actor))
		assert.True(t, errors.Is(r.Complete(actor, nil), shared.ErrInvalidState))

		voucherID := uuid.New()
		require.NoError(t, r.Complete(actor, &voucherID))
		assert.Equal(t, StatusCompleted, r.Status)
		assert.Equal(t, &voucherID, r.VoucherID)
	})

	t.Run("should reject cancelling a completed refund", func(t *testing.T) {
		r := newTestRefund(t, MethodCash)
		require.NoError(t, r.Approve(actor))
		require.NoError(t, r.Complete(actor, nil))

		err := r.Cancel(actor, "cliente desistiu")
		var te *shared.InvalidTransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "completed", te.Current)
		assert.Equal(t, "cancelled", te.Requested)
		assert.Equal(t, StatusCompleted, r.Status)
	})

	t.Run("should cancel from pending and approved", func(t *testing.T) {
		pending := newTestRefund(t, MethodCash)
		require.NoError(t, pending.Cancel(actor, "duplicado"))
		assert.Equal(t, StatusCancelled, pending.Status)

		approved := newTestRefund(t, MethodCash)
		require.NoError(t, approved.Approve(actor))
		require.NoError(t, approved.Cancel(actor, "duplicado"))
		assert.Equal(t, StatusCancelled, approved.Status)
		assert.True(t, approved.Status.IsTerminal())
	})

	t.Run("should require a cancellation reason", func(t *testing.T) {
		r := newTestRefund(t, MethodCash)
		assert.True(t, errors.Is(r.Cancel(actor, " "), shared.ErrValidation))
		assert.Equal(t, StatusPending, r.Status)
	})
}

func TestCheckEligibility(t *testing.T) {
	t.Run("should reject a quantity above the sold quantity", func(t *testing.T) {
		s := newTestSale()
		snap := snapshotOf(s)
		items, err := ResolveItems(snap, inputsFor(s, "1", "3"))
		require.NoError(t, err)

		err = CheckEligibility(snap, TypePartial, items)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("should subtract already refunded quantities from the remainder", func(t *testing.T) {
		s := newTestSale()
		snap := snapshotOf(s)
		snap.RefundedQuantities[s.Items[1].ID] = dec("1")
		snap.RefundedValue = dec("30")

		items, err := ResolveItems(snap, []ItemInput{inputsFor(s, "1", "2")[1]})
		require.NoError(t, err)
		assert.True(t, errors.Is(CheckEligibility(snap, TypePartial, items), shared.ErrValidation))

		items, err = ResolveItems(snap, []ItemInput{{SaleItemID: &s.Items[1].ID, Quantity: dec("1")}})
		require.NoError(t, err)
		assert.NoError(t, CheckEligibility(snap, TypePartial, items))
	})

	t.Run("should sum split lines for the same sale item", func(t *testing.T) {
		s := newTestSale()
		snap := snapshotOf(s)
		id := s.Items[1].ID
		items, err := ResolveItems(snap, []ItemInput{
			{SaleItemID: &id, Quantity: dec("2")},
			{SaleItemID: &id, Quantity: dec("1"), Condition: ConditionDefective},
		})
		require.NoError(t, err)
		assert.True(t, errors.Is(CheckEligibility(snap, TypePartial, items), shared.ErrValidation))
	})

	t.Run("should require a full refund to match the refundable value", func(t *testing.T) {
		s := newTestSale()
		snap := snapshotOf(s)
		items, err := ResolveItems(snap, inputsFor(s, "1"))
		require.NoError(t, err)
		assert.True(t, errors.Is(CheckEligibility(snap, TypeFull, items), shared.ErrValidation))

		items, err = ResolveItems(snap, inputsFor(s, "1", "2"))
		require.NoError(t, err)
		assert.NoError(t, CheckEligibility(snap, TypeFull, items))
	})

	t.Run("should return a state error for a sale that is not paid", func(t *testing.T) {
		s := newTestSale()
		s.Status = sale.StatusPending
		snap := snapshotOf(s)
		items, err := ResolveItems(snap, inputsFor(s, "1"))
		require.NoError(t, err)
		assert.True(t, errors.Is(CheckEligibility(snap, TypePartial, items), shared.ErrInvalidState))
	})

	t.Run("should report an unknown sale item as not found", func(t *testing.T) {
		s := newTestSale()
		missing := uuid.New()
		_, err := ResolveItems(snapshotOf(s), []ItemInput{{SaleItemID: &missing, Quantity: dec("1")}})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("should bind a product-only line to the sale line selling that product", func(t *testing.T) {
		s := newTestSale()
		snap := snapshotOf(s)
		items, err := ResolveItems(snap, []ItemInput{{ProductID: s.Items[1].ProductID, Quantity: dec("2"), ReturnToStock: true}})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.NotNil(t, items[0].SaleItemID)
		assert.Equal(t, s.Items[1].ID, *items[0].SaleItemID)
		assert.True(t, items[0].UnitPrice.Equal(dec("30")))
		assert.NoError(t, CheckEligibility(snap, TypePartial, items))
	})

	t.Run("should report a product that was not sold as not found", func(t *testing.T) {
		s := newTestSale()
		_, err := ResolveItems(snapshotOf(s), []ItemInput{{
			ProductID:     uuid.New(),
			Quantity:      dec("50"),
			UnitPrice:     dec("1"),
			ReturnToStock: true,
		}})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("should apply the remainder to product-only lines", func(t *testing.T) {
		s := newTestSale()
		snap := snapshotOf(s)
		items, err := ResolveItems(snap, []ItemInput{{ProductID: s.Items[1].ProductID, Quantity: dec("3")}})
		require.NoError(t, err)
		assert.True(t, errors.Is(CheckEligibility(snap, TypePartial, items), shared.ErrValidation))

		snap.RefundedQuantities[s.Items[1].ID] = dec("2")
		snap.RefundedValue = dec("60")
		items, err = ResolveItems(snap, []ItemInput{{ProductID: s.Items[1].ProductID, Quantity: dec("1")}})
		require.NoError(t, err)
		assert.True(t, errors.Is(CheckEligibility(snap, TypePartial, items), shared.ErrValidation))
	})

	t.Run("should move to the next line of the same product when the first is used up", func(t *testing.T) {
		s := newTestSale()
		s.Items = append(s.Items, sale.Item{
			ID: uuid.New(), SaleID: s.ID, ProductID: s.Items[1].ProductID, ProductName: "Pelicula",
			Quantity: dec("1"), UnitPrice: dec("25"),
		})
		s.Total = dec("135")
		snap := snapshotOf(s)
		snap.RefundedQuantities[s.Items[1].ID] = dec("2")
		snap.RefundedValue = dec("60")

		items, err := ResolveItems(snap, []ItemInput{{ProductID: s.Items[1].ProductID, Quantity: dec("1")}})
		require.NoError(t, err)
		assert.Equal(t, s.Items[2].ID, *items[0].SaleItemID)
		assert.True(t, items[0].UnitPrice.Equal(dec("25")))
		assert.NoError(t, CheckEligibility(snap, TypePartial, items))
	})

	t.Run("should reject a line with neither sale item nor product", func(t *testing.T) {
		s := newTestSale()
		_, err := ResolveItems(snapshotOf(s), []ItemInput{{Quantity: dec("1")}})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("should reject a unit price above the sold price", func(t *testing.T) {
		s := newTestSale()
		id := s.Items[1].ID
		_, err := ResolveItems(snapshotOf(s), []ItemInput{{SaleItemID: &id, Quantity: dec("1"), UnitPrice: dec("110")}})
		assert.True(t, errors.Is(err, shared.ErrValidation))

		items, err := ResolveItems(snapshotOf(s), []ItemInput{{SaleItemID: &id, Quantity: dec("1"), UnitPrice: dec("25")}})
		require.NoError(t, err)
		assert.True(t, items[0].Subtotal.Equal(dec("25")))
	})
}

func TestFingerprint(t *testing.T) {
	s := newTestSale()
	snap := snapshotOf(s)
	a, err := ResolveItems(snap, inputsFor(s, "1", "2"))
	require.NoError(t, err)
	b := []Item{a[1], a[0]}

	assert.Equal(t, Fingerprint(s.ID, a), Fingerprint(s.ID, b))
	assert.NotEqual(t, Fingerprint(s.ID, a), Fingerprint(uuid.New(), a))
}
