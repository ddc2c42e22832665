package persistence

import (
	"context"
	"errors"
	"testing"

	apprefund "github.com/erp/refunds/internal/application/refund"
	appvoucher "github.com/erp/refunds/internal/application/voucher"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db       *gorm.DB
	refunds  *apprefund.Service
	vouchers *appvoucher.Service
	audit    *appvoucher.AuditService
	actor    uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db := newTestDB(t)
	voucherRepo := NewGormVoucherRepository(db)
	return &ledgerFixture{
		db: db,
		refunds: apprefund.NewService(
			NewGormRefundRepository(db),
			NewGormTransactionScope(db),
			voucher.NewRandomCodeGenerator("VC"),
			zap.NewNop(),
			apprefund.DefaultConfig(),
		),
		vouchers: appvoucher.NewService(voucherRepo, zap.NewNop()),
		audit:    appvoucher.NewAuditService(voucherRepo, zap.NewNop(), 0),
		actor:    uuid.New(),
	}
}

// stockAll creates a stock row for every product sold on s
func (f *ledgerFixture) stockAll(t *testing.T, s *models.SaleModel, qty int64) {
	t.Helper()
	for _, item := range s.Items {
		require.NoError(t, f.db.Create(&models.ProductStockModel{
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			StockQuantity: decimal.NewFromInt(qty),
		}).Error)
	}
}

func (f *ledgerFixture) stockOf(t *testing.T, productID uuid.UUID) decimal.Decimal {
	t.Helper()
	var row models.ProductStockModel
	require.NoError(t, f.db.First(&row, "product_id = ?", productID).Error)
	return row.StockQuantity
}

func (f *ledgerFixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

// fullVoucherRequest refunds every line of s, all going back to stock
func fullVoucherRequest(s *models.SaleModel, actor uuid.UUID) apprefund.CreateRefundRequest {
	items := make([]apprefund.CreateRefundItemInput, 0, len(s.Items))
	for i := range s.Items {
		id := s.Items[i].ID
		items = append(items, apprefund.CreateRefundItemInput{
			SaleItemID:    &id,
			Quantity:      s.Items[i].Quantity,
			Condition:     "novo",
			ReturnToStock: true,
		})
	}
	return apprefund.CreateRefundRequest{
		SaleID:       s.ID,
		RefundType:   "full",
		RefundMethod: "voucher",
		Reason:       "defeito",
		Items:        items,
		CreatedBy:    actor,
	}
}

func TestLedgerScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("should issue a voucher worth the refund and spend it to zero", func(t *testing.T) {
		f := newLedgerFixture(t)
		s := seedSale(t, f.db, [2]string{"1", "50"}, [2]string{"2", "30"})
		f.stockAll(t, s, 5)

		created, err := f.refunds.CreateRefund(ctx, fullVoucherRequest(s, f.actor))
		require.NoError(t, err)
		assert.True(t, created.TotalRefundValue.Equal(decimal.NewFromInt(110)))
		assert.Equal(t, "pending", created.Status)

		_, err = f.refunds.ApproveRefund(ctx, created.ID, f.actor)
		require.NoError(t, err)
		completed, err := f.refunds.CompleteRefund(ctx, created.ID, f.actor)
		require.NoError(t, err)
		assert.Equal(t, "completed", completed.Status)
		require.NotNil(t, completed.VoucherID)

		assert.True(t, f.stockOf(t, s.Items[0].ProductID).Equal(decimal.NewFromInt(6)))
		assert.True(t, f.stockOf(t, s.Items[1].ProductID).Equal(decimal.NewFromInt(7)))
		assert.Zero(t, f.count(t, &models.LedgerReversalModel{}))

		issued, err := f.vouchers.GetVoucher(ctx, *completed.VoucherID)
		require.NoError(t, err)
		assert.Equal(t, "active", issued.Status)
		assert.True(t, issued.OriginalValue.Equal(decimal.NewFromInt(110)))
		assert.True(t, issued.CurrentValue.Equal(decimal.NewFromInt(110)))
		assert.Equal(t, &created.ID, issued.RefundID)

		checked, err := f.vouchers.CheckVoucher(ctx, issued.Code)
		require.NoError(t, err)
		assert.True(t, checked.Usable)

		used, err := f.vouchers.UseVoucher(ctx, issued.ID, appvoucher.UseVoucherRequest{
			SaleID: uuid.New(),
			Amount: decimal.NewFromInt(110),
		}, f.actor)
		require.NoError(t, err)
		assert.True(t, used.BalanceAfter.IsZero())
		assert.Equal(t, "used", used.Status)

		_, err = f.vouchers.UseVoucher(ctx, issued.ID, appvoucher.UseVoucherRequest{
			SaleID: uuid.New(),
			Amount: decimal.NewFromInt(1),
		}, f.actor)
		assert.ErrorIs(t, err, shared.ErrVoucherInactive)

		history, err := f.vouchers.FetchVoucherHistory(ctx, issued.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Amount.Equal(decimal.NewFromInt(110)))

		verification, err := f.audit.VerifyVoucher(ctx, issued.ID)
		require.NoError(t, err)
		assert.True(t, verification.Consistent)
	})

	t.Run("should not create anything for a quantity above what was sold", func(t *testing.T) {
		f := newLedgerFixture(t)
		s := seedSale(t, f.db, [2]string{"2", "30"})

		id := s.Items[0].ID
		_, err := f.refunds.CreateRefund(ctx, apprefund.CreateRefundRequest{
			SaleID:       s.ID,
			RefundType:   "partial",
			RefundMethod: "cash",
			Reason:       "arrependimento",
			Items:        []apprefund.CreateRefundItemInput{{SaleItemID: &id, Quantity: decimal.NewFromInt(3)}},
			CreatedBy:    f.actor,
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Zero(t, f.count(t, &models.RefundModel{}))
		assert.Zero(t, f.count(t, &models.RefundItemModel{}))
	})

	t.Run("should refuse to cancel a completed refund and leave its voucher alone", func(t *testing.T) {
		f := newLedgerFixture(t)
		s := seedSale(t, f.db, [2]string{"1", "50"}, [2]string{"2", "30"})
		f.stockAll(t, s, 0)

		created, err := f.refunds.CreateRefund(ctx, fullVoucherRequest(s, f.actor))
		require.NoError(t, err)
		_, err = f.refunds.ApproveRefund(ctx, created.ID, f.actor)
		require.NoError(t, err)
		completed, err := f.refunds.CompleteRefund(ctx, created.ID, f.actor)
		require.NoError(t, err)
		before, err := f.vouchers.GetVoucher(ctx, *completed.VoucherID)
		require.NoError(t, err)

		_, err = f.refunds.CancelRefund(ctx, created.ID, f.actor, "cliente voltou")
		var te *shared.InvalidTransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "completed", te.Current)
		assert.Equal(t, "cancelled", te.Requested)

		after, err := f.refunds.GetRefund(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "completed", after.Status)
		assert.Equal(t, completed.VoucherID, after.VoucherID)

		v, err := f.vouchers.GetVoucher(ctx, *completed.VoucherID)
		require.NoError(t, err)
		assert.Equal(t, before.Status, v.Status)
		assert.True(t, before.CurrentValue.Equal(v.CurrentValue))
		assert.Equal(t, before.Version, v.Version)
	})

	t.Run("should keep the refund approved when a restock fails", func(t *testing.T) {
		f := newLedgerFixture(t)
		s := seedSale(t, f.db, [2]string{"1", "50"}, [2]string{"2", "30"})
		// only the first product has a stock row
		require.NoError(t, f.db.Create(&models.ProductStockModel{
			ProductID:     s.Items[0].ProductID,
			StockQuantity: decimal.NewFromInt(4),
		}).Error)

		created, err := f.refunds.CreateRefund(ctx, fullVoucherRequest(s, f.actor))
		require.NoError(t, err)
		_, err = f.refunds.ApproveRefund(ctx, created.ID, f.actor)
		require.NoError(t, err)

		_, err = f.refunds.CompleteRefund(ctx, created.ID, f.actor)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		after, err := f.refunds.GetRefund(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "approved", after.Status)
		assert.Nil(t, after.VoucherID)
		assert.True(t, f.stockOf(t, s.Items[0].ProductID).Equal(decimal.NewFromInt(4)))
		assert.Zero(t, f.count(t, &models.VoucherModel{}))
	})

	t.Run("should post a ledger reversal for a cash refund and count it against the sale", func(t *testing.T) {
		f := newLedgerFixture(t)
		s := seedSale(t, f.db, [2]string{"2", "30"})

		id := s.Items[0].ID
		req := apprefund.CreateRefundRequest{
			SaleID:       s.ID,
			RefundType:   "partial",
			RefundMethod: "cash",
			Reason:       "arrependimento",
			Items:        []apprefund.CreateRefundItemInput{{SaleItemID: &id, Quantity: decimal.NewFromInt(1)}},
			CreatedBy:    f.actor,
		}
		created, err := f.refunds.CreateRefund(ctx, req)
		require.NoError(t, err)
		_, err = f.refunds.ApproveRefund(ctx, created.ID, f.actor)
		require.NoError(t, err)
		_, err = f.refunds.CompleteRefund(ctx, created.ID, f.actor)
		require.NoError(t, err)

		var reversal models.LedgerReversalModel
		require.NoError(t, f.db.First(&reversal, "refund_id = ?", created.ID).Error)
		assert.True(t, reversal.Amount.Equal(decimal.NewFromInt(30)))
		assert.Equal(t, "cash", reversal.Method)

		// one unit left on the line
		req.Items[0].Quantity = decimal.NewFromInt(2)
		_, err = f.refunds.CreateRefund(ctx, req)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("should not refund or restock a product that was never on the sale", func(t *testing.T) {
		f := newLedgerFixture(t)
		s := seedSale(t, f.db, [2]string{"1", "50"})
		foreign := uuid.New()
		require.NoError(t, f.db.Create(&models.ProductStockModel{ProductID: foreign}).Error)

		_, err := f.refunds.CreateRefund(ctx, apprefund.CreateRefundRequest{
			SaleID:       s.ID,
			RefundType:   "partial",
			RefundMethod: "cash",
			Reason:       "defeito",
			Items: []apprefund.CreateRefundItemInput{{
				ProductID:     &foreign,
				Quantity:      decimal.NewFromInt(50),
				UnitPrice:     decimal.NewFromInt(1),
				ReturnToStock: true,
			}},
			CreatedBy: f.actor,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Zero(t, f.count(t, &models.RefundModel{}))
		assert.True(t, f.stockOf(t, foreign).IsZero())
	})

	t.Run("should not let a cheap line claim more than it sold for", func(t *testing.T) {
		f := newLedgerFixture(t)
		s := seedSale(t, f.db, [2]string{"1", "10"}, [2]string{"1", "100"})

		id := s.Items[0].ID
		_, err := f.refunds.CreateRefund(ctx, apprefund.CreateRefundRequest{
			SaleID:       s.ID,
			RefundType:   "partial",
			RefundMethod: "cash",
			Reason:       "arrependimento",
			Items: []apprefund.CreateRefundItemInput{{
				SaleItemID: &id,
				Quantity:   decimal.NewFromInt(1),
				UnitPrice:  decimal.NewFromInt(110),
			}},
			CreatedBy: f.actor,
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Zero(t, f.count(t, &models.RefundModel{}))
	})
}
