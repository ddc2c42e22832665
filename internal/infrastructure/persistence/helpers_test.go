package persistence

import (
	"strings"
	"testing"
	"time"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the ledger schema.
// A single connection keeps every goroutine on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// seedSale inserts a paid sale with one line per quantity/price pair
func seedSale(t *testing.T, db *gorm.DB, lines ...[2]string) *models.SaleModel {
	t.Helper()

	now := time.Now()
	s := &models.SaleModel{
		BaseModel:  models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		SaleNumber: "S-" + uuid.NewString()[:8],
		Status:     "paid",
	}
	total := decimal.Zero
	for i, line := range lines {
		qty := decimal.RequireFromString(line[0])
		price := decimal.RequireFromString(line[1])
		s.Items = append(s.Items, models.SaleItemModel{
			ID:          uuid.New(),
			SaleID:      s.ID,
			ProductID:   uuid.New(),
			ProductName: "Product " + string(rune('A'+i)),
			Quantity:    qty,
			UnitPrice:   price,
		})
		total = total.Add(qty.Mul(price))
	}
	s.Total = total
	require.NoError(t, db.Create(s).Error)
	return s
}

// newTestRefund builds a pending refund for a sale line
func newTestRefund(t *testing.T, saleID uuid.UUID, saleItemID *uuid.UUID, qty, price string) *refund.Refund {
	t.Helper()

	item, err := refund.NewItem(refund.ItemInput{
		SaleItemID:  saleItemID,
		ProductID:   uuid.New(),
		ProductName: "Product",
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   decimal.RequireFromString(price),
	})
	require.NoError(t, err)

	r, err := refund.NewRefund(refund.NewRefundParams{
		SaleID:       saleID,
		RefundNumber: "RF-" + uuid.NewString()[:8],
		Type:         refund.TypePartial,
		Method:       refund.MethodVoucher,
		Reason:       "damaged",
		CreatedBy:    uuid.New(),
		Items:        []refund.Item{*item},
	})
	require.NoError(t, err)
	return r
}

// newTestVoucher builds an active voucher worth value
func newTestVoucher(t *testing.T, value string, expiresAt *time.Time) *voucher.Voucher {
	t.Helper()

	v, err := voucher.NewFromRefund(voucher.IssueParams{
		Code:      "VC-" + strings.ToUpper(uuid.NewString()[:8]),
		RefundID:  uuid.New(),
		SaleID:    uuid.New(),
		Value:     decimal.RequireFromString(value),
		ExpiresAt: expiresAt,
		Customer:  voucher.Customer{Name: "Maria", Document: "123.456.789-00"},
	})
	require.NoError(t, err)
	return v
}
