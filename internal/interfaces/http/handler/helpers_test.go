package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apprefund "github.com/erp/refunds/internal/application/refund"
	appvoucher "github.com/erp/refunds/internal/application/voucher"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/cache"
	"github.com/erp/refunds/internal/infrastructure/persistence"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/erp/refunds/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// testEnv is a gin engine wired to real services over an in-memory database
type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	actor  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
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

	vouchers := persistence.NewGormVoucherRepository(db)
	cfg := apprefund.DefaultConfig()
	cfg.VoucherValidity = 0
	refunds := apprefund.NewService(
		persistence.NewGormRefundRepository(db),
		persistence.NewGormTransactionScope(db),
		voucher.NewRandomCodeGenerator("VC"),
		nil,
		cfg,
	)
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	refunds.SetIdempotencyStore(store)

	rh := NewRefundHandler(refunds)
	vh := NewVoucherHandler(
		appvoucher.NewService(vouchers, nil),
		appvoucher.NewAuditService(vouchers, nil, 10),
		appvoucher.NewExpirationService(vouchers, nil),
	)

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Actor(middleware.ActorConfig{}))
	api := engine.Group("/api/v1")
	api.POST("/refunds", rh.Create)
	api.GET("/refunds", rh.List)
	api.GET("/refunds/:id", rh.Get)
	api.POST("/refunds/:id/approve", rh.Approve)
	api.POST("/refunds/:id/complete", rh.Complete)
	api.POST("/refunds/:id/cancel", rh.Cancel)
	api.GET("/vouchers", vh.List)
	api.GET("/vouchers/check/:code", vh.Check)
	api.POST("/vouchers/expire", vh.Expire)
	api.POST("/vouchers/audit", vh.Audit)
	api.GET("/vouchers/:id", vh.Get)
	api.GET("/vouchers/:id/history", vh.History)
	api.POST("/vouchers/:id/use", vh.Use)
	api.POST("/vouchers/:id/cancel", vh.Cancel)
	api.POST("/vouchers/:id/verify", vh.Verify)

	return &testEnv{t: t, db: db, engine: engine, actor: uuid.New()}
}

// seedSale inserts a paid sale with one line per quantity/price pair, plus a
// stock row for each product so completed refunds can restock
func (e *testEnv) seedSale(lines ...[2]string) *models.SaleModel {
	e.t.Helper()

	now := time.Now()
	customerID := uuid.New()
	s := &models.SaleModel{
		BaseModel:    models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		SaleNumber:   "S-" + uuid.NewString()[:8],
		Status:       "paid",
		CustomerID:   &customerID,
		CustomerName: "Maria Silva",
	}
	total := decimal.Zero
	for _, line := range lines {
		qty := decimal.RequireFromString(line[0])
		price := decimal.RequireFromString(line[1])
		s.Items = append(s.Items, models.SaleItemModel{
			ID:          uuid.New(),
			SaleID:      s.ID,
			ProductID:   uuid.New(),
			ProductName: "Blender",
			Quantity:    qty,
			UnitPrice:   price,
		})
		total = total.Add(qty.Mul(price))
	}
	s.Total = total
	require.NoError(e.t, e.db.Create(s).Error)
	for _, item := range s.Items {
		require.NoError(e.t, e.db.Create(&models.ProductStockModel{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UpdatedAt:   now,
		}).Error)
	}
	return s
}

// do sends a request as the env's actor; a nil body sends no payload
func (e *testEnv) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.doAs(e.actor.String(), method, path, body, headers...)
}

func (e *testEnv) doAs(actor, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(middleware.UserIDHeader, actor)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// envelope mirrors dto.Response with raw data for typed decoding
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"request_id"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total    int64 `json:"total"`
		Page     int   `json:"page"`
		PageSize int   `json:"page_size"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// createRefund posts a partial refund of qty units of the sale's first line
func (e *testEnv) createRefund(s *models.SaleModel, method, qty string) apprefund.RefundResponse {
	e.t.Helper()

	itemID := s.Items[0].ID
	w := e.do(http.MethodPost, "/api/v1/refunds", map[string]any{
		"sale_id":       s.ID,
		"refund_type":   "partial",
		"refund_method": method,
		"reason":        "defective",
		"items": []map[string]any{
			{"sale_item_id": itemID, "quantity": qty, "return_to_stock": true},
		},
		"customer": map[string]any{"document": "123.456.789-00"},
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	var r apprefund.RefundResponse
	decode(e.t, w, &r)
	return r
}

// issueVoucher runs a voucher refund through approval and completion
func (e *testEnv) issueVoucher(s *models.SaleModel, qty string) appvoucher.VoucherResponse {
	e.t.Helper()

	r := e.createRefund(s, "voucher", qty)
	w := e.do(http.MethodPost, "/api/v1/refunds/"+r.ID.String()+"/approve", nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/api/v1/refunds/"+r.ID.String()+"/complete", nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var completed apprefund.RefundResponse
	decode(e.t, w, &completed)
	require.NotNil(e.t, completed.VoucherID)

	w = e.do(http.MethodGet, "/api/v1/vouchers/"+completed.VoucherID.String(), nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var v appvoucher.VoucherResponse
	decode(e.t, w, &v)
	return v
}
