package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormVoucherRepository implements voucher.Repository using GORM
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository creates a new GormVoucherRepository
func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// FindByID finds a voucher by its ID
func (r *GormVoucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByCode finds a voucher by its code, ignoring case and separators
func (r *GormVoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	normalized := voucher.NormalizeCode(code)
	if normalized == "" {
		return nil, shared.ErrNotFound
	}
	return r.first(r.db.WithContext(ctx).Where("code = ?", normalized))
}

// FindAll lists vouchers matching the filter, newest first unless ordered otherwise, with the total count
func (r *GormVoucherRepository) FindAll(ctx context.Context, filter voucher.Filter) ([]voucher.Voucher, int64, error) {
	var total int64
	countQuery := r.applyFilter(r.db.WithContext(ctx).Model(&models.VoucherModel{}), filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.VoucherModel
	query := r.applyFilter(r.db.WithContext(ctx), filter)
	if err := paginate(query, filter.Page, filter.PageSize).
		Order(sortClause(filter.OrderBy, filter.OrderDir, VoucherSortFields)).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toVouchers(rows), total, nil
}

// CodeExists reports whether a code is already taken
func (r *GormVoucherRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.VoucherModel{}).
		Where("code = ?", voucher.NormalizeCode(code)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a newly issued voucher
func (r *GormVoucherRepository) Create(ctx context.Context, v *voucher.Voucher) error {
	if err := r.db.WithContext(ctx).Create(models.VoucherModelFromDomain(v)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("Voucher %s already exists", v.Code)
		}
		return err
	}
	return nil
}

// Redeem spends part of a voucher's balance. The usability and balance checks
// and the decrement are a single conditional UPDATE, so concurrent redemptions
// are serialized by the database and can never overdraw the voucher. The usage
// record is inserted in the same transaction.
func (r *GormVoucherRepository) Redeem(ctx context.Context, req voucher.Redemption) (*voucher.UsageRecord, error) {
	if !req.Amount.IsPositive() {
		return nil, shared.NewValidationError("Redemption amount must be positive")
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	var record *voucher.UsageRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.VoucherModel{}).
			Where("id = ? AND status = ? AND current_value >= ?", req.VoucherID, string(voucher.StatusActive), req.Amount).
			Where("(expires_at IS NULL OR expires_at > ?)", at).
			Updates(map[string]any{
				"current_value": gorm.Expr("current_value - ?", req.Amount),
				"status": gorm.Expr("CASE WHEN current_value - ? <= 0 THEN ? ELSE status END",
					req.Amount, string(voucher.StatusUsed)),
				"version":    gorm.Expr("version + 1"),
				"updated_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return classifyRejectedRedemption(tx, req, at)
		}

		// The decrement holds the row lock, so the bumped version is this
		// redemption's position in the voucher's history.
		var balance decimal.Decimal
		var version int
		if err := tx.Model(&models.VoucherModel{}).
			Where("id = ?", req.VoucherID).
			Select("current_value, version").
			Row().Scan(&balance, &version); err != nil {
			return err
		}

		record = voucher.NewUsageRecord(req.VoucherID, req.SaleID, req.Amount, balance, req.Actor, req.CustomerDocument, at)
		record.Sequence = version
		return tx.Create(models.VoucherUsageModelFromDomain(record)).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// classifyRejectedRedemption re-reads a voucher whose conditional decrement
// matched no row and reports why the redemption was refused.
func classifyRejectedRedemption(tx *gorm.DB, req voucher.Redemption, at time.Time) error {
	var model models.VoucherModel
	if err := tx.First(&model, "id = ?", req.VoucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("Voucher", req.VoucherID)
		}
		return err
	}
	if err := model.ToDomain().CheckRedeemable(req.Amount, at); err != nil {
		return err
	}
	return shared.NewConflictError("Voucher %s changed during redemption, retry", model.Code)
}

// ExpireDue moves every active voucher whose expiry is at or before now to expired
func (r *GormVoucherRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VoucherModel{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", string(voucher.StatusActive), now).
		Updates(map[string]any{
			"status":     string(voucher.StatusExpired),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Cancel persists a cancelled voucher, provided the stored row is still active
func (r *GormVoucherRepository) Cancel(ctx context.Context, v *voucher.Voucher) error {
	result := r.db.WithContext(ctx).
		Model(&models.VoucherModel{}).
		Where("id = ? AND status = ?", v.ID, string(voucher.StatusActive)).
		Updates(map[string]any{
			"status":        string(v.Status),
			"cancelled_at":  v.CancelledAt,
			"cancelled_by":  v.CancelledBy,
			"cancel_reason": v.CancelReason,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    v.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("Voucher %s is no longer active", v.Code)
	}
	v.IncrementVersion()
	return nil
}

// History returns usage records of a voucher in the order they were committed
func (r *GormVoucherRepository) History(ctx context.Context, voucherID uuid.UUID) ([]voucher.UsageRecord, error) {
	var rows []models.VoucherUsageModel
	if err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("sequence ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]voucher.UsageRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

// ListBatch returns up to limit vouchers with an ID greater than afterID, ordered by ID
func (r *GormVoucherRepository) ListBatch(ctx context.Context, afterID uuid.UUID, limit int) ([]voucher.Voucher, error) {
	var rows []models.VoucherModel
	if err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVouchers(rows), nil
}

// OutstandingBalance sums the balance of active vouchers and counts them
func (r *GormVoucherRepository) OutstandingBalance(ctx context.Context) (decimal.Decimal, int64, error) {
	var result struct {
		Balance decimal.NullDecimal
		Count   int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.VoucherModel{}).
		Select("SUM(current_value) AS balance, COUNT(*) AS count").
		Where("status = ?", string(voucher.StatusActive)).
		Scan(&result).Error; err != nil {
		return decimal.Zero, 0, err
	}
	if !result.Balance.Valid {
		return decimal.Zero, result.Count, nil
	}
	return result.Balance.Decimal, result.Count, nil
}

func (r *GormVoucherRepository) first(query *gorm.DB) (*voucher.Voucher, error) {
	var model models.VoucherModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormVoucherRepository) applyFilter(query *gorm.DB, filter voucher.Filter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CustomerDocument != "" {
		query = query.Where("customer_document = ?", filter.CustomerDocument)
	}
	return query
}

func toVouchers(rows []models.VoucherModel) []voucher.Voucher {
	vouchers := make([]voucher.Voucher, len(rows))
	for i := range rows {
		vouchers[i] = *rows[i].ToDomain()
	}
	return vouchers
}

// Ensure GormVoucherRepository implements voucher.Repository
var _ voucher.Repository = (*GormVoucherRepository)(nil)
