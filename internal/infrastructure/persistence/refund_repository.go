package persistence

import (
	"context"
	"errors"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRefundRepository implements refund.Repository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// FindByID finds a refund by its ID
func (r *GormRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds a refund and locks its row for the rest of the transaction
func (r *GormRefundRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindByIdempotencyKey finds the refund created under a client key
func (r *GormRefundRepository) FindByIdempotencyKey(ctx context.Context, key string) (*refund.Refund, error) {
	return r.first(r.db.WithContext(ctx).Where("idempotency_key = ?", key))
}

// FindInFlightByFingerprint finds a pending or approved refund with the same request digest
func (r *GormRefundRepository) FindInFlightByFingerprint(ctx context.Context, saleID uuid.UUID, fingerprint string) (*refund.Refund, error) {
	return r.first(r.db.WithContext(ctx).
		Where("sale_id = ? AND request_fingerprint = ?", saleID, fingerprint).
		Where("status IN ?", []string{string(refund.StatusPending), string(refund.StatusApproved)}).
		Order("created_at DESC"))
}

// FindAll lists refunds matching the filter, newest first unless ordered otherwise, with the total count
func (r *GormRefundRepository) FindAll(ctx context.Context, filter refund.Filter) ([]refund.Refund, int64, error) {
	var total int64
	countQuery := r.applyFilter(r.db.WithContext(ctx).Model(&models.RefundModel{}), filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.RefundModel
	query := r.applyFilter(r.db.WithContext(ctx), filter)
	if err := paginate(query, filter.Page, filter.PageSize).
		Preload("Items", orderItems).
		Order(sortClause(filter.OrderBy, filter.OrderDir, RefundSortFields)).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	refunds := make([]refund.Refund, len(rows))
	for i := range rows {
		refunds[i] = *rows[i].ToDomain()
	}
	return refunds, total, nil
}

// Create inserts the refund together with its lines
func (r *GormRefundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	model := models.RefundModelFromDomain(rf)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("Refund %s already exists", rf.RefundNumber)
		}
		return err
	}
	return nil
}

// SaveStatus persists the lifecycle fields of a refund. The write only applies
// when the stored version still matches the aggregate, otherwise a conflict is returned.
func (r *GormRefundRepository) SaveStatus(ctx context.Context, rf *refund.Refund) error {
	result := r.db.WithContext(ctx).
		Model(&models.RefundModel{}).
		Where("id = ? AND version = ?", rf.ID, rf.Version).
		Updates(map[string]any{
			"status":        string(rf.Status),
			"voucher_id":    rf.VoucherID,
			"approved_at":   rf.ApprovedAt,
			"approved_by":   rf.ApprovedBy,
			"completed_at":  rf.CompletedAt,
			"completed_by":  rf.CompletedBy,
			"cancelled_at":  rf.CancelledAt,
			"cancelled_by":  rf.CancelledBy,
			"cancel_reason": rf.CancelReason,
			"updated_at":    rf.UpdatedAt,
			"version":       rf.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("Refund %s was modified concurrently", rf.RefundNumber)
	}
	rf.IncrementVersion()
	return nil
}

func (r *GormRefundRepository) first(query *gorm.DB) (*refund.Refund, error) {
	var model models.RefundModel
	if err := query.Preload("Items", orderItems).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormRefundRepository) applyFilter(query *gorm.DB, filter refund.Filter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.SaleID != nil {
		query = query.Where("sale_id = ?", *filter.SaleID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	return query
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// paginate applies offset/limit for a 1-based page
func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	offset := shared.Filter{Page: page, PageSize: pageSize}.Offset()
	return query.Offset(offset).Limit(pageSize)
}

// Ensure GormRefundRepository implements refund.Repository
var _ refund.Repository = (*GormRefundRepository)(nil)
