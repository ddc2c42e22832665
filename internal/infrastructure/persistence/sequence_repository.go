package persistence

import (
	"context"
	"time"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository implements refund.NumberSequence on the number_sequences table.
// Next must run inside a transaction: the increment holds the row lock until commit.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Next increments the named counter and returns its new value. Counters start at 1.
func (r *GormSequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	db := r.db.WithContext(ctx)
	now := time.Now()

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SequenceModel{Name: name, Value: 0, UpdatedAt: now}).Error; err != nil {
		return 0, err
	}

	if err := db.Model(&models.SequenceModel{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"value":      gorm.Expr("value + 1"),
			"updated_at": now,
		}).Error; err != nil {
		return 0, err
	}

	var seq models.SequenceModel
	if err := db.First(&seq, "name = ?", name).Error; err != nil {
		return 0, err
	}
	return seq.Value, nil
}

// Ensure GormSequenceRepository implements refund.NumberSequence
var _ refund.NumberSequence = (*GormSequenceRepository)(nil)
