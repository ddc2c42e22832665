package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows refund listings. From is inclusive and To is exclusive.
type Filter struct {
	Status   *Status
	SaleID   *uuid.UUID
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// Repository persists refunds and their lines
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Refund, error)

	// FindByIDForUpdate loads a refund and locks its row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Refund, error)

	FindByIdempotencyKey(ctx context.Context, key string) (*Refund, error)

	// FindInFlightByFingerprint finds a pending or approved refund with the same request digest
	FindInFlightByFingerprint(ctx context.Context, saleID uuid.UUID, fingerprint string) (*Refund, error)

	FindAll(ctx context.Context, filter Filter) ([]Refund, int64, error)

	// Create inserts the refund and all of its lines in one write
	Create(ctx context.Context, r *Refund) error

	// SaveStatus persists status fields, guarded by the aggregate version
	SaveStatus(ctx context.Context, r *Refund) error
}

// NumberSequence hands out refund numbers
type NumberSequence interface {
	// Next returns the next value of the named counter
	Next(ctx context.Context, name string) (int64, error)
}
