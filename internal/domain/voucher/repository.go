package voucher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Filter narrows voucher listings
type Filter struct {
	Status           *Status
	CustomerID       *uuid.UUID
	CustomerDocument string
	Page             int
	PageSize         int
	OrderBy          string
	OrderDir         string
}

// Redemption is a request to spend part of a voucher's balance
type Redemption struct {
	VoucherID        uuid.UUID
	SaleID           uuid.UUID
	Amount           decimal.Decimal
	Actor            uuid.UUID
	CustomerDocument string
	At               time.Time
}

// Repository persists vouchers and their usage history
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Voucher, error)
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	FindAll(ctx context.Context, filter Filter) ([]Voucher, int64, error)

	// CodeExists reports whether a code is already taken
	CodeExists(ctx context.Context, code string) (bool, error)

	Create(ctx context.Context, v *Voucher) error

	// Redeem checks usability and balance and decrements in a single conditional
	// write, appending the usage record in the same transaction. Concurrent
	// redemptions can never overdraw the balance.
	Redeem(ctx context.Context, req Redemption) (*UsageRecord, error)

	// ExpireDue moves every active voucher whose expiry is at or before now to expired
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// Cancel withdraws the voucher if it is still active
	Cancel(ctx context.Context, v *Voucher) error

	// History returns usage records ordered by time, oldest first
	History(ctx context.Context, voucherID uuid.UUID) ([]UsageRecord, error)

	// ListBatch pages through all vouchers by ID for auditing
	ListBatch(ctx context.Context, afterID uuid.UUID, limit int) ([]Voucher, error)
}
