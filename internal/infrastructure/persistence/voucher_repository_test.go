package persistence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redemption(v *voucher.Voucher, amount string) voucher.Redemption {
	return voucher.Redemption{
		VoucherID: v.ID,
		SaleID:    uuid.New(),
		Amount:    decimal.RequireFromString(amount),
		Actor:     uuid.New(),
		At:        time.Now(),
	}
}

func TestGormVoucherRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()

	t.Run("should find a voucher by ID and by code regardless of case", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "100", nil)
		require.NoError(t, repo.Create(ctx, v))

		byID, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.Code, byID.Code)
		assert.True(t, byID.CurrentValue.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, voucher.StatusActive, byID.Status)

		byCode, err := repo.FindByCode(ctx, " "+strings.ToLower(v.Code)+" ")
		require.NoError(t, err)
		assert.Equal(t, v.ID, byCode.ID)
	})

	t.Run("should return ErrNotFound for an unknown voucher", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))

		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindByCode(ctx, "VC-NOPE")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("should report taken codes", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "10", nil)
		require.NoError(t, repo.Create(ctx, v))

		exists, err := repo.CodeExists(ctx, v.Code)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.CodeExists(ctx, "VC-FREE0000")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("should reject a second voucher with the same code", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		first := newTestVoucher(t, "10", nil)
		require.NoError(t, repo.Create(ctx, first))

		second := newTestVoucher(t, "10", nil)
		second.Code = first.Code
		err := repo.Create(ctx, second)

		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.CodeConflict, domainErr.Code)
	})
}

func TestGormVoucherRepository_Redeem(t *testing.T) {
	ctx := context.Background()

	t.Run("should decrement the balance and append a usage record", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "100", nil)
		require.NoError(t, repo.Create(ctx, v))

		record, err := repo.Redeem(ctx, redemption(v, "30"))
		require.NoError(t, err)
		assert.True(t, record.BalanceAfter.Equal(decimal.NewFromInt(70)))

		stored, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.True(t, stored.CurrentValue.Equal(decimal.NewFromInt(70)))
		assert.Equal(t, voucher.StatusActive, stored.Status)
		assert.Equal(t, 2, stored.Version)

		history, err := repo.History(ctx, v.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Amount.Equal(decimal.NewFromInt(30)))
	})

	t.Run("should mark the voucher used when the balance reaches zero", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "50", nil)
		require.NoError(t, repo.Create(ctx, v))

		_, err := repo.Redeem(ctx, redemption(v, "50"))
		require.NoError(t, err)

		stored, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.True(t, stored.CurrentValue.IsZero())
		assert.Equal(t, voucher.StatusUsed, stored.Status)

		_, err = repo.Redeem(ctx, redemption(v, "1"))
		assert.ErrorIs(t, err, shared.ErrVoucherInactive)
	})

	t.Run("should refuse amounts above the balance without writing", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "20", nil)
		require.NoError(t, repo.Create(ctx, v))

		_, err := repo.Redeem(ctx, redemption(v, "20.01"))
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)

		history, err := repo.History(ctx, v.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("should refuse an expired voucher", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		past := time.Now().Add(-time.Hour)
		v := newTestVoucher(t, "20", &past)
		require.NoError(t, repo.Create(ctx, v))

		_, err := repo.Redeem(ctx, redemption(v, "5"))
		assert.ErrorIs(t, err, shared.ErrVoucherInactive)
	})

	t.Run("should return not found for an unknown voucher", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))

		_, err := repo.Redeem(ctx, voucher.Redemption{VoucherID: uuid.New(), Amount: decimal.NewFromInt(1), At: time.Now()})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("should list history in commit order even when timestamps disagree", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "100", nil)
		require.NoError(t, repo.Create(ctx, v))

		first := redemption(v, "30")
		second := redemption(v, "20")
		second.At = first.At.Add(-time.Minute)
		_, err := repo.Redeem(ctx, first)
		require.NoError(t, err)
		_, err = repo.Redeem(ctx, second)
		require.NoError(t, err)

		history, err := repo.History(ctx, v.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.True(t, history[0].BalanceAfter.Equal(decimal.NewFromInt(70)))
		assert.True(t, history[1].BalanceAfter.Equal(decimal.NewFromInt(50)))
		assert.Less(t, history[0].Sequence, history[1].Sequence)
	})

	t.Run("should reject non-positive amounts", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "20", nil)
		require.NoError(t, repo.Create(ctx, v))

		_, err := repo.Redeem(ctx, redemption(v, "0"))
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestGormVoucherRepository_ConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	repo := NewGormVoucherRepository(newTestDB(t))
	v := newTestVoucher(t, "100", nil)
	require.NoError(t, repo.Create(ctx, v))

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Redeem(ctx, redemption(v, "30"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, shared.ErrInsufficientBalance) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, workers-3, refused)

	stored, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentValue.Equal(decimal.NewFromInt(10)))

	history, err := repo.History(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.True(t, voucher.ReplayBalance(stored.OriginalValue, history).Equal(stored.CurrentValue))
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].BalanceAfter.LessThan(history[i-1].BalanceAfter))
	}
}

func TestGormVoucherRepository_ExpireDue(t *testing.T) {
	ctx := context.Background()

	t.Run("should expire only active vouchers past their expiry", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		now := time.Now()
		past := now.Add(-time.Minute)
		future := now.Add(time.Hour)

		due := newTestVoucher(t, "10", &past)
		notDue := newTestVoucher(t, "10", &future)
		noExpiry := newTestVoucher(t, "10", nil)
		for _, v := range []*voucher.Voucher{due, notDue, noExpiry} {
			require.NoError(t, repo.Create(ctx, v))
		}

		count, err := repo.ExpireDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		stored, err := repo.FindByID(ctx, due.ID)
		require.NoError(t, err)
		assert.Equal(t, voucher.StatusExpired, stored.Status)

		count, err = repo.ExpireDue(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestGormVoucherRepository_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist the cancellation of an active voucher", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "10", nil)
		require.NoError(t, repo.Create(ctx, v))

		require.NoError(t, v.Cancel(uuid.New(), "fraud"))
		require.NoError(t, repo.Cancel(ctx, v))

		stored, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, voucher.StatusCancelled, stored.Status)
		assert.Equal(t, "fraud", stored.CancelReason)
		assert.NotNil(t, stored.CancelledAt)
	})

	t.Run("should conflict when the stored voucher is no longer active", func(t *testing.T) {
		repo := NewGormVoucherRepository(newTestDB(t))
		v := newTestVoucher(t, "10", nil)
		require.NoError(t, repo.Create(ctx, v))
		_, err := repo.Redeem(ctx, redemption(v, "10"))
		require.NoError(t, err)

		require.NoError(t, v.Cancel(uuid.New(), "fraud"))
		err = repo.Cancel(ctx, v)
		assert.ErrorIs(t, err, shared.ErrConflict)
	})
}

func TestGormVoucherRepository_Listing(t *testing.T) {
	ctx := context.Background()
	repo := NewGormVoucherRepository(newTestDB(t))

	var created []*voucher.Voucher
	for i := 0; i < 5; i++ {
		v := newTestVoucher(t, "10", nil)
		require.NoError(t, repo.Create(ctx, v))
		created = append(created, v)
	}
	require.NoError(t, created[0].Cancel(uuid.New(), "lost"))
	require.NoError(t, repo.Cancel(ctx, created[0]))

	t.Run("should filter by status and paginate", func(t *testing.T) {
		active := voucher.StatusActive
		vouchers, total, err := repo.FindAll(ctx, voucher.Filter{Status: &active, Page: 1, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Len(t, vouchers, 3)
	})

	t.Run("should walk every voucher in ID order", func(t *testing.T) {
		seen := 0
		after := uuid.Nil
		for {
			batch, err := repo.ListBatch(ctx, after, 2)
			require.NoError(t, err)
			if len(batch) == 0 {
				break
			}
			seen += len(batch)
			after = batch[len(batch)-1].ID
		}
		assert.Equal(t, 5, seen)
	})

	t.Run("should sum the balance of active vouchers", func(t *testing.T) {
		balance, count, err := repo.OutstandingBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
		assert.True(t, balance.Equal(decimal.NewFromInt(40)))
	})
}
