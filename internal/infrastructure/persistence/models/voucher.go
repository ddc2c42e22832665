package models

import (
	"time"

	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherModel is the persistence model for the Voucher aggregate root.
type VoucherModel struct {
	AggregateModel
	Code             string          `gorm:"type:varchar(32);not null;uniqueIndex"`
	OriginalSaleID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	RefundID         *uuid.UUID      `gorm:"type:uuid;uniqueIndex"`
	CustomerID       *uuid.UUID      `gorm:"type:uuid;index"`
	CustomerName     string          `gorm:"type:varchar(200)"`
	CustomerDocument string          `gorm:"type:varchar(50);index"`
	OriginalValue    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CurrentValue     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExpiresAt        *time.Time      `gorm:"index"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	IsTransferable   bool            `gorm:"not null;default:false"`
	CancelledAt      *time.Time
	CancelledBy      *uuid.UUID `gorm:"type:uuid"`
	CancelReason     string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (VoucherModel) TableName() string {
	return "vouchers"
}

// ToDomain converts the persistence model to a domain Voucher
func (m *VoucherModel) ToDomain() *voucher.Voucher {
	return &voucher.Voucher{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		OriginalSaleID:    m.OriginalSaleID,
		RefundID:          m.RefundID,
		Customer: voucher.Customer{
			ID:       m.CustomerID,
			Name:     m.CustomerName,
			Document: m.CustomerDocument,
		},
		OriginalValue:  m.OriginalValue,
		CurrentValue:   m.CurrentValue,
		ExpiresAt:      m.ExpiresAt,
		Status:         voucher.Status(m.Status),
		IsTransferable: m.IsTransferable,
		CancelledAt:    m.CancelledAt,
		CancelledBy:    m.CancelledBy,
		CancelReason:   m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain Voucher
func (m *VoucherModel) FromDomain(v *voucher.Voucher) {
	m.FromDomainAggregateRoot(v.BaseAggregateRoot)
	m.Code = v.Code
	m.OriginalSaleID = v.OriginalSaleID
	m.RefundID = v.RefundID
	m.CustomerID = v.Customer.ID
	m.CustomerName = v.Customer.Name
	m.CustomerDocument = v.Customer.Document
	m.OriginalValue = v.OriginalValue
	m.CurrentValue = v.CurrentValue
	m.ExpiresAt = v.ExpiresAt
	m.Status = string(v.Status)
	m.IsTransferable = v.IsTransferable
	m.CancelledAt = v.CancelledAt
	m.CancelledBy = v.CancelledBy
	m.CancelReason = v.CancelReason
}

// VoucherModelFromDomain creates a persistence model from a domain Voucher
func VoucherModelFromDomain(v *voucher.Voucher) *VoucherModel {
	m := &VoucherModel{}
	m.FromDomain(v)
	return m
}

// VoucherUsageModel is an append-only row of a voucher's redemption history.
type VoucherUsageModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VoucherID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_voucher_usage_voucher_time,priority:1;uniqueIndex:idx_voucher_usage_voucher_seq,priority:1"`
	SaleID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Actor            uuid.UUID       `gorm:"type:uuid;not null"`
	CustomerDocument string          `gorm:"type:varchar(50)"`
	Sequence         int             `gorm:"not null;uniqueIndex:idx_voucher_usage_voucher_seq,priority:2"`
	CreatedAt        time.Time       `gorm:"not null;index:idx_voucher_usage_voucher_time,priority:2"`
}

// TableName returns the table name for GORM
func (VoucherUsageModel) TableName() string {
	return "voucher_usages"
}

// ToDomain converts the persistence model to a domain UsageRecord
func (m *VoucherUsageModel) ToDomain() voucher.UsageRecord {
	return voucher.UsageRecord{
		ID:               m.ID,
		VoucherID:        m.VoucherID,
		SaleID:           m.SaleID,
		Amount:           m.Amount,
		BalanceAfter:     m.BalanceAfter,
		Actor:            m.Actor,
		CustomerDocument: m.CustomerDocument,
		Sequence:         m.Sequence,
		CreatedAt:        m.CreatedAt,
	}
}

// VoucherUsageModelFromDomain creates a persistence model from a domain UsageRecord
func VoucherUsageModelFromDomain(r *voucher.UsageRecord) *VoucherUsageModel {
	return &VoucherUsageModel{
		ID:               r.ID,
		VoucherID:        r.VoucherID,
		SaleID:           r.SaleID,
		Amount:           r.Amount,
		BalanceAfter:     r.BalanceAfter,
		Actor:            r.Actor,
		CustomerDocument: r.CustomerDocument,
		Sequence:         r.Sequence,
		CreatedAt:        r.CreatedAt,
	}
}
