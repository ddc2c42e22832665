package models

import (
	"time"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundModel is the persistence model for the Refund aggregate root.
type RefundModel struct {
	AggregateModel
	RefundNumber       string          `gorm:"type:varchar(30);not null;uniqueIndex"`
	SaleID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	RefundType         string          `gorm:"type:varchar(10);not null"`
	Reason             string          `gorm:"type:varchar(200);not null"`
	ReasonDetails      string          `gorm:"type:text"`
	TotalRefundValue   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RefundMethod       string          `gorm:"type:varchar(10);not null"`
	VoucherID          *uuid.UUID      `gorm:"type:uuid"`
	Status             string          `gorm:"type:varchar(20);not null;index"`
	CustomerID         *uuid.UUID      `gorm:"type:uuid;index"`
	CustomerName       string          `gorm:"type:varchar(200)"`
	CustomerDocument   string          `gorm:"type:varchar(50)"`
	CreatedBy          uuid.UUID       `gorm:"type:uuid;not null"`
	IdempotencyKey     *string         `gorm:"type:varchar(100);uniqueIndex"`
	RequestFingerprint string          `gorm:"type:varchar(64);not null;index"`
	ApprovedAt         *time.Time
	ApprovedBy         *uuid.UUID `gorm:"type:uuid"`
	CompletedAt        *time.Time
	CompletedBy        *uuid.UUID `gorm:"type:uuid"`
	CancelledAt        *time.Time
	CancelledBy        *uuid.UUID        `gorm:"type:uuid"`
	CancelReason       string            `gorm:"type:varchar(500)"`
	Items              []RefundItemModel `gorm:"foreignKey:RefundID;references:ID"`
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// ToDomain converts the persistence model to a domain Refund
func (m *RefundModel) ToDomain() *refund.Refund {
	r := &refund.Refund{
		BaseAggregateRoot:  m.ToDomainAggregateRoot(),
		SaleID:             m.SaleID,
		RefundNumber:       m.RefundNumber,
		Type:               refund.Type(m.RefundType),
		Reason:             m.Reason,
		ReasonDetails:      m.ReasonDetails,
		TotalRefundValue:   m.TotalRefundValue,
		Method:             refund.Method(m.RefundMethod),
		VoucherID:          m.VoucherID,
		Status:             refund.Status(m.Status),
		CreatedBy:          m.CreatedBy,
		RequestFingerprint: m.RequestFingerprint,
		ApprovedAt:         m.ApprovedAt,
		ApprovedBy:         m.ApprovedBy,
		CompletedAt:        m.CompletedAt,
		CompletedBy:        m.CompletedBy,
		CancelledAt:        m.CancelledAt,
		CancelledBy:        m.CancelledBy,
		CancelReason:       m.CancelReason,
		Customer: refund.CustomerRef{
			ID:       m.CustomerID,
			Name:     m.CustomerName,
			Document: m.CustomerDocument,
		},
		Items: make([]refund.Item, len(m.Items)),
	}
	if m.IdempotencyKey != nil {
		r.IdempotencyKey = *m.IdempotencyKey
	}
	for i := range m.Items {
		r.Items[i] = m.Items[i].ToDomain()
	}
	return r
}

// FromDomain populates the persistence model from a domain Refund
func (m *RefundModel) FromDomain(r *refund.Refund) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.RefundNumber = r.RefundNumber
	m.SaleID = r.SaleID
	m.RefundType = string(r.Type)
	m.Reason = r.Reason
	m.ReasonDetails = r.ReasonDetails
	m.TotalRefundValue = r.TotalRefundValue
	m.RefundMethod = string(r.Method)
	m.VoucherID = r.VoucherID
	m.Status = string(r.Status)
	m.CustomerID = r.Customer.ID
	m.CustomerName = r.Customer.Name
	m.CustomerDocument = r.Customer.Document
	m.CreatedBy = r.CreatedBy
	m.IdempotencyKey = nil
	if r.IdempotencyKey != "" {
		key := r.IdempotencyKey
		m.IdempotencyKey = &key
	}
	m.RequestFingerprint = r.RequestFingerprint
	m.ApprovedAt = r.ApprovedAt
	m.ApprovedBy = r.ApprovedBy
	m.CompletedAt = r.CompletedAt
	m.CompletedBy = r.CompletedBy
	m.CancelledAt = r.CancelledAt
	m.CancelledBy = r.CancelledBy
	m.CancelReason = r.CancelReason
	m.Items = make([]RefundItemModel, len(r.Items))
	for i := range r.Items {
		m.Items[i].FromDomain(&r.Items[i])
	}
}

// RefundModelFromDomain creates a persistence model from a domain Refund
func RefundModelFromDomain(r *refund.Refund) *RefundModel {
	m := &RefundModel{}
	m.FromDomain(r)
	return m
}

// RefundItemModel is the persistence model for a refund line.
type RefundItemModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RefundID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleItemID    *uuid.UUID      `gorm:"type:uuid;index"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName   string          `gorm:"type:varchar(200);not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason        string          `gorm:"type:varchar(500)"`
	Condition     string          `gorm:"type:varchar(20);not null;default:'novo'"`
	ReturnToStock bool            `gorm:"not null;default:false"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RefundItemModel) TableName() string {
	return "refund_items"
}

// ToDomain converts the persistence model to a domain refund Item
func (m *RefundItemModel) ToDomain() refund.Item {
	return refund.Item{
		ID:            m.ID,
		RefundID:      m.RefundID,
		SaleItemID:    m.SaleItemID,
		ProductID:     m.ProductID,
		ProductName:   m.ProductName,
		Quantity:      m.Quantity,
		UnitPrice:     m.UnitPrice,
		Subtotal:      m.Subtotal,
		Reason:        m.Reason,
		Condition:     refund.Condition(m.Condition),
		ReturnToStock: m.ReturnToStock,
		CreatedAt:     m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain refund Item
func (m *RefundItemModel) FromDomain(item *refund.Item) {
	m.ID = item.ID
	m.RefundID = item.RefundID
	m.SaleItemID = item.SaleItemID
	m.ProductID = item.ProductID
	m.ProductName = item.ProductName
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
	m.Subtotal = item.Subtotal
	m.Reason = item.Reason
	m.Condition = string(item.Condition)
	m.ReturnToStock = item.ReturnToStock
	m.CreatedAt = item.CreatedAt
}
