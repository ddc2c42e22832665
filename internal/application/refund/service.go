// Package refund orchestrates refund requests: validation against the original
// sale, approval, and the atomic completion that restocks goods and either
// reverses the payment or issues store credit.
package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/refunds/internal/domain/refund"
	"github.com/erp/refunds/internal/domain/sale"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const refundNumberSequence = "refund_number"

// maxCodeAttempts bounds voucher code regeneration on collision
const maxCodeAttempts = 5

// Config holds refund service settings
type Config struct {
	// NumberPrefix prefixes refund numbers, e.g. RF-2026-000042
	NumberPrefix string

	// IdempotencyTTL is how long idempotency keys are remembered
	IdempotencyTTL time.Duration

	// VoucherValidity is added to the completion time to set voucher expiry; zero means no expiry
	VoucherValidity time.Duration

	// VoucherTransferable is the is_transferable flag on issued vouchers
	VoucherTransferable bool
}

// DefaultConfig returns the default refund service configuration
func DefaultConfig() Config {
	return Config{
		NumberPrefix:        "RF",
		IdempotencyTTL:      24 * time.Hour,
		VoucherValidity:     180 * 24 * time.Hour,
		VoucherTransferable: false,
	}
}

// Service handles refund business operations
type Service struct {
	refunds     refund.Repository
	scope       TransactionScope
	idempotency shared.IdempotencyStore
	codes       voucher.CodeGenerator
	restock     *StockReturnCoordinator
	publisher   shared.EventPublisher
	metrics     *telemetry.LedgerMetrics
	logger      *zap.Logger
	config      Config
	now         func() time.Time
}

// NewService creates a refund service
func NewService(
	refunds refund.Repository,
	scope TransactionScope,
	codes voucher.CodeGenerator,
	log *zap.Logger,
	config Config,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if config.NumberPrefix == "" {
		config.NumberPrefix = "RF"
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = 24 * time.Hour
	}
	return &Service{
		refunds: refunds,
		scope:   scope,
		codes:   codes,
		restock: NewStockReturnCoordinator(log),
		logger:  log,
		config:  config,
		now:     time.Now,
	}
}

// SetIdempotencyStore enables caller-supplied idempotency keys
func (s *Service) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetEventPublisher sets the publisher for refund and voucher events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *Service) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// CreateRefund validates a refund request against its sale and stores it as pending.
//
// With an idempotency key a retried request returns the refund created by the
// first attempt. Without one, an identical in-flight request for the same sale
// is rejected as a conflict.
func (s *Service) CreateRefund(ctx context.Context, req CreateRefundRequest) (*RefundResponse, error) {
	log := logger.WithLogger(ctx, s.logger)

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if existing, err := s.replay(ctx, req.IdempotencyKey); err != nil || existing != nil {
			return existing, err
		}
		claimed, err := s.idempotency.Claim(ctx, req.IdempotencyKey, s.config.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			return nil, shared.NewConflictError("A request with idempotency key %s is already in progress", req.IdempotencyKey)
		}
	}

	created, err := s.createRefund(ctx, req)
	if err != nil {
		if req.IdempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, req.IdempotencyKey); relErr != nil {
				log.Warn("Failed to release idempotency key", zap.String("key", req.IdempotencyKey), zap.Error(relErr))
			}
		}
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Complete(ctx, req.IdempotencyKey, created.ID.String(), s.config.IdempotencyTTL); err != nil {
			log.Warn("Failed to record idempotency key", zap.String("key", req.IdempotencyKey), zap.Error(err))
		}
	}

	log.Info("Refund created",
		zap.String("refund_id", created.ID.String()),
		zap.String("refund_number", created.RefundNumber),
		zap.String("sale_id", created.SaleID.String()),
		zap.String("total", created.TotalRefundValue.StringFixed(2)),
		zap.String("method", string(created.Method)),
	)
	if s.metrics != nil {
		s.metrics.RecordRefundCreated(ctx, string(created.Method), created.TotalRefundValue)
	}
	s.publishEvents(ctx, created)

	response := ToRefundResponse(created)
	return &response, nil
}

// replay returns the refund a completed idempotency key points at
func (s *Service) replay(ctx context.Context, key string) (*RefundResponse, error) {
	value, found, err := s.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if found && value != shared.ClaimPending {
		id, parseErr := uuid.Parse(value)
		if parseErr == nil {
			r, err := s.refunds.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			response := ToRefundResponse(r)
			return &response, nil
		}
	}

	// The cache may have lost the key; the refunds table is authoritative.
	r, err := s.refunds.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	response := ToRefundResponse(r)
	return &response, nil
}

func (s *Service) createRefund(ctx context.Context, req CreateRefundRequest) (*refund.Refund, error) {
	refundType := refund.Type(req.RefundType)
	if !refundType.IsValid() {
		return nil, shared.NewValidationError("Invalid refund type: %s", req.RefundType)
	}
	method := refund.Method(req.RefundMethod)
	if !method.IsValid() {
		return nil, shared.NewValidationError("Invalid refund method: %s", req.RefundMethod)
	}
	if len(req.Items) == 0 {
		return nil, shared.NewValidationError("Refund must contain at least one item")
	}

	inputs := make([]refund.ItemInput, len(req.Items))
	for i, item := range req.Items {
		in := refund.ItemInput{
			SaleItemID:    item.SaleItemID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Reason:        item.Reason,
			Condition:     refund.Condition(item.Condition),
			ReturnToStock: item.ReturnToStock,
		}
		if item.ProductID != nil {
			in.ProductID = *item.ProductID
		}
		if in.SaleItemID == nil && in.ProductID == uuid.Nil {
			return nil, shared.NewValidationError("Item %d needs a sale_item_id or a product_id", i+1)
		}
		inputs[i] = in
	}

	var created *refund.Refund
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		snapshot, err := loadSnapshot(ctx, repos.Sales(), req.SaleID)
		if err != nil {
			return err
		}

		items, err := refund.ResolveItems(snapshot, inputs)
		if err != nil {
			return err
		}
		if err := refund.CheckEligibility(snapshot, refundType, items); err != nil {
			return err
		}

		if req.IdempotencyKey == "" {
			fingerprint := refund.Fingerprint(req.SaleID, items)
			dup, err := repos.Refunds().FindInFlightByFingerprint(ctx, req.SaleID, fingerprint)
			if err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			if dup != nil {
				return shared.NewConflictError("Refund %s with the same items is already %s", dup.RefundNumber, dup.Status)
			}
		}

		number, err := s.nextRefundNumber(ctx, repos.Sequences())
		if err != nil {
			return err
		}

		r, err := refund.NewRefund(refund.NewRefundParams{
			SaleID:         req.SaleID,
			RefundNumber:   number,
			Type:           refundType,
			Method:         method,
			Reason:         req.Reason,
			ReasonDetails:  req.ReasonDetails,
			Customer:       customerRef(req.Customer, snapshot.Sale),
			CreatedBy:      req.CreatedBy,
			Items:          items,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return err
		}

		if err := repos.Refunds().Create(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func loadSnapshot(ctx context.Context, sales sale.Reader, saleID uuid.UUID) (refund.SaleSnapshot, error) {
	sl, err := sales.FindSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return refund.SaleSnapshot{}, shared.NewNotFoundError("Sale", saleID)
		}
		return refund.SaleSnapshot{}, err
	}
	quantities, err := sales.RefundedQuantities(ctx, saleID)
	if err != nil {
		return refund.SaleSnapshot{}, err
	}
	value, err := sales.RefundedValue(ctx, saleID)
	if err != nil {
		return refund.SaleSnapshot{}, err
	}
	return refund.SaleSnapshot{Sale: sl, RefundedQuantities: quantities, RefundedValue: value}, nil
}

func customerRef(in *CustomerInput, sl *sale.Sale) refund.CustomerRef {
	ref := refund.CustomerRef{ID: sl.CustomerID, Name: sl.CustomerName}
	if in == nil {
		return ref
	}
	if in.ID != nil {
		ref.ID = in.ID
	}
	if in.Name != "" {
		ref.Name = in.Name
	}
	ref.Document = in.Document
	return ref
}

func (s *Service) nextRefundNumber(ctx context.Context, seq refund.NumberSequence) (string, error) {
	year := s.now().Year()
	n, err := seq.Next(ctx, fmt.Sprintf("%s-%d", refundNumberSequence, year))
	if err != nil {
		return "", fmt.Errorf("allocate refund number: %w", err)
	}
	return fmt.Sprintf("%s-%d-%06d", s.config.NumberPrefix, year, n), nil
}

// GetRefund returns a refund by ID
func (s *Service) GetRefund(ctx context.Context, id uuid.UUID) (*RefundResponse, error) {
	r, err := s.refunds.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToRefundResponse(r)
	return &response, nil
}

// ListRefunds returns refunds filtered by status, sale and creation date range
func (s *Service) ListRefunds(ctx context.Context, in ListRefundsFilter) (*shared.Paginated[RefundResponse], error) {
	paging := shared.Filter{
		Page:     in.Page,
		PageSize: in.PageSize,
		OrderBy:  in.OrderBy,
		OrderDir: in.OrderDir,
	}.Normalize(shared.MaxPageSize)

	filter := refund.Filter{
		SaleID:   in.SaleID,
		From:     in.StartDate,
		Page:     paging.Page,
		PageSize: paging.PageSize,
		OrderBy:  paging.OrderBy,
		OrderDir: paging.OrderDir,
	}
	if in.Status != "" {
		status := refund.Status(in.Status)
		if !status.IsValid() {
			return nil, shared.NewValidationError("Invalid refund status: %s", in.Status)
		}
		filter.Status = &status
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, shared.NewValidationError("end_date must not be before start_date")
	}
	if in.EndDate != nil {
		// end_date covers the whole day
		to := in.EndDate.AddDate(0, 0, 1)
		filter.To = &to
	}

	refunds, total, err := s.refunds.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToRefundResponses(refunds), total, paging.Page, paging.PageSize)
	return &page, nil
}

// ApproveRefund moves a pending refund to approved
func (s *Service) ApproveRefund(ctx context.Context, id, actor uuid.UUID) (*RefundResponse, error) {
	r, err := s.transition(ctx, id, func(_ TransactionalRepositories, r *refund.Refund) error {
		return r.Approve(actor)
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Refund approved",
		zap.String("refund_number", r.RefundNumber),
		zap.String("approved_by", actor.String()),
	)
	response := ToRefundResponse(r)
	return &response, nil
}

// CancelRefund moves a pending or approved refund to cancelled
func (s *Service) CancelRefund(ctx context.Context, id, actor uuid.UUID, reason string) (*RefundResponse, error) {
	r, err := s.transition(ctx, id, func(_ TransactionalRepositories, r *refund.Refund) error {
		return r.Cancel(actor, reason)
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Refund cancelled",
		zap.String("refund_number", r.RefundNumber),
		zap.String("reason", reason),
	)
	if s.metrics != nil {
		s.metrics.RecordRefundCancelled(ctx, string(r.Method))
	}
	response := ToRefundResponse(r)
	return &response, nil
}

// CompleteRefund applies every side effect of an approved refund and marks it completed.
//
// Stock increments, the ledger reversal or voucher issuance and the status write
// share one transaction. If any of them fails nothing is committed and the
// refund stays approved, so the call can be retried.
func (s *Service) CompleteRefund(ctx context.Context, id, actor uuid.UUID) (*RefundResponse, error) {
	var issued *voucher.Voucher
	var restocked int

	r, err := s.transition(ctx, id, func(repos TransactionalRepositories, r *refund.Refund) error {
		if err := refund.Transitions().Transition(r.Status, refund.StatusCompleted); err != nil {
			return err
		}

		n, err := s.restock.Apply(ctx, repos.Stock(), r)
		if err != nil {
			return err
		}
		restocked = n

		var voucherID *uuid.UUID
		switch {
		case r.Method == refund.MethodVoucher:
			v, err := s.issueVoucher(ctx, repos.Vouchers(), r)
			if err != nil {
				return err
			}
			issued = v
			voucherID = &v.ID
		case r.Method.ReversesLedger():
			if err := repos.Ledger().RecordReversal(ctx, sale.Reversal{
				ID:        uuid.New(),
				SaleID:    r.SaleID,
				RefundID:  r.ID,
				Amount:    r.TotalRefundValue,
				Method:    string(r.Method),
				Actor:     actor,
				CreatedAt: s.now(),
			}); err != nil {
				return fmt.Errorf("record ledger reversal for refund %s: %w", r.RefundNumber, err)
			}
		}

		return r.Complete(actor, voucherID)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("refund_number", r.RefundNumber),
		zap.String("method", string(r.Method)),
		zap.String("total", r.TotalRefundValue.StringFixed(2)),
		zap.Int("restocked_lines", restocked),
	}
	if issued != nil {
		fields = append(fields, zap.String("voucher_code", issued.Code))
		s.publishEvents(ctx, issued)
	}
	logger.WithLogger(ctx, s.logger).Info("Refund completed", fields...)
	if s.metrics != nil {
		s.metrics.RecordRefundCompleted(ctx, string(r.Method), r.TotalRefundValue)
	}

	response := ToRefundResponse(r)
	return &response, nil
}

func (s *Service) issueVoucher(ctx context.Context, vouchers voucher.Repository, r *refund.Refund) (*voucher.Voucher, error) {
	code, err := s.uniqueCode(ctx, vouchers)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if s.config.VoucherValidity > 0 {
		t := s.now().Add(s.config.VoucherValidity)
		expiresAt = &t
	}

	v, err := voucher.NewFromRefund(voucher.IssueParams{
		Code:     code,
		RefundID: r.ID,
		SaleID:   r.SaleID,
		Customer: voucher.Customer{
			ID:       r.Customer.ID,
			Name:     r.Customer.Name,
			Document: r.Customer.Document,
		},
		Value:          r.TotalRefundValue,
		ExpiresAt:      expiresAt,
		IsTransferable: s.config.VoucherTransferable,
	})
	if err != nil {
		return nil, err
	}
	if err := vouchers.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("issue voucher for refund %s: %w", r.RefundNumber, err)
	}
	return v, nil
}

func (s *Service) uniqueCode(ctx context.Context, vouchers voucher.Repository) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", err
		}
		taken, err := vouchers.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", shared.NewConflictError("Could not allocate a unique voucher code after %d attempts", maxCodeAttempts)
}

// transition loads the refund under a row lock, applies fn and saves the new status in one transaction
func (s *Service) transition(ctx context.Context, id uuid.UUID, fn func(TransactionalRepositories, *refund.Refund) error) (*refund.Refund, error) {
	var updated *refund.Refund
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.Refunds().FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewNotFoundError("Refund", id)
			}
			return err
		}
		if err := fn(repos, r); err != nil {
			return err
		}
		if err := repos.Refunds().SaveStatus(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvents(ctx, updated)
	return updated, nil
}

func (s *Service) publishEvents(ctx context.Context, agg shared.AggregateRoot) {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish refund events", zap.Error(err))
	}
}
