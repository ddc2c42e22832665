package handler

import (
	"strings"

	apprefund "github.com/erp/refunds/internal/application/refund"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets clients retry refund creation safely
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 200

// RefundHandler handles refund API endpoints
type RefundHandler struct {
	BaseHandler
	refunds *apprefund.Service
}

// NewRefundHandler creates a new RefundHandler
func NewRefundHandler(refunds *apprefund.Service) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

// Create godoc
//
//	@ID				createRefund
//	@Summary		Create a refund
//	@Description	Validates the request against the sale and stores a pending refund.
//	@Description	Retries with the same Idempotency-Key return the original refund.
//	@Tags			refunds
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string							false	"Client retry key"
//	@Param			request			body		apprefund.CreateRefundRequest	true	"Refund request"
//	@Success		201				{object}	dto.Response
//	@Failure		400				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Router			/refunds [post]
func (h *RefundHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req apprefund.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	req.CreatedBy = actor
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key is too long")
		return
	}

	refund, err := h.refunds.CreateRefund(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, refund)
}

// List godoc
//
//	@ID				listRefunds
//	@Summary		List refunds
//	@Tags			refunds
//	@Produce		json
//	@Param			status		query		string	false	"pending, approved, completed or cancelled"
//	@Param			sale_id		query		string	false	"Sale ID"	format(uuid)
//	@Param			start_date	query		string	false	"Created on or after (YYYY-MM-DD)"
//	@Param			end_date	query		string	false	"Created on or before (YYYY-MM-DD)"
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Param			order_by	query		string	false	"Sort column, e.g. created_at or total_refund_value"
//	@Param			order_dir	query		string	false	"asc or desc"
//	@Success		200			{object}	dto.Response
//	@Failure		400			{object}	dto.Response
//	@Router			/refunds [get]
func (h *RefundHandler) List(c *gin.Context) {
	var filter apprefund.ListRefundsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}
	saleID, ok := h.optionalUUIDQuery(c, "sale_id")
	if !ok {
		return
	}
	filter.SaleID = saleID

	page, err := h.refunds.ListRefunds(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
//
//	@ID				getRefund
//	@Summary		Get a refund with its items
//	@Tags			refunds
//	@Produce		json
//	@Param			id	path		string	true	"Refund ID"	format(uuid)
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/refunds/{id} [get]
func (h *RefundHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c, "id", "refund")
	if !ok {
		return
	}

	refund, err := h.refunds.GetRefund(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// Approve godoc
//
//	@ID				approveRefund
//	@Summary		Approve a pending refund
//	@Tags			refunds
//	@Produce		json
//	@Param			id	path		string	true	"Refund ID"	format(uuid)
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Failure		409	{object}	dto.Response
//	@Router			/refunds/{id}/approve [post]
func (h *RefundHandler) Approve(c *gin.Context) {
	id, ok := h.parseID(c, "id", "refund")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	refund, err := h.refunds.ApproveRefund(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// Complete godoc
//
//	@ID				completeRefund
//	@Summary		Complete an approved refund
//	@Description	Restocks returned items and either reverses the sale's payment or issues a store-credit voucher.
//	@Tags			refunds
//	@Produce		json
//	@Param			id	path		string	true	"Refund ID"	format(uuid)
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Failure		409	{object}	dto.Response
//	@Router			/refunds/{id}/complete [post]
func (h *RefundHandler) Complete(c *gin.Context) {
	id, ok := h.parseID(c, "id", "refund")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	refund, err := h.refunds.CompleteRefund(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// Cancel godoc
//
//	@ID				cancelRefund
//	@Summary		Cancel a pending or approved refund
//	@Tags			refunds
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Refund ID"	format(uuid)
//	@Param			request	body		apprefund.CancelRefundRequest	true	"Cancel reason"
//	@Success		200		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Router			/refunds/{id}/cancel [post]
func (h *RefundHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c, "id", "refund")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req apprefund.CancelRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	refund, err := h.refunds.CancelRefund(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}
