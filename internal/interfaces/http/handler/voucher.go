package handler

import (
	"errors"
	"strings"

	appvoucher "github.com/erp/refunds/internal/application/voucher"
	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/interfaces/http/dto"
	"github.com/erp/refunds/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// VoucherHandler handles voucher API endpoints
type VoucherHandler struct {
	BaseHandler
	vouchers   *appvoucher.Service
	audit      *appvoucher.AuditService
	expiration *appvoucher.ExpirationService
}

// NewVoucherHandler creates a new VoucherHandler
func NewVoucherHandler(
	vouchers *appvoucher.Service,
	audit *appvoucher.AuditService,
	expiration *appvoucher.ExpirationService,
) *VoucherHandler {
	return &VoucherHandler{
		vouchers:   vouchers,
		audit:      audit,
		expiration: expiration,
	}
}

// Check godoc
//
//	@ID				checkVoucher
//	@Summary		Look up a voucher by code
//	@Description	Returns the voucher and whether it can be redeemed right now.
//	@Tags			vouchers
//	@Produce		json
//	@Param			code	path		string	true	"Voucher code"
//	@Success		200		{object}	dto.Response
//	@Failure		404		{object}	dto.Response
//	@Failure		429		{object}	dto.Response
//	@Router			/vouchers/check/{code} [get]
func (h *VoucherHandler) Check(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		h.BadRequest(c, "Voucher code is required")
		return
	}

	result, err := h.vouchers.CheckVoucher(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// List godoc
//
//	@ID				listVouchers
//	@Summary		List vouchers
//	@Tags			vouchers
//	@Produce		json
//	@Param			status				query		string	false	"active, used, expired or cancelled"
//	@Param			customer_id			query		string	false	"Customer ID"	format(uuid)
//	@Param			customer_document	query		string	false	"Customer document"
//	@Param			page				query		int		false	"Page number"
//	@Param			page_size			query		int		false	"Page size"
//	@Param			order_by			query		string	false	"Sort column"
//	@Param			order_dir			query		string	false	"asc or desc"
//	@Success		200					{object}	dto.Response
//	@Failure		400					{object}	dto.Response
//	@Router			/vouchers [get]
func (h *VoucherHandler) List(c *gin.Context) {
	var filter appvoucher.ListVouchersFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}
	customerID, ok := h.optionalUUIDQuery(c, "customer_id")
	if !ok {
		return
	}
	filter.CustomerID = customerID

	page, err := h.vouchers.ListVouchers(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
//
//	@ID				getVoucher
//	@Summary		Get a voucher
//	@Tags			vouchers
//	@Produce		json
//	@Param			id	path		string	true	"Voucher ID"	format(uuid)
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/vouchers/{id} [get]
func (h *VoucherHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c, "id", "voucher")
	if !ok {
		return
	}

	v, err := h.vouchers.GetVoucher(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, v)
}

// History godoc
//
//	@ID				voucherHistory
//	@Summary		List a voucher's redemptions, oldest first
//	@Tags			vouchers
//	@Produce		json
//	@Param			id	path		string	true	"Voucher ID"	format(uuid)
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/vouchers/{id}/history [get]
func (h *VoucherHandler) History(c *gin.Context) {
	id, ok := h.parseID(c, "id", "voucher")
	if !ok {
		return
	}

	records, err := h.vouchers.FetchVoucherHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// Use godoc
//
//	@ID				useVoucher
//	@Summary		Redeem part or all of a voucher's balance
//	@Tags			vouchers
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Voucher ID"	format(uuid)
//	@Param			request	body		appvoucher.UseVoucherRequest	true	"Redemption"
//	@Success		200		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Router			/vouchers/{id}/use [post]
func (h *VoucherHandler) Use(c *gin.Context) {
	id, ok := h.parseID(c, "id", "voucher")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req appvoucher.UseVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.vouchers.UseVoucher(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel godoc
//
//	@ID				cancelVoucher
//	@Summary		Cancel an active voucher
//	@Tags			vouchers
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Voucher ID"	format(uuid)
//	@Param			request	body		appvoucher.CancelVoucherRequest	true	"Cancel reason"
//	@Success		200		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Router			/vouchers/{id}/cancel [post]
func (h *VoucherHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c, "id", "voucher")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req appvoucher.CancelVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	v, err := h.vouchers.CancelVoucher(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, v)
}

// Verify godoc
//
//	@ID				verifyVoucher
//	@Summary		Replay a voucher's history against its stored balance
//	@Description	A mismatch is reported as INTEGRITY_ERROR with the verification in error.details.
//	@Description	The stored balance is never corrected.
//	@Tags			vouchers
//	@Produce		json
//	@Param			id	path		string	true	"Voucher ID"	format(uuid)
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Router			/vouchers/{id}/verify [post]
func (h *VoucherHandler) Verify(c *gin.Context) {
	id, ok := h.parseID(c, "id", "voucher")
	if !ok {
		return
	}

	result, err := h.audit.VerifyVoucher(c.Request.Context(), id)
	if err != nil {
		var ie *shared.IntegrityError
		if errors.As(err, &ie) && result != nil {
			c.JSON(dto.GetHTTPStatus(dto.ErrCodeIntegrity), dto.NewErrorResponseWithDetails(
				dto.ErrCodeIntegrity,
				ie.Error(),
				middleware.GetRequestID(c),
				result,
			))
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Audit godoc
//
//	@ID				auditVouchers
//	@Summary		Verify every voucher and list the mismatches
//	@Tags			vouchers
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Router			/vouchers/audit [post]
func (h *VoucherHandler) Audit(c *gin.Context) {
	summary, err := h.audit.VerifyAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Expire godoc
//
//	@ID				expireVouchers
//	@Summary		Move every overdue active voucher to expired
//	@Tags			vouchers
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Router			/vouchers/expire [post]
func (h *VoucherHandler) Expire(c *gin.Context) {
	result, err := h.expiration.ExpireVouchers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
