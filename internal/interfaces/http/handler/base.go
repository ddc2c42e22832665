package handler

import (
	"errors"
	"net/http"

	"github.com/erp/refunds/internal/domain/shared"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/interfaces/http/dto"
	"github.com/erp/refunds/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the status derived from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeUnauthorized, message)
}

// ValidationError sends a 400 response describing a binding failure
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts an error to an HTTP response. Domain errors, including
// typed errors that unwrap to one, keep their code; anything else becomes a 500
// without internals.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		c.JSON(dto.GetHTTPStatus(domainErr.Code), dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, requestID))
		return
	}

	logger.WithLogger(c.Request.Context(), logger.GetGinLogger(c)).Error("Unhandled request error",
		zap.Error(err),
		zap.String("path", c.FullPath()),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// requireActor returns the actor resolved by the actor middleware, writing a 401 when absent
func (h *BaseHandler) requireActor(c *gin.Context) (uuid.UUID, bool) {
	actor, ok := middleware.GetActorID(c)
	if !ok {
		h.Unauthorized(c, "Actor not identified; send a bearer token or "+middleware.UserIDHeader)
		return uuid.Nil, false
	}
	return actor, true
}

// parseID parses a UUID path parameter, writing a 400 when malformed
func (h *BaseHandler) parseID(c *gin.Context, param, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.BadRequest(c, "Invalid "+resource+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDQuery parses an optional UUID query parameter, writing a 400 when malformed
func (h *BaseHandler) optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.Error(c, dto.ErrCodeValidation, "Invalid "+name+" format")
		return nil, false
	}
	return &id, true
}
