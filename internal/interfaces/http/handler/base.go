package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/erp/thaitax/internal/domain/shared"
	"github.com/erp/thaitax/internal/infrastructure/logger"
	"github.com/erp/thaitax/internal/interfaces/http/dto"
	"github.com/erp/thaitax/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dateLayout is the wire format of posting and certificate dates
const dateLayout = "2006-01-02"

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

// Accepted sends a 202 response for work that continues in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// ValidationError sends a 400 response describing a failed bind
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts service errors to HTTP responses. Domain errors keep
// their code; anything else is logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.DomainErrorStatus(code), code, domainErr.Message)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		h.Error(c, http.StatusGatewayTimeout, dto.ErrCodeRequestTimeout, "Request timed out")
		return
	}

	logger.L(c.Request.Context()).Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// companyID returns the company resolved by the company middleware, or
// writes a 400 when the route was mounted without it
func (h *BaseHandler) companyID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetCompanyID(c)
	if !ok {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeMissingCompany, "Company ID is required")
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses a UUID path parameter
func (h *BaseHandler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidIdentifier, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// parseDate reads a YYYY-MM-DD date as midnight UTC
func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}
