package middleware

import (
	"net/http"

	"github.com/erp/thaitax/internal/infrastructure/logger"
	"github.com/erp/thaitax/internal/infrastructure/telemetry"
	"github.com/erp/thaitax/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CompanyIDKey is the gin context key holding the request's company
const CompanyIDKey = "company_id"

// CompanyContext requires X-Company-ID on every request it guards. The
// company ID goes into the gin context, the request context (for logging)
// and the current span.
func CompanyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(CompanyIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeMissingCompany, "X-Company-ID header is required", GetRequestID(c)))
			return
		}
		companyID, err := uuid.Parse(raw)
		if err != nil || companyID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeMissingCompany, "X-Company-ID must be a UUID", GetRequestID(c)))
			return
		}

		c.Set(CompanyIDKey, companyID)
		c.Request = c.Request.WithContext(logger.WithCompanyID(c.Request.Context(), companyID))
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(attribute.String(telemetry.SpanAttrCompanyID, companyID.String()))
		}
		c.Next()
	}
}

// GetCompanyID returns the company set by CompanyContext
func GetCompanyID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CompanyIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
