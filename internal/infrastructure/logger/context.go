package logger

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
	companyIDKey
)

// WithContext attaches a logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the attached logger, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id on ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithCompanyID stores the acting company on ctx
func WithCompanyID(ctx context.Context, companyID uuid.UUID) context.Context {
	return context.WithValue(ctx, companyIDKey, companyID)
}

// GetCompanyID returns the acting company, if any
func GetCompanyID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(companyIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// Fields returns the correlation fields carried by ctx: trace and span ids
// of a valid span, then request id and company id when set.
func Fields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := GetCompanyID(ctx); ok {
		fields = append(fields, zap.String("company_id", id.String()))
	}
	return fields
}

// L returns the ctx logger enriched with the correlation fields of ctx.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx).With(Fields(ctx)...)
}
