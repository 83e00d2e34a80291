package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinRequestIDKey is the gin context key the request id middleware writes
const GinRequestIDKey = "request_id"

// GinMiddleware attaches a request-scoped logger to the request context and
// writes one access log line per request. 5xx log at Error, 4xx at Warn.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := c.Request.Context()
		if id := c.GetString(GinRequestIDKey); id != "" {
			ctx = WithRequestID(ctx, id)
		}
		ctx = WithContext(ctx, base.With(zap.String("method", c.Request.Method)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := append(Fields(c.Request.Context()),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		)
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			base.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			base.Warn("HTTP Request", fields...)
		default:
			base.Info("HTTP Request", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 with the standard error body
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				base.Error("Panic recovered", append(Fields(c.Request.Context()),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stacktrace"),
				)...)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "ERR_INTERNAL",
						"message": "An internal error occurred",
					},
				})
			}
		}()
		c.Next()
	}
}
