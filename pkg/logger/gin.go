package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-Id"

// Middleware returns a Gin middleware that injects request_id and logs request summaries.
// The request-scoped logger is stored both on the gin context and on the request context,
// so services called with c.Request.Context() log with the same request_id.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set("logger", reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		dur := time.Since(start)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", float64(dur.Milliseconds()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
			return
		}
		reqLogger.Info("request", attrs...)
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
