package middleware

import (
	"time"

	"dealerhub/pkg/logger"
	"dealerhub/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware accepts a sane incoming request id or assigns one,
// and echoes it in the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if validation.ValidateResourceID(id) != nil {
			id = uuid.NewString()
		}

		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// HTTPMetrics receives one observation per finished request.
type HTTPMetrics interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// RequestLoggingMiddleware logs and measures every request. Routes are
// labelled by pattern, not raw path, to bound metric cardinality.
func RequestLoggingMiddleware(log *logger.ContextLogger, metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		log.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, status, duration.Milliseconds())
		if metrics != nil {
			metrics.RecordHTTPRequest(c.Request.Method, route, status, duration)
		}
	}
}
