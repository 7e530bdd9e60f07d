package middleware

import (
	"time"

	"dealerhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens a server span per request. It runs before the
// session middleware, so the session attributes are added afterwards.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		if session, ok := SessionFromContext(c); ok {
			span.SetAttributes(
				tracing.SessionIDKey.String(string(session.ID)),
				tracing.UserIDKey.String(string(session.UserID)),
				tracing.RoleKey.String(session.Role.String()),
			)
		}
		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.duration_ms", time.Since(start).Milliseconds()),
		)

		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
