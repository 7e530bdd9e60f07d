package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "session_id"
	userIDKey    contextKey = "user_id"
)

// WithRequestID stores the request id for later log enrichment.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithSession stores the session and user ids for later log enrichment.
func WithSession(ctx context.Context, sessionID, userID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return context.WithValue(ctx, userIDKey, userID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{
		logger: logger,
	}
}

// WithContext adds request, session and trace fields found in ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	fields := []zapcore.Field{}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("session_id", id))
	}
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("user_id", id))
	}

	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// LogRequest logs a finished HTTP request
func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, durationMs int64) {
	cl.WithContext(ctx).Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	)
}

func (cl *ContextLogger) LogError(ctx context.Context, err error, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).With(zap.Error(err)).Error(message, fields...)
}

func (cl *ContextLogger) LogInfo(ctx context.Context, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).Info(message, fields...)
}

func (cl *ContextLogger) LogWarn(ctx context.Context, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).Warn(message, fields...)
}
