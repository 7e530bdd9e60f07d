package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLogger_AddsRequestAndSessionFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSession(ctx, "sess-1", "user-1")
	cl.LogInfo(ctx, "guard decision")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "sess-1", fields["session_id"])
		assert.Equal(t, "user-1", fields["user_id"])
	}
}

func TestContextLogger_NoFieldsReturnsBaseLogger(t *testing.T) {
	base := zap.NewNop()
	cl := NewContextLogger(base)
	assert.Same(t, base, cl.WithContext(context.Background()))
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, "abc", RequestIDFromContext(WithRequestID(context.Background(), "abc")))
}

func TestNew_FallsBackOnBadLevel(t *testing.T) {
	l := New("not-a-level", "json")
	assert.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}
