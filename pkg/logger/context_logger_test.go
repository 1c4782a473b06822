package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLogger_LogRequestCarriesContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user-42")
	cl.LogRequest(ctx, "POST", "/api/v1/videos/vid-123/access", 200, 12)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-42", fields["user_id"])
	assert.Equal(t, int64(200), fields["status_code"])
	assert.Equal(t, "req-1", RequestIDFrom(ctx))
}

func TestContextLogger_NoFieldsReturnsBaseLogger(t *testing.T) {
	base := zap.NewNop()
	cl := NewContextLogger(base)
	assert.Same(t, base, cl.WithContext(context.Background()))
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := New("loud", "json")
	require.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
