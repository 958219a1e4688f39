package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-1")
	log.With("module", "tokens").Warn(ctx, "token expired", "id", "abc")
	log.Info(context.Background(), "plain")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "token expired", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "tokens", fields["module"])
	assert.Equal(t, "abc", fields["id"])
	assert.Equal(t, "req-1", fields["request_id"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestNop_DoesNotPanic(t *testing.T) {
	var l Logger = Nop{}
	ctx := context.Background()
	l.With("a", 1).Debug(ctx, "x")
	l.Info(ctx, "x")
	l.Warn(ctx, "x")
	l.Error(ctx, "x")
}
