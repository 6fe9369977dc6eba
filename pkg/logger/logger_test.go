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

func observe(t *testing.T) *observer.ObservedLogs {
	prev := Get()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestWithContext_AddsOperationAndDocument(t *testing.T) {
	logs := observe(t)

	ctx := context.WithValue(context.Background(), OperationKey, "export")
	ctx = context.WithValue(ctx, DocumentKey, "orders.json")
	WithContext(ctx).Info("loaded documents", zap.Int("documents", 2))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "export", fields["operation"])
	assert.Equal(t, "orders.json", fields["document"])
	assert.Equal(t, int64(2), fields["documents"])
}

func TestWithContext_EmptyContext(t *testing.T) {
	logs := observe(t)

	WithContext(context.Background()).Info("plain")

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].Context)
}

func TestNew_ParsesLevel(t *testing.T) {
	l, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
