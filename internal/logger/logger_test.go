package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextAddsIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)

	ctx := WithRequestID(WithSessionID(context.Background(), "s1"), "r1")
	FromContext(ctx, l).Info("answer graded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "s1", fields["session_id"])
	assert.Equal(t, "r1", fields["request_id"])
}

func TestNewValidatesLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(Config{Level: "debug", Format: "json", OutputPath: filepath.Join(t.TempDir(), "app.log")})
	require.NoError(t, err)
	l.Info("ok")
	assert.NoError(t, l.Sync())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	assert.NotPanics(t, func() { FromContext(context.Background(), nil).Info("silent") })
}
