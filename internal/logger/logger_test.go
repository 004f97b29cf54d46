package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers verifies that a named logger travels through the context
// and that entries reach the underlying core.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "upgrade")
	ctx = WithKV(ctx, "step", "download")

	Info(ctx, "starting")
	Debug(ctx, "must be filtered")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "starting", entries[0].Message)
	require.Equal(t, "upgrade", entries[0].LoggerName)
	require.Equal(t, "download", entries[0].ContextMap()["step"])
}

// TestCoreWithLevel verifies the per-sink level bound filters below-bound entries.
func TestCoreWithLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	bounded := &coreWithLevel{Core: core, level: zapcore.WarnLevel}
	l := zap.New(bounded).Sugar()

	l.Info("dropped")
	l.Warn("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "kept", entries[0].Message)
}
