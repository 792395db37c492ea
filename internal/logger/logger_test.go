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
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextLogger verifies that scoped loggers travel through the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "arming")
	ctx = WithKV(ctx, "node_id", "SEC-001")

	InfoKV(ctx, "Arm state changed", "mode", "away")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "arming", entries[0].LoggerName)
	require.Equal(t, "SEC-001", entries[0].ContextMap()["node_id"])
	require.Equal(t, "away", entries[0].ContextMap()["mode"])
}

// TestParseFormat accepts console and json only.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, ok := ParseFormat("")
	require.True(t, ok)
	require.Equal(t, FormatConsole, f)

	f, ok = ParseFormat(" JSON ")
	require.True(t, ok)
	require.Equal(t, FormatJSON, f)

	_, ok = ParseFormat("logfmt")
	require.False(t, ok)
}

// TestConfigure swaps the global logger and rejects bad settings.
//
//nolint:paralleltest // Mutates the global logger.
func TestConfigure(t *testing.T) {
	previous := Logger()
	level := Level()

	t.Cleanup(func() {
		SetLogger(previous)
		SetLevel(level)
	})

	require.NoError(t, Configure("debug", "json"))
	require.Equal(t, zapcore.DebugLevel, Level())
	require.NotSame(t, previous, Logger())

	require.ErrorIs(t, Configure("verbose", "json"), errUnknownLevel)
	require.ErrorIs(t, Configure("info", "xml"), errUnknownFormat)
	require.Equal(t, zapcore.DebugLevel, Level())
}
