package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"", defaultLevel},
		{"bogus", defaultLevel},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, LevelFromString(tc.in), tc.in)
	}
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	require.IsType(t, &NullLogger{}, logger.With("k", "v"))
}

func TestContextRoundTrip(t *testing.T) {
	require.IsType(t, &NullLogger{}, Ctx(context.Background()))

	logger := New(LevelDebug)
	ctx := WithLogger(context.Background(), logger)
	require.Same(t, Logger(logger), Ctx(ctx))
}

func TestStructuredLoggerWith(t *testing.T) {
	logger := New(LevelInfo)
	child := logger.With("session_id", "s1")
	require.IsType(t, &StructuredLogger{}, child)
	child.Info("hello")
}
