package log

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Level mirrors slog.Level so callers never need to import log/slog
// themselves just to pick a verbosity.
type Level slog.Level

const (
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

// StructuredLogger is the slog-backed Logger used outside of tests. Output
// is colorized with tint when stdout is a terminal and plain otherwise.
type StructuredLogger struct {
	logger *slog.Logger
}

// New returns a StructuredLogger at the given level, writing to stdout.
func New(level Level) *StructuredLogger {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
		TimeFormat: time.Kitchen,
		Level:      slog.Level(level),
	})
	return &StructuredLogger{logger: slog.New(handler)}
}

// NewWithHandler wraps an arbitrary slog.Handler, for callers that want
// JSON output or a handler chained with OpenTelemetry.
func NewWithHandler(handler slog.Handler) *StructuredLogger {
	return &StructuredLogger{logger: slog.New(handler)}
}

func (l *StructuredLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, withCaller(args...)...) }
func (l *StructuredLogger) Info(msg string, args ...any)  { l.logger.Info(msg, withCaller(args...)...) }
func (l *StructuredLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, withCaller(args...)...) }
func (l *StructuredLogger) Error(msg string, args ...any) { l.logger.Error(msg, withCaller(args...)...) }

func (l *StructuredLogger) With(args ...any) Logger {
	return &StructuredLogger{logger: l.logger.With(args...)}
}

// withCaller prefixes args with a compact file:line so log lines from the
// scheduler's background goroutine are distinguishable from the foreground
// path without needing per-call site annotations.
func withCaller(args ...any) []any {
	const callerSkip = 2
	if _, file, line, ok := runtime.Caller(callerSkip); ok {
		return append([]any{"caller", formatCaller(file, line)}, args...)
	}
	return args
}

func formatCaller(file string, line int) string {
	parts := strings.Split(file, "/")
	if len(parts) < 2 {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return fmt.Sprintf("%s/%s:%d", parts[len(parts)-2], parts[len(parts)-1], line)
}

// NullLogger discards everything. Used as the default Ctx() fallback and in
// tests that don't care about log output.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (*NullLogger) Debug(msg string, args ...any) {}
func (*NullLogger) Info(msg string, args ...any)  {}
func (*NullLogger) Warn(msg string, args ...any)  {}
func (*NullLogger) Error(msg string, args ...any) {}
func (l *NullLogger) With(args ...any) Logger     { return l }
