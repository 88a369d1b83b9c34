package pkg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Component tags log records with the subsystem that produced them.
type Component string

// Components.
const (
	ComponentAudio Component = "audio"
	ComponentSim   Component = "sim"
	ComponentGPIO  Component = "gpio"
	ComponentCLI   Component = "cli"
)

// LogFormat selects the slog handler.
type LogFormat int

// Log formats.
const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

// String returns the format name accepted by ParseLogFormat.
func (f LogFormat) String() string {
	if f == LogFormatJSON {
		return "json"
	}
	return "text"
}

// ParseLogFormat accepts "text" or "json" in any case. An empty string
// selects text.
func ParseLogFormat(s string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return LogFormatText, nil
	case "json":
		return LogFormatJSON, nil
	}
	return LogFormatText, fmt.Errorf("log format %q: %w", s, ErrInvalidConfig)
}

// ParseLogLevel accepts slog level names ("debug", "info", "warn",
// "error", optionally with an offset such as "info+2"). An empty string
// selects warn, the default.
func ParseLogLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn, fmt.Errorf("log level %q: %w", s, ErrInvalidConfig)
	}
	return l, nil
}

var (
	// level is shared by every handler built by this package, so
	// SetLogLevel takes effect without rebuilding the logger.
	level slog.LevelVar

	logger atomic.Pointer[slog.Logger]
)

func init() {
	level.Set(slog.LevelWarn)
	logger.Store(NewLogger(os.Stderr, LogFormatText, nil))
}

// SetLogLevel sets the minimum level of loggers built without explicit
// handler options, including the default logger.
func SetLogLevel(l slog.Level) {
	level.Set(l)
}

// LogLevel returns the current minimum level.
func LogLevel() slog.Level {
	return level.Level()
}

// Logger returns the logger used by the Log functions.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the logger used by the Log functions. A nil logger
// restores a text logger on stderr.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = NewLogger(os.Stderr, LogFormatText, nil)
	}
	logger.Store(l)
}

// SetLogOutput points the Log functions at w in the given format.
func SetLogOutput(w io.Writer, format LogFormat) {
	SetLogger(NewLogger(w, format, nil))
}

// NewLogger builds a logger writing to w. With nil opts the logger follows
// SetLogLevel.
func NewLogger(w io.Writer, format LogFormat, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: &level}
	}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LogDebug logs msg at debug level for component.
func LogDebug(component Component, msg string, args ...any) {
	logAt(slog.LevelDebug, component, msg, args)
}

// LogInfo logs msg at info level for component.
func LogInfo(component Component, msg string, args ...any) {
	logAt(slog.LevelInfo, component, msg, args)
}

// LogWarn logs msg at warn level for component.
func LogWarn(component Component, msg string, args ...any) {
	logAt(slog.LevelWarn, component, msg, args)
}

// LogError logs msg at error level for component.
func LogError(component Component, msg string, args ...any) {
	logAt(slog.LevelError, component, msg, args)
}

// logAt skips building the record when l is disabled, since the audio
// event path calls in from interrupt or capture context.
func logAt(l slog.Level, component Component, msg string, args []any) {
	lg := logger.Load()
	ctx := context.Background()
	if !lg.Enabled(ctx, l) {
		return
	}
	lg.With("component", string(component)).Log(ctx, l, msg, args...)
}
