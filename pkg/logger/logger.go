// Package logger provides structured logging using slog with hostname tracking
// and short source file paths for better debugging across multiple instances.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Fields represents structured log fields.
type Fields map[string]any

// Options controls how New builds a logger.
type Options struct {
	// Level is the minimum level that is emitted.
	Level slog.Level
	// JSON switches the handler from logfmt-style text to JSON.
	JSON bool
}

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
	// hostname is cached on init for performance.
	hostname string
)

func init() {
	var err error
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	defaultLogger = New(os.Stderr, Options{Level: slog.LevelInfo})
}

// New creates a new slog logger with hostname and short source paths.
func New(w io.Writer, opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{
		AddSource: true,
		Level:     opts.Level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
					source.Function = ""
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	return slog.New(handler).With("instance", hostname)
}

// ParseLevel converts a textual level ("debug", "info", "warn", "error") to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// ParseFormat reports whether the given format name selects JSON output.
func ParseFormat(s string) (json bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("invalid log format %q: want text or json", s)
	}
}

// SetDefault sets the default logger.
func SetDefault(l *slog.Logger) {
	defaultLogger = l
}

// Default returns the default logger.
func Default() *slog.Logger {
	return defaultLogger
}

// Info logs an info message with optional fields.
func Info(ctx context.Context, msg string, fields Fields) {
	logAt(ctx, slog.LevelInfo, msg, attrsFromFields(fields))
}

// Warn logs a warning message with optional fields.
func Warn(ctx context.Context, msg string, fields Fields) {
	logAt(ctx, slog.LevelWarn, msg, attrsFromFields(fields))
}

// Error logs an error message with optional fields.
func Error(ctx context.Context, msg string, err error, fields Fields) {
	attrs := attrsFromFields(fields)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logAt(ctx, slog.LevelError, msg, attrs)
}

// Debug logs a debug message with optional fields.
func Debug(ctx context.Context, msg string, fields Fields) {
	logAt(ctx, slog.LevelDebug, msg, attrsFromFields(fields))
}

// logAt records the caller of the exported helper as the source location.
func logAt(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	h := defaultLogger.Handler()
	if !h.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, logAt and the exported helper
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = h.Handle(ctx, r) //nolint:errcheck // best effort logging
}

func attrsFromFields(fields Fields) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}
