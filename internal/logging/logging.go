// Package logging configures slog for the collector.
//
// Records go to the console at the configured level and, once a run has an
// output directory, to dumptool.log at debug level so the dump carries a
// full trace of how it was produced.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel overrides the default console level.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultLevel returns LOG_LEVEL if set, otherwise "info".
func DefaultLevel() string {
	if v := os.Getenv(EnvLogLevel); v != "" {
		return v
	}
	return "info"
}

// Options configures New.
type Options struct {
	Console io.Writer
	Level   string
	// File receives every record at debug level when set.
	File io.Writer
}

// New builds a logger writing text records to the configured sinks.
func New(opts Options) *slog.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: ParseLevel(opts.Level)}),
	}
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(&fanout{handlers: handlers})
}

// SetDefault installs a logger built from opts as the slog default and
// returns a func restoring the previous default.
func SetDefault(opts Options) (restore func()) {
	prev := slog.Default()
	slog.SetDefault(New(opts))
	return func() { slog.SetDefault(prev) }
}

// fanout dispatches each record to every handler that accepts its level.
type fanout struct {
	handlers []slog.Handler
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &fanout{handlers: hs}
}
