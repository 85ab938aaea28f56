// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/pebble"
)

// ParseLevel converts a configured level name into a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a logger writing to w in the given format ("text" or "json")
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(h), nil
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Setup creates a stderr logger and installs it as the slog default
func Setup(level, format string) (*slog.Logger, error) {
	l, err := New(os.Stderr, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}

// PebbleLogger adapts a slog logger to pebble's logging interface
type PebbleLogger struct {
	l *slog.Logger
}

var _ pebble.Logger = (*PebbleLogger)(nil)

// NewPebbleLogger wraps l for use as pebble.Options.Logger
func NewPebbleLogger(l *slog.Logger) *PebbleLogger {
	return &PebbleLogger{l: l.With("component", "pebble")}
}

func (p *PebbleLogger) Infof(format string, args ...interface{}) {
	p.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (p *PebbleLogger) Fatalf(format string, args ...interface{}) {
	p.l.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
	os.Exit(1)
}
