// Package logging provides structured logging for crashcheck and the
// rotating run log written by the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger is the structured logger handed to backends, the detector and the
// server. Records carry the input path and scan ID as attributes.
type Logger struct {
	*slog.Logger
}

// Config selects where records go and how they are encoded.
type Config struct {
	Level   slog.Level
	Output  io.Writer
	Enabled bool
	JSON    bool
}

// New creates a logger. A disabled config yields a logger that drops
// everything; a nil Output means stderr.
func New(cfg Config) *Logger {
	if !cfg.Enabled {
		return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.JSON {
		return &Logger{Logger: slog.New(slog.NewJSONHandler(out, opts))}
	}
	return &Logger{Logger: slog.New(slog.NewTextHandler(out, opts))}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(Config{})
}

// WithPrefix tags records with the emitting component.
func (l *Logger) WithPrefix(component string) *Logger {
	return &Logger{Logger: l.With("component", component)}
}

// WithFile tags records with the input path.
func (l *Logger) WithFile(path string) *Logger {
	return &Logger{Logger: l.With("file", path)}
}

// WithScan tags records with the ID of a single evaluation.
func (l *Logger) WithScan(id string) *Logger {
	return &Logger{Logger: l.With("scan_id", id)}
}

var global atomic.Pointer[Logger]

// Global returns the process-wide logger. Until SetGlobal is called it
// writes info records to stderr.
func Global() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, New(Config{Level: LevelInfo, Enabled: true}))
	return global.Load()
}

// SetGlobal replaces the process-wide logger. A nil logger is ignored.
func SetGlobal(l *Logger) {
	if l != nil {
		global.Store(l)
	}
}
