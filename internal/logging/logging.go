package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
)

// RunLogFilename is the name of the CLI run log inside the log directory.
const RunLogFilename = "crashcheck.log"

// Rotation limits for the run log.
const (
	runLogMaxSizeMB  = 20
	runLogMaxBackups = 5
	runLogMaxAgeDays = 30
)

// RunLog is the CLI run log. A nil *RunLog is valid and discards
// everything, so callers never need to check whether logging is enabled.
type RunLog struct {
	verbose  bool
	logger   *log.Logger
	writer   *lumberjack.Logger
	filePath string
}

// Setup opens the rotating run log in logDir.
// Returns nil if logging is disabled (noLog=true).
func Setup(logDir string, verbose, noLog bool) (*RunLog, error) {
	if noLog {
		return nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	filePath := filepath.Join(logDir, RunLogFilename)

	// lumberjack opens lazily; probe writability now so a bad directory
	// fails at startup instead of on the first log line.
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}
	_ = f.Close()

	w := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    runLogMaxSizeMB,
		MaxBackups: runLogMaxBackups,
		MaxAge:     runLogMaxAgeDays,
	}

	l := &RunLog{
		verbose:  verbose,
		logger:   log.New(w, "", log.LstdFlags),
		writer:   w,
		filePath: filePath,
	}

	l.Info("crashcheck starting")
	if verbose {
		l.Info("Debug level logging enabled")
	}
	l.Info("Log file: %s", filePath)

	return l, nil
}

// Close closes the log file.
func (l *RunLog) Close() error {
	if l == nil || l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

// FilePath returns the path to the log file.
func (l *RunLog) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Info logs an info-level message.
func (l *RunLog) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Printf("[INFO] "+format, args...)
}

// Debug logs a debug-level message (only if verbose mode is enabled).
func (l *RunLog) Debug(format string, args ...any) {
	if l == nil || !l.verbose {
		return
	}
	l.logger.Printf("[DEBUG] "+format, args...)
}

// Warn logs a warning message.
func (l *RunLog) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Printf("[WARN] "+format, args...)
}

// Error logs an error message.
func (l *RunLog) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Printf("[ERROR] "+format, args...)
}

// Writer returns an io.Writer that writes to the log file.
func (l *RunLog) Writer() io.Writer {
	if l == nil || l.writer == nil {
		return io.Discard
	}
	return l.writer
}

// Structured returns a structured logger writing into the run log, so
// detector records end up next to the CLI messages.
func (l *RunLog) Structured() *Logger {
	if l == nil {
		return Discard()
	}
	level := slog.LevelInfo
	if l.verbose {
		level = slog.LevelDebug
	}
	return New(Config{
		Level:   level,
		Output:  l.writer,
		Enabled: true,
	})
}
