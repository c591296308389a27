// Package log provides the diagnostic log for background sync work.
// Commands print user-facing output with fmt; everything diagnostic goes
// to the log file, with errors mirrored to stderr.
package log

import (
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger appends timestamped lines to a log file.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	debug bool
}

// New opens the log file inside logDir, creating the directory as needed.
func New(logDir string, debug bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "satchel.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{file: file, debug: debug}, nil
}

func (l *Logger) write(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.file, "[%s] %s %s\n", timestamp, level, msg)
}

// Infof records sync progress and similar routine lines.
func (l *Logger) Infof(format string, args ...any) {
	l.write("INFO", format, args...)
}

// Debugf records verbose detail. Dropped unless debug is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.debug {
		return
	}
	l.write("DEBUG", format, args...)
}

// Errorf records a failure, mirrored to stderr so unattended background
// passes still leave a visible trace.
func (l *Logger) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	l.write("ERROR", format, args...)
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Global logger instance
var globalLogger *Logger

// Init initializes the global logger and redirects Go's standard log
// package to the log file, keeping GORM and net/http noise out of
// command output.
func Init(logDir string, debug bool) error {
	logger, err := New(logDir, debug)
	if err != nil {
		return err
	}
	globalLogger = logger

	stdlog.SetOutput(logger.file)
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime)

	return nil
}

// Infof logs through the global logger; a no-op before Init.
func Infof(format string, args ...any) {
	if globalLogger != nil {
		globalLogger.Infof(format, args...)
	}
}

// Debugf logs through the global logger; a no-op before Init.
func Debugf(format string, args ...any) {
	if globalLogger != nil {
		globalLogger.Debugf(format, args...)
	}
}

// Errorf logs through the global logger, falling back to stderr before
// Init so failures are never swallowed.
func Errorf(format string, args ...any) {
	if globalLogger != nil {
		globalLogger.Errorf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Close closes the global logger.
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}
