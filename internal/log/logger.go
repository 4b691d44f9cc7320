// SPDX-License-Identifier: MIT
/*
Package log is the leveled logger used by the worker and cold paths of the
pipeline. It must never be called from interrupt-context handlers (capture
events, refresh events): those only count, and the counts are logged later
by the worker or at shutdown.
*/
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var currentLevel atomic.Uint32

// logger is the standard logger instance used internally, with date and
// time to the microsecond.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

// exit is swapped by tests so Fatal paths can be observed.
var exit = os.Exit

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. The TUI uses it to keep log lines off
// the alternate screen.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, prefix, msg string) {
	if prefix != "" {
		logger.Printf("[%-5s] %s: %s", level, prefix, msg)
		return
	}
	logger.Printf("[%-5s] %s", level, msg)
}

// --- Component loggers ---

// Logger prefixes every message with a component name, e.g. "capture".
// The zero value logs without a prefix.
type Logger struct {
	name string
}

// For returns a logger for the named component.
func For(name string) Logger {
	return Logger{name: name}
}

// Name returns the component name.
func (l Logger) Name() string { return l.name }

func (l Logger) Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, l.name, fmt.Sprintf(format, v...))
	}
}

func (l Logger) Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		output(LevelInfo, l.name, fmt.Sprintf(format, v...))
	}
}

func (l Logger) Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		output(LevelWarn, l.name, fmt.Sprintf(format, v...))
	}
}

func (l Logger) Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		output(LevelError, l.name, fmt.Sprintf(format, v...))
	}
}

// Fatalf always logs, regardless of level, and exits the process.
func (l Logger) Fatalf(format string, v ...any) {
	output(LevelFatal, l.name, fmt.Sprintf(format, v...))
	exit(1)
}

// --- Package-level functions ---

var root Logger

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { root.Debugf(format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { root.Infof(format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { root.Warnf(format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { root.Errorf(format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...any) { root.Fatalf(format, v...) }
