// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
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

// Fields is an alias so callers do not need to import logrus directly.
type Fields = logrus.Fields

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

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// --- Global Logger State ---

// logger is the process-wide logrus instance. All package functions write
// through it so that level and format changes apply everywhere.
var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the global logging level.
func SetLevel(level LogLevel) {
	logger.SetLevel(level.logrus())
}

// GetLevel gets the current global logging level.
func GetLevel() LogLevel {
	switch logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return LevelDebug
	case logrus.WarnLevel:
		return LevelWarn
	case logrus.ErrorLevel:
		return LevelError
	case logrus.FatalLevel, logrus.PanicLevel:
		return LevelFatal
	default:
		return LevelInfo
	}
}

// SetFormat switches between "text" (default) and "json" output.
func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000000",
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects all log output. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := logger.Out
	logger.SetOutput(w)
	return prev
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...interface{}) {
	logger.Infof(format, v...)
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...interface{}) {
	logger.Warnf(format, v...)
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...interface{}) {
	logger.Errorf(format, v...)
}

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...interface{}) {
	logger.Fatalf(format, v...)
}

// --- Functions without formatting (convenience) ---

// Debug logs a debug message if the level is appropriate.
func Debug(v ...interface{}) {
	logger.Debug(v...)
}

// Info logs an info message if the level is appropriate.
func Info(v ...interface{}) {
	logger.Info(v...)
}

// Warn logs a warning message if the level is appropriate.
func Warn(v ...interface{}) {
	logger.Warn(v...)
}

// Error logs an error message if the level is appropriate.
func Error(v ...interface{}) {
	logger.Error(v...)
}

// Fatal logs a fatal message and exits the application.
func Fatal(v ...interface{}) {
	logger.Fatal(v...)
}
