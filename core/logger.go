package core

import (
	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior; the default is
// backed by logrus.
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// LogrusLogger adapts a logrus.FieldLogger to Logger.
type LogrusLogger struct {
	entry logrus.FieldLogger
}

// NewLogrusLogger wraps l. A nil l falls back to logrus.StandardLogger().
func NewLogrusLogger(l logrus.FieldLogger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: l}
}

// NewDefaultLogger creates a Logger writing through logrus.StandardLogger()
func NewDefaultLogger() *LogrusLogger {
	return NewLogrusLogger(logrus.StandardLogger())
}

// Debug logs a debug message
func (l *LogrusLogger) Debug(msg string, fields ...Field) {
	l.with(fields).Debug(msg)
}

// Info logs an info message
func (l *LogrusLogger) Info(msg string, fields ...Field) {
	l.with(fields).Info(msg)
}

// Warn logs a warning message
func (l *LogrusLogger) Warn(msg string, fields ...Field) {
	l.with(fields).Warn(msg)
}

// Error logs an error message
func (l *LogrusLogger) Error(msg string, fields ...Field) {
	l.with(fields).Error(msg)
}

func (l *LogrusLogger) with(fields []Field) logrus.FieldLogger {
	if len(fields) == 0 {
		return l.entry
	}
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = f.Value
	}
	return l.entry.WithFields(lf)
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
