// Package logging provides the structured logger used across the checkout service.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

const serviceName = "checkout-service"

// Fields carries structured key/value pairs attached to a log entry.
type Fields = logrus.Fields

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel changes the level of every logger. Unknown levels are ignored.
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	}
}

// Logger is a component-scoped structured logger.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{
		entry: base.WithFields(logrus.Fields{
			"service":   serviceName,
			"component": component,
		}),
	}
}

func (l *Logger) with(fields []Fields) *logrus.Entry {
	e := l.entry
	for _, f := range fields {
		e = e.WithFields(f)
	}
	return e
}

func (l *Logger) Debug(msg string, fields ...Fields) {
	if l == nil {
		return
	}
	l.with(fields).Debug(msg)
}

func (l *Logger) Info(msg string, fields ...Fields) {
	if l == nil {
		return
	}
	l.with(fields).Info(msg)
}

func (l *Logger) Warn(msg string, fields ...Fields) {
	if l == nil {
		return
	}
	l.with(fields).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...Fields) {
	if l == nil {
		return
	}
	l.with(fields).Error(msg)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.with(fields).Fatal(msg)
}

// Infof logs a formatted message without a component.
func Infof(format string, args ...interface{}) {
	base.WithField("service", serviceName).Infof(format, args...)
}
