// Package logging constructs the shared structured logger. All Drey
// components log JSON via logrus with a component field so one instance's
// output is filterable per subsystem.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is an alias for structured logging fields.
type Fields = logrus.Fields

// New creates a configured logger instance. The level is taken from
// DREY_LOG_LEVEL (default info).
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(levelFromEnv())
	return logger
}

// NewNop creates a logger that discards everything. Intended for tests.
func NewNop() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// WithComponent returns an entry tagged with the component name.
func WithComponent(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}

func levelFromEnv() logrus.Level {
	switch strings.ToLower(os.Getenv("DREY_LOG_LEVEL")) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
