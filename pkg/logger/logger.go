// Package logger configures the logrus logger used by the sandbox command:
// human-readable text lines on stderr, with request-level detail behind the
// verbose flag.
package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger embeds a configured logrus.Logger so callers get the full logrus
// API (Infof, WithFields, ...) without re-exporting it.
type Logger struct {
	*logrus.Logger
}

// NewLogger builds the sandbox logger. Diagnostics go to stderr so seeded
// data printed by examples stays separable on stdout.
func NewLogger(verbose bool) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)
	return &Logger{Logger: l}
}
