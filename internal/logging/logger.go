package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config selects the log format and verbosity.
type Config struct {
	Environment string
	Level       string
	Output      io.Writer
}

// New builds the application logger. Production uses JSON output for log
// aggregation; everything else gets the human-readable text formatter.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.Output != nil {
		logger.SetOutput(cfg.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}

	if level := strings.TrimSpace(cfg.Level); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		} else {
			logger.WithField("level", level).Warn("unknown log level; keeping default")
		}
	}
	return logger
}

// WithRecording scopes a logger to one recording.
func WithRecording(log logrus.FieldLogger, recordingID string) logrus.FieldLogger {
	return log.WithField("recording_id", recordingID)
}
