// Package logging builds the logrus logger used by the symmap command.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	EnvLogLevel  = "SYMMAP_LOG_LEVEL"
	EnvLogFormat = "SYMMAP_LOG_FORMAT"
)

// Config selects level and output format. Empty fields keep the defaults:
// warn level, text output.
type Config struct {
	Level  string
	Format string
}

// FromEnv returns cfg with every field set in the environment replaced.
func FromEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Format = v
	}
	return cfg
}

// New creates a logger writing to out. Unknown levels fall back to warn.
func New(out io.Writer, cfg Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	logger.SetLevel(ParseLevel(cfg.Level))
	return logger
}

// ParseLevel maps a level name to a logrus level.
func ParseLevel(raw string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	case "off", "none", "disabled", "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}
