package core

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

func NewLogger(cfg Log) *log.Logger {
	return NewLoggerWithWriter(os.Stderr, cfg)
}

func NewLoggerWithWriter(w io.Writer, cfg Log) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLogLevel(cfg.Level),
		Formatter:       ParseLogFormatter(cfg.Format),
		ReportTimestamp: true,
		Prefix:          "todos",
	})
}

// ParseLogLevel falls back to info for unknown levels.
func ParseLogLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func ParseLogFormatter(format string) log.Formatter {
	switch format {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
