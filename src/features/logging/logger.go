package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/contre95/dropsort/src/features/config"
	"github.com/mattn/go-isatty"
)

// SetupLogger builds the application logger from the logger section of the config.
func SetupLogger(cfg *config.Manager) *slog.Logger {
	return NewLogger(os.Stderr, cfg.Get().Logger)
}

// NewLogger returns a slog logger backed by a charmbracelet handler writing to w.
func NewLogger(w io.Writer, opts config.Logger) *slog.Logger {
	var formatter log.Formatter
	switch opts.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	case "text":
		formatter = log.TextFormatter
	default:
		formatter = log.LogfmtFormatter
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			formatter = log.TextFormatter
		}
	}

	level := log.InfoLevel
	switch opts.Level {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    level == log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "dropsort",
		Formatter:       formatter,
		Level:           level,
	})

	return slog.New(handler)
}
