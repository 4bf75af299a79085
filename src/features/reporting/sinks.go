package reporting

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/contre95/dropsort/src/triage"
)

// FormatLine renders a result as the one-line message shown to users.
func FormatLine(result triage.MoveResult) string {
	switch {
	case result.Skipped:
		return fmt.Sprintf("Skipped: %s", result.Name)
	case result.Success:
		return fmt.Sprintf("✅ Moved: %s -> %s", result.Name, filepath.Base(filepath.Dir(result.Destination)))
	default:
		return fmt.Sprintf("❌ Failed: %s (%s)", result.Name, result.Error)
	}
}

// LogSink writes results and lines to a slog logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging to logger, or to the default logger when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(result triage.MoveResult) {
	switch {
	case result.Skipped:
		s.logger.Debug(FormatLine(result), "source", result.Source)
	case result.Success:
		s.logger.Info(FormatLine(result), "category", result.Category, "destination", result.Destination)
	default:
		s.logger.Warn(FormatLine(result), "source", result.Source, "category", result.Category)
	}
}

func (s *LogSink) Log(line string) {
	s.logger.Info(line)
}

// FuncSink forwards formatted lines to a callback, for callers driving their own display.
type FuncSink func(line string)

func (f FuncSink) Report(result triage.MoveResult) {
	if result.Skipped {
		return
	}
	f(FormatLine(result))
}

func (f FuncSink) Log(line string) {
	f(line)
}
