package reporting

import (
	"errors"

	"github.com/contre95/dropsort/src/triage"
)

var ErrNotFound = errors.New("result not found")

// History keeps recently reported results for the status API.
type History interface {
	// Add records a result, evicting the oldest one when full
	Add(result triage.MoveResult)
	// GetAll returns the recorded results, newest first
	GetAll() []triage.MoveResult
	// GetByID returns a specific result by ID
	GetByID(id string) (triage.MoveResult, error)
	// Clear removes all results
	Clear()
}

// HistorySink records every non-skipped result into a History.
type HistorySink struct {
	history History
}

func NewHistorySink(history History) *HistorySink {
	return &HistorySink{history: history}
}

func (s *HistorySink) Report(result triage.MoveResult) {
	if result.Skipped {
		return
	}
	s.history.Add(result)
}

func (s *HistorySink) Log(string) {}
