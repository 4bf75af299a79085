package triage

import (
	"errors"
	"time"
)

var (
	// ErrDestinationExists means a move would have replaced an existing file.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrNotRegular is returned for directories, devices and other non-regular paths.
	ErrNotRegular = errors.New("not a regular file")
	// ErrExcluded marks metadata and temporary files that are never sorted.
	ErrExcluded = errors.New("file is excluded from classification")
)

// MoveResult is the outcome of one classify-and-move. It is reported once and not kept by the engine.
type MoveResult struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Success     bool      `json:"success"`
	Skipped     bool      `json:"skipped"`
	Err         error     `json:"-"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Failed reports whether the result carries an error.
func (r MoveResult) Failed() bool {
	return !r.Success && !r.Skipped
}
