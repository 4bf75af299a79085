package watching

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"time"
)

// Phase is where a tracked path is in the stability state machine.
type Phase string

const (
	PhaseObserved  Phase = "observed"
	PhaseSampling  Phase = "sampling"
	PhaseStable    Phase = "stable"
	PhaseAbandoned Phase = "abandoned"
	PhaseGone      Phase = "gone"
)

const unsetSize int64 = -1

// StabilityState is the per-path sampling record.
type StabilityState struct {
	Path      string
	LastSize  int64
	Reads     int
	NextCheck time.Time
	// Dirty records an event seen while the path was already being sampled.
	Dirty bool
}

// SizeFunc returns the current size of path.
type SizeFunc func(path string) (int64, error)

// StatSize is the SizeFunc used outside of tests.
func StatSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// StabilityTracker decides when files have finished being written by comparing
// successive size samples. It is not safe for concurrent use; the watcher loop owns it.
type StabilityTracker struct {
	retries  int
	interval time.Duration
	size     SizeFunc
	states   map[string]*StabilityState
}

// NewStabilityTracker creates a tracker that gives up after retries samples spaced by interval.
func NewStabilityTracker(retries int, interval time.Duration, size SizeFunc) *StabilityTracker {
	if retries < 1 {
		retries = 1
	}
	if size == nil {
		size = StatSize
	}
	return &StabilityTracker{
		retries:  retries,
		interval: interval,
		size:     size,
		states:   make(map[string]*StabilityState),
	}
}

// Observe starts tracking path with its first sample due now.
// It returns false if the path is already tracked: the event is coalesced into
// the running check and marks it dirty.
func (t *StabilityTracker) Observe(path string, now time.Time) bool {
	if st, ok := t.states[path]; ok {
		st.Dirty = true
		return false
	}
	t.states[path] = &StabilityState{Path: path, LastSize: unsetSize, NextCheck: now}
	return true
}

// Sample reads the size of path and advances its state. Stable, Abandoned and
// Gone are terminal: the entry is dropped before Sample returns.
func (t *StabilityTracker) Sample(path string, now time.Time) (Phase, error) {
	st, ok := t.states[path]
	if !ok {
		return PhaseGone, nil
	}

	size, err := t.size(path)
	if err != nil {
		delete(t.states, path)
		if errors.Is(err, fs.ErrNotExist) {
			return PhaseGone, nil
		}
		return PhaseAbandoned, err
	}

	if size == st.LastSize && size > 0 {
		delete(t.states, path)
		return PhaseStable, nil
	}

	st.LastSize = size
	st.Reads++
	if st.Reads >= t.retries {
		if !st.Dirty {
			delete(t.states, path)
			return PhaseAbandoned, nil
		}
		// The file was written to during this round: start a new one
		// from the size just read.
		st.Dirty = false
		st.Reads = 0
	}
	st.NextCheck = now.Add(t.interval)
	return PhaseSampling, nil
}

// Due returns the tracked paths whose next check is at or before now, earliest first.
func (t *StabilityTracker) Due(now time.Time) []string {
	var due []*StabilityState
	for _, st := range t.states {
		if !st.NextCheck.After(now) {
			due = append(due, st)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextCheck.Equal(due[j].NextCheck) {
			return due[i].Path < due[j].Path
		}
		return due[i].NextCheck.Before(due[j].NextCheck)
	})
	paths := make([]string, len(due))
	for i, st := range due {
		paths[i] = st.Path
	}
	return paths
}

// NextDue returns the earliest pending check.
func (t *StabilityTracker) NextDue() (time.Time, bool) {
	var next time.Time
	found := false
	for _, st := range t.states {
		if !found || st.NextCheck.Before(next) {
			next = st.NextCheck
			found = true
		}
	}
	return next, found
}

// State returns a copy of the tracking entry for path.
func (t *StabilityTracker) State(path string) (StabilityState, bool) {
	st, ok := t.states[path]
	if !ok {
		return StabilityState{}, false
	}
	return *st, true
}

// Forget drops path without a verdict, e.g. when it was removed.
func (t *StabilityTracker) Forget(path string) {
	delete(t.states, path)
}

// Len returns the number of tracked paths.
func (t *StabilityTracker) Len() int {
	return len(t.states)
}
