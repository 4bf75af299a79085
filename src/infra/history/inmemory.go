package history

import (
	"sync"

	"github.com/contre95/dropsort/src/features/reporting"
	"github.com/contre95/dropsort/src/triage"
)

// InMemoryHistory is a bounded, in-memory implementation of the reporting.History interface
type InMemoryHistory struct {
	mu    sync.RWMutex
	items []triage.MoveResult // ring buffer
	next  int
	full  bool
}

// NewInMemoryHistory creates a history keeping at most size results
func NewInMemoryHistory(size int) reporting.History {
	if size <= 0 {
		size = 1
	}
	return &InMemoryHistory{items: make([]triage.MoveResult, size)}
}

// Add records a result, overwriting the oldest one when full
func (h *InMemoryHistory) Add(result triage.MoveResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[h.next] = result
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// GetAll returns all results, newest first
func (h *InMemoryHistory) GetAll() []triage.MoveResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := h.next
	if h.full {
		count = len(h.items)
	}
	out := make([]triage.MoveResult, 0, count)
	for i := 1; i <= count; i++ {
		idx := (h.next - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// GetByID returns a specific result by ID
func (h *InMemoryHistory) GetByID(id string) (triage.MoveResult, error) {
	for _, item := range h.GetAll() {
		if item.ID == id {
			return item, nil
		}
	}
	return triage.MoveResult{}, reporting.ErrNotFound
}

// Clear removes all results
func (h *InMemoryHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.items)
	h.next = 0
	h.full = false
}
