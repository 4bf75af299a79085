package watching

import (
	"context"
	"time"
)

// FileEventType represents the type of file system event
type FileEventType string

const (
	FileCreated  FileEventType = "created"
	FileModified FileEventType = "modified"
	FileRemoved  FileEventType = "removed"
	FileRenamed  FileEventType = "renamed"
)

// FileEvent represents a file system event
type FileEvent struct {
	Path      string
	EventType FileEventType
	Timestamp time.Time
}

// EventSource subscribes to change notifications for a single directory, non-recursively.
type EventSource interface {
	// Start begins the subscription and returns once it is active.
	Start(ctx context.Context, dir string) error
	Events() <-chan FileEvent
	Errors() <-chan error
	// Close ends the subscription. It is safe to call more than once.
	Close() error
}
