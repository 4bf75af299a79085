package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/contre95/dropsort/src/features/watching"
	"github.com/fsnotify/fsnotify"
)

// FSNotifySource is the fsnotify backed watching.EventSource.
type FSNotifySource struct {
	watcher   *fsnotify.Watcher
	watchPath string
	events    chan watching.FileEvent
	errors    chan error
	stopChan  chan struct{}
	closeOnce sync.Once
}

// NewFSNotifySource creates a new file system event source
func NewFSNotifySource() (*FSNotifySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FSNotifySource{
		watcher:  watcher,
		events:   make(chan watching.FileEvent),
		errors:   make(chan error, 1),
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins watching watchPath (non-recursively) for file changes
func (s *FSNotifySource) Start(ctx context.Context, watchPath string) error {
	s.watchPath = watchPath
	if err := s.watcher.Add(watchPath); err != nil {
		return err
	}

	go s.watchLoop(ctx)

	slog.Debug("Subscribed to file system events", "path", watchPath)
	return nil
}

func (s *FSNotifySource) Events() <-chan watching.FileEvent {
	return s.events
}

func (s *FSNotifySource) Errors() <-chan error {
	return s.errors
}

// Close stops the file watcher
func (s *FSNotifySource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		err = s.watcher.Close()
	})
	return err
}

// watchLoop translates fsnotify events until the source is closed
func (s *FSNotifySource) watchLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			fileEvent, ok := translate(event)
			if !ok {
				continue
			}
			select {
			case s.events <- fileEvent:
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			default:
				slog.Error("File watcher error", "error", err)
			}

		case <-s.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

// translate maps an fsnotify event to a FileEvent. Chmod-only events are dropped.
func translate(event fsnotify.Event) (watching.FileEvent, bool) {
	fileEvent := watching.FileEvent{Path: event.Name, Timestamp: time.Now()}
	switch {
	case event.Has(fsnotify.Remove):
		fileEvent.EventType = watching.FileRemoved
	case event.Has(fsnotify.Rename):
		fileEvent.EventType = watching.FileRenamed
	case event.Has(fsnotify.Create):
		fileEvent.EventType = watching.FileCreated
	case event.Has(fsnotify.Write):
		fileEvent.EventType = watching.FileModified
	default:
		return watching.FileEvent{}, false
	}
	return fileEvent, true
}
