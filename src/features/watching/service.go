package watching

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/contre95/dropsort/src/features/config"
	"github.com/contre95/dropsort/src/triage"
	"github.com/gofrs/flock"
)

var (
	// ErrAlreadyRunning is returned by Start while a watch is active.
	ErrAlreadyRunning = errors.New("watcher already running")
	// ErrNotRunning is returned by Stop when nothing is being watched.
	ErrNotRunning = errors.New("watcher not running")
	// ErrRootLocked means another process is already watching the same root.
	ErrRootLocked = errors.New("root is being watched by another process")
)

// SourceFactory creates a fresh EventSource for every watch session.
type SourceFactory func() (EventSource, error)

// Status describes the watch session for the status API.
type Status struct {
	Running   bool      `json:"running"`
	Root      string    `json:"root"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Stats     Stats     `json:"stats"`
}

// Service owns at most one Watcher at a time and guards the root with a
// cross-process lock so two instances never watch the same directory.
type Service struct {
	root      string
	factory   SourceFactory
	processor Processor
	rules     *triage.Rules
	sink      triage.Sink
	opts      Options
	lockPath  string

	mu        sync.Mutex
	watcher   *Watcher
	lock      *flock.Flock
	cancel    context.CancelFunc
	startedAt time.Time
	last      Stats
	requested bool
}

// NewService creates a watching service for root.
func NewService(root string, factory SourceFactory, processor Processor, rules *triage.Rules, sink triage.Sink, opts Options) *Service {
	sum := sha1.Sum([]byte(filepath.Clean(root)))
	lockDir := opts.LockDir
	if lockDir == "" {
		lockDir = config.DefaultLockDir()
	}
	return &Service{
		root:      filepath.Clean(root),
		factory:   factory,
		processor: processor,
		rules:     rules,
		sink:      sink,
		opts:      opts,
		lockPath:  filepath.Join(lockDir, "watch-"+hex.EncodeToString(sum[:])+".lock"),
	}
}

// Start begins watching the root. It fails if a watch is already active here
// or in another process, or if the directory cannot be subscribed to.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil && s.watcher.Running() {
		return ErrAlreadyRunning
	}
	s.releaseLocked()

	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	lock := flock.New(s.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.lockPath, err)
	}
	if !locked {
		return ErrRootLocked
	}

	source, err := s.factory()
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("failed to create event source: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(s.root, source, s.processor, s.rules, s.sink, s.opts)
	if err := w.Start(ctx); err != nil {
		cancel()
		_ = lock.Unlock()
		return err
	}

	s.watcher = w
	s.lock = lock
	s.cancel = cancel
	s.startedAt = time.Now()
	s.requested = false
	go s.release(w)
	return nil
}

// release frees the root lock once w's loop ends, whatever ended it.
func (s *Service) release(w *Watcher) {
	<-w.Done()
	w.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == w {
		s.releaseLocked()
	}
}

func (s *Service) releaseLocked() {
	if s.watcher != nil {
		s.last = s.watcher.Stats()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			slog.Warn("Failed to release watch lock", "path", s.lockPath, "error", err)
		}
		s.lock = nil
	}
}

// Stop ends the current watch and waits for an in-flight move to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	w := s.watcher
	if w == nil || !w.Running() {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.requested = true
	s.mu.Unlock()

	w.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == w {
		s.releaseLocked()
	}
	return nil
}

// Status reports whether a watch is active and its counters.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Root: s.root, Stats: s.last}
	if s.watcher != nil && s.watcher.Running() {
		st.Running = true
		st.StartedAt = s.startedAt
		st.Stats = s.watcher.Stats()
	}
	return st
}

// Done is closed when the current watch ends. It is nil if no watch was started.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Done()
}

// StopRequested reports whether the last watch ended through Stop rather than
// on its own, e.g. because the event source closed.
func (s *Service) StopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}
