package watching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contre95/dropsort/src/triage"
)

// Processor is the classify-and-move step run for every settled file.
type Processor interface {
	ProcessFile(ctx context.Context, file *triage.CandidateFile) triage.MoveResult
}

// Options tunes stability detection.
type Options struct {
	Retries  int
	Interval time.Duration
	// TrackExisting feeds the files already present in the root through the
	// stability check when the watch starts.
	TrackExisting bool
	// Size overrides how file sizes are sampled.
	Size SizeFunc
	// LockDir holds the single-instance lock. Defaults to config.DefaultLockDir.
	LockDir string
}

// Stats are counters for the lifetime of one watcher.
type Stats struct {
	Tracked   int64 `json:"tracked"`
	Processed int64 `json:"processed"`
	Abandoned int64 `json:"abandoned"`
}

// Watcher feeds settled files from one directory to a Processor, one at a time,
// and reports each outcome to a sink.
type Watcher struct {
	root      string
	source    EventSource
	processor Processor
	rules     *triage.Rules
	sink      triage.Sink
	opts      Options
	tracker   *StabilityTracker

	// handled remembers files already given to the processor in this session.
	handled map[string]os.FileInfo

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}

	tracked   atomic.Int64
	processed atomic.Int64
	abandoned atomic.Int64
}

// NewWatcher creates a watcher for root. It does nothing until Start is called.
func NewWatcher(root string, source EventSource, processor Processor, rules *triage.Rules, sink triage.Sink, opts Options) *Watcher {
	if opts.Retries <= 0 {
		opts.Retries = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Watcher{
		root:      filepath.Clean(root),
		source:    source,
		processor: processor,
		rules:     rules,
		sink:      sink,
		opts:      opts,
		tracker:   NewStabilityTracker(opts.Retries, opts.Interval, opts.Size),
		handled:   make(map[string]os.FileInfo),
	}
}

// Start subscribes to the root and returns once the subscription is active.
// A subscription failure is returned and the watcher stays stopped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}
	if w.done != nil {
		return errors.New("watcher cannot be restarted, create a new one")
	}

	slog.Info("Starting file watcher", "path", w.root, "retries", w.opts.Retries, "interval", w.opts.Interval)
	if err := w.source.Start(ctx, w.root); err != nil {
		_ = w.source.Close()
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(ctx)

	slog.Info("File watcher started successfully")
	w.sink.Log(fmt.Sprintf("👀 Watching %s for new files...", w.root))
	return nil
}

// Stop ends the subscription and the sampling loop. A file being moved is
// finished first. Calling Stop again, or on a watcher that never started, does nothing.
func (w *Watcher) Stop() {
	w.mu.Lock()
	done := w.done
	if done == nil || w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	slog.Info("Stopping file watcher", "path", w.root)
	<-done
	if err := w.source.Close(); err != nil {
		slog.Warn("Failed to close file watcher", "error", err)
	}
	w.sink.Log("Stopped watching " + w.root)
}

// Running reports whether the watch loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Done is closed when the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Tracked:   w.tracked.Load(),
		Processed: w.processed.Load(),
		Abandoned: w.abandoned.Load(),
	}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) loop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.done)
	}()

	if w.opts.TrackExisting {
		w.trackExisting()
	}

	events := w.source.Events()
	errs := w.source.Errors()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var due <-chan time.Time
		if next, ok := w.tracker.NextDue(); ok {
			timer.Reset(time.Until(next))
			due = timer.C
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Error("File watcher error", "error", err)
		case <-due:
			w.sampleDue(ctx)
		}
	}
}

// handleEvent filters noise and starts tracking candidate files.
func (w *Watcher) handleEvent(event FileEvent) {
	path := filepath.Clean(event.Path)
	if filepath.Dir(path) != w.root {
		return
	}

	switch event.EventType {
	case FileRemoved, FileRenamed:
		w.tracker.Forget(path)
		delete(w.handled, path)
		w.tracked.Store(int64(w.tracker.Len()))
		return
	}

	name := filepath.Base(path)
	if w.rules.IsExcluded(name) || w.rules.IsTemporary(name) {
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if prev, ok := w.handled[path]; ok {
		if os.SameFile(prev, info) {
			return
		}
		delete(w.handled, path)
	}

	if w.tracker.Observe(path, time.Now()) {
		slog.Debug("Tracking file until it settles", "file", path)
		w.tracked.Store(int64(w.tracker.Len()))
	}
}

// sampleDue samples every path whose check is due. A stop request is honored
// between files, never in the middle of one.
func (w *Watcher) sampleDue(ctx context.Context) {
	for _, path := range w.tracker.Due(time.Now()) {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		phase, err := w.tracker.Sample(path, time.Now())
		w.tracked.Store(int64(w.tracker.Len()))
		switch phase {
		case PhaseStable:
			w.process(ctx, path)
		case PhaseAbandoned:
			w.abandoned.Add(1)
			if err != nil {
				slog.Warn("Could not sample file, leaving it in place", "file", path, "error", err)
			} else {
				slog.Info("File did not settle, leaving it for a later event", "file", path, "retries", w.opts.Retries)
			}
		case PhaseGone:
			slog.Debug("File disappeared while sampling", "file", path)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	w.handled[path] = info

	file := &triage.CandidateFile{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	result := w.processor.ProcessFile(context.WithoutCancel(ctx), file)
	w.processed.Add(1)
	w.sink.Report(result)
}

func (w *Watcher) trackExisting() {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		slog.Warn("Failed to list existing files", "path", w.root, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.handleEvent(FileEvent{
			Path:      filepath.Join(w.root, entry.Name()),
			EventType: FileCreated,
			Timestamp: time.Now(),
		})
	}
}
