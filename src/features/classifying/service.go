package classifying

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/contre95/dropsort/src/features/reporting"
	"github.com/contre95/dropsort/src/triage"
)

// SweepJobType is the job type registered for bulk sweeps of a directory.
const SweepJobType = "directory_sweep"

// JobStarter launches background jobs.
type JobStarter interface {
	StartJob(jobType string, name string, metadata map[string]any) (string, error)
}

// SweepStats counts the outcomes of a bulk run.
type SweepStats struct {
	Moved   int `json:"moved"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Add counts one result.
func (s *SweepStats) Add(result triage.MoveResult) {
	switch {
	case result.Skipped:
		s.Skipped++
	case result.Success:
		s.Moved++
	default:
		s.Failed++
	}
}

// Service is the domain service for the classifying feature.
type Service struct {
	engine     *Engine
	root       string
	jobService JobStarter
	sink       triage.Sink
	history    reporting.History
}

// NewService creates a classifying service sweeping root by default.
func NewService(engine *Engine, root string, jobService JobStarter, sink triage.Sink, history reporting.History) *Service {
	return &Service{
		engine:     engine,
		root:       root,
		jobService: jobService,
		sink:       sink,
		history:    history,
	}
}

// Root returns the watched root directory.
func (s *Service) Root() string {
	return s.root
}

// Sweep starts a background job sorting every file directly inside dir.
// An empty dir means the root.
func (s *Service) Sweep(dir string) (string, error) {
	if dir == "" {
		dir = s.root
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("cannot sweep %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cannot sweep %s: not a directory", dir)
	}
	jobID, err := s.jobService.StartJob(SweepJobType, "Directory Sweep", map[string]any{"path": dir})
	if err != nil {
		slog.Error("Service.Sweep: failed to start job", "error", err)
		return "", fmt.Errorf("failed to start directory sweep job: %w", err)
	}
	return jobID, nil
}

// SweepPaths classifies and moves the given files now and reports every result.
func (s *Service) SweepPaths(ctx context.Context, paths []string) []triage.MoveResult {
	results := s.engine.ProcessAll(ctx, paths)
	for _, result := range results {
		s.sink.Report(result)
	}
	return results
}

// Resolve returns the category of each path without moving anything.
func (s *Service) Resolve(ctx context.Context, path string) (Resolution, error) {
	return s.engine.Resolve(ctx, path)
}

// Candidates lists the files directly inside dir that a sweep would consider,
// sorted by name. Directories, excluded names and temporary names are left out.
func (s *Service) Candidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	rules := s.engine.Rules()
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || rules.IsExcluded(name) || rules.IsTemporary(name) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

// Results returns the recent non-skipped results, newest first.
func (s *Service) Results() []triage.MoveResult {
	return s.history.GetAll()
}

// Result returns one recent result by ID.
func (s *Service) Result(id string) (triage.MoveResult, error) {
	return s.history.GetByID(id)
}

// ClearResults forgets the recent results.
func (s *Service) ClearResults() {
	s.history.Clear()
}
