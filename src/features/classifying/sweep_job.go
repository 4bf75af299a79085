package classifying

import (
	"context"
	"errors"
	"fmt"

	"github.com/contre95/dropsort/src/features/jobs"
)

// SweepTask implements jobs.Task for directory sweeps.
type SweepTask struct {
	service *Service
}

// NewSweepTask creates a new SweepTask.
func NewSweepTask(service *Service) *SweepTask {
	return &SweepTask{service: service}
}

// MetadataKeys returns the required metadata keys for a sweep job.
func (t *SweepTask) MetadataKeys() []string {
	return []string{"path"}
}

// Execute sorts every candidate file in the job's directory, one at a time.
func (t *SweepTask) Execute(ctx context.Context, job *jobs.Job, progress func(int, string)) (map[string]any, error) {
	dir, ok := job.Metadata["path"].(string)
	if !ok || dir == "" {
		return nil, errors.New("sweep path must be a non-empty string")
	}
	paths, err := t.service.Candidates(dir)
	if err != nil {
		return nil, err
	}
	job.Logger.Info("Sweeping directory", "path", dir, "files", len(paths))

	var stats SweepStats
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return map[string]any{"stats": stats}, err
		}
		result := t.service.engine.Process(ctx, path)
		t.service.sink.Report(result)
		stats.Add(result)

		switch {
		case result.Skipped:
			job.Logger.Info("Skipped", "file", result.Name)
		case result.Success:
			job.Logger.Info("Moved", "file", result.Name, "category", result.Category, "destination", result.Destination)
		default:
			job.Logger.Warn("Failed", "file", result.Name, "error", result.Error)
		}
		progress((i+1)*100/len(paths), fmt.Sprintf("Processed %s", result.Name))
	}

	msg := fmt.Sprintf("Sweep finished. %d moved, %d failed, %d skipped.", stats.Moved, stats.Failed, stats.Skipped)
	job.Logger.Info(msg)
	out := map[string]any{"stats": stats, "msg": msg}
	switch {
	case stats.Failed > 0 && stats.Moved == 0:
		return out, errors.New("no files could be moved")
	case stats.Failed > 0:
		return out, jobs.ErrPartial
	}
	return out, nil
}
