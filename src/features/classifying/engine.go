package classifying

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/contre95/dropsort/src/triage"
	"github.com/google/uuid"
)

// CategoryResolver picks the destination category for a file.
type CategoryResolver interface {
	Resolve(ctx context.Context, file *triage.CandidateFile) Resolution
}

// Engine runs classify-and-move for single files and for bulk sweeps.
// It never returns an error: every failure ends up in the MoveResult.
type Engine struct {
	rules    *triage.Rules
	resolver CategoryResolver
	mover    triage.Mover
}

// NewEngine creates a new classification engine.
func NewEngine(rules *triage.Rules, resolver CategoryResolver, mover triage.Mover) *Engine {
	return &Engine{rules: rules, resolver: resolver, mover: mover}
}

// Rules returns the policy the engine was built with.
func (e *Engine) Rules() *triage.Rules {
	return e.rules
}

// Process classifies and moves the file at path.
func (e *Engine) Process(ctx context.Context, path string) triage.MoveResult {
	name := filepath.Base(path)
	result := triage.MoveResult{
		ID:        uuid.New().String(),
		Source:    path,
		Name:      name,
		Timestamp: time.Now(),
	}
	if e.rules.IsExcluded(name) {
		result.Skipped = true
		return result
	}

	file, err := triage.NewCandidateFile(path)
	if err != nil {
		return fail(result, fmt.Errorf("failed to read file: %w", err))
	}
	result.Source = file.Path
	return e.process(ctx, file, result)
}

// ProcessFile classifies and moves an already observed file.
func (e *Engine) ProcessFile(ctx context.Context, file *triage.CandidateFile) triage.MoveResult {
	result := triage.MoveResult{
		ID:        uuid.New().String(),
		Source:    file.Path,
		Name:      file.Name,
		Timestamp: time.Now(),
	}
	if e.rules.IsExcluded(file.Name) {
		result.Skipped = true
		return result
	}
	return e.process(ctx, file, result)
}

// ProcessAll is the bulk entry point: one result per path, in input order.
func (e *Engine) ProcessAll(ctx context.Context, paths []string) []triage.MoveResult {
	results := make([]triage.MoveResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			results = append(results, fail(triage.MoveResult{
				ID:        uuid.New().String(),
				Source:    path,
				Name:      filepath.Base(path),
				Timestamp: time.Now(),
			}, err))
			continue
		}
		results = append(results, e.Process(ctx, path))
	}
	return results
}

// Resolve returns the category a file would get, without moving it.
func (e *Engine) Resolve(ctx context.Context, path string) (Resolution, error) {
	name := filepath.Base(path)
	if e.rules.IsExcluded(name) {
		return Resolution{}, fmt.Errorf("%s: %w", name, triage.ErrExcluded)
	}
	file, err := triage.NewCandidateFile(path)
	if err != nil {
		return Resolution{}, err
	}
	return e.resolver.Resolve(ctx, file), nil
}

func (e *Engine) process(ctx context.Context, file *triage.CandidateFile, result triage.MoveResult) (res triage.MoveResult) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Panic while processing file", "file", file.Path, "panic", p)
			res = fail(result, fmt.Errorf("panic while processing %s: %v", file.Name, p))
		}
	}()

	resolution := e.resolver.Resolve(ctx, file)
	result.Category = resolution.Category

	dest, err := e.mover.Move(ctx, file, resolution.Category)
	if err != nil {
		slog.Warn("Failed to move file", "file", file.Path, "category", resolution.Category, "error", err)
		return fail(result, err)
	}

	result.Success = true
	result.Destination = dest
	slog.Info("Moved file", "file", file.Name, "category", resolution.Category, "reason", resolution.Reason, "destination", dest)
	return result
}

func fail(result triage.MoveResult, err error) triage.MoveResult {
	result.Success = false
	result.Err = err
	result.Error = err.Error()
	return result
}
