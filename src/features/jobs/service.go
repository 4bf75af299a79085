package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/contre95/dropsort/src/features/config"
	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrPartial marks a task that finished with some failed items.
// Such jobs complete rather than fail.
var ErrPartial = errors.New("completed with errors")

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Status    JobStatus      `json:"status"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Logger    *slog.Logger   `json:"-"`
	LogPath   string         `json:"log_path,omitempty"`

	cancel    context.CancelFunc
	cancelled bool
	logFile   io.Closer
	done      chan struct{}
}

// Task defines the specific logic for a job type.
type Task interface {
	MetadataKeys() []string
	Execute(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error)
}

// Service runs jobs in the background, one at a time per job type.
type Service struct {
	jobs   map[string]*Job
	tasks  map[string]Task
	mu     sync.RWMutex
	config *config.Jobs
}

func NewService(cfg *config.Jobs) *Service {
	return &Service{
		jobs:   make(map[string]*Job),
		tasks:  make(map[string]Task),
		config: cfg,
	}
}

func (s *Service) RegisterTask(jobType string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[jobType] = task
}

// StartJob queues a job. It starts right away unless a job of the same type is running.
func (s *Service) StartJob(jobType string, name string, metadata map[string]any) (string, error) {
	s.mu.RLock()
	task, ok := s.tasks[jobType]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no task registered for job type %q", jobType)
	}
	for _, key := range task.MetadataKeys() {
		if _, ok := metadata[key]; !ok {
			return "", fmt.Errorf("missing %s in job metadata", key)
		}
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Name:      name,
		Status:    JobStatusPending,
		Message:   "Queued",
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
		done:      make(chan struct{}),
	}
	if err := s.openJobLog(job); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	if !s.isJobTypeRunning(jobType) {
		job.Status = JobStatusRunning
		s.mu.Unlock()
		go s.executeJob(job, task)
	} else {
		s.mu.Unlock()
	}
	return job.ID, nil
}

func (s *Service) openJobLog(job *Job) error {
	if !s.config.Log {
		job.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}
	if err := os.MkdirAll(s.config.LogPath, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath := filepath.Join(s.config.LogPath, fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), job.ID))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	job.Logger = slog.New(slog.NewTextHandler(logFile, nil))
	job.LogPath = logPath
	job.logFile = logFile
	return nil
}

func (s *Service) executeJob(job *Job, task Task) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.mu.Lock()
	job.cancel = cancel
	alreadyCancelled := job.cancelled
	s.mu.Unlock()
	if alreadyCancelled {
		cancel()
	}

	s.setStatus(job.ID, JobStatusRunning, "Starting...", nil)
	job.Logger.Info("Starting job", "name", job.Name, "type", job.Type)

	progress := func(percentage int, message string) {
		s.UpdateJobProgress(job.ID, percentage, message)
		job.Logger.Info("Progress", "percentage", percentage, "status", message)
	}
	stats, err := s.run(ctx, job, task, progress)

	s.mu.Lock()
	if stats != nil {
		if job.Metadata == nil {
			job.Metadata = make(map[string]any)
		}
		maps.Copy(job.Metadata, stats)
	}
	cancelled := job.cancelled
	s.mu.Unlock()

	var next *Job
	var nextTask Task
	switch {
	case cancelled || errors.Is(err, context.Canceled):
		next, nextTask = s.finish(job, JobStatusCancelled, "Job cancelled", nil)
	case errors.Is(err, ErrPartial):
		next, nextTask = s.finish(job, JobStatusCompleted, "Job completed with errors", nil)
	case err != nil:
		job.Logger.Error("Error during job execution", "error", err)
		next, nextTask = s.finish(job, JobStatusFailed, err.Error(), err)
	default:
		job.Logger.Info("Job finished successfully", "name", job.Name)
		next, nextTask = s.finish(job, JobStatusCompleted, "Job completed successfully", nil)
	}
	s.executeWebhook(job)
	if job.logFile != nil {
		job.logFile.Close()
	}
	close(job.done)
	if next != nil {
		go s.executeJob(next, nextTask)
	}
}

// finish marks job terminal and, under the same lock, promotes the oldest
// pending job of its type to running. StartJob never sees a gap in between.
func (s *Service) finish(job *Job, status JobStatus, message string, err error) (*Job, Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(job, status, message, err)
	return s.promoteNextPendingLocked(job.Type)
}

func (s *Service) run(ctx context.Context, job *Job, task Task, progress func(int, string)) (stats map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Job panicked", "job", job.ID, "type", job.Type, "panic", p)
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return task.Execute(ctx, job, progress)
}

func (s *Service) setStatus(jobID string, status JobStatus, message string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	s.setStatusLocked(job, status, message, err)
}

func (s *Service) setStatusLocked(job *Job, status JobStatus, message string, err error) {
	job.Status = status
	job.Message = message
	job.UpdatedAt = time.Now()
	if err != nil {
		job.Error = err.Error()
	}
	if status == JobStatusCompleted {
		job.Progress = 100
	}
}

func (s *Service) UpdateJobProgress(jobID string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status.Finished() {
		return
	}
	job.Progress = progress
	job.Message = message
	job.UpdatedAt = time.Now()
}

func (s *Service) CancelJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Finished() {
		return nil
	}
	job.cancelled = true
	job.Message = "Cancelling"
	job.UpdatedAt = time.Now()
	if job.cancel != nil {
		job.cancel()
	}
	return nil
}

// GetJob returns a copy of the job so callers never race with the runner.
func (s *Service) GetJob(jobID string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return snapshot(job), true
}

// GetJobs returns all known jobs, newest first.
func (s *Service) GetJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, snapshot(job))
	}
	slices.SortFunc(jobs, func(a, b Job) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return jobs
}

// Wait blocks until the job finishes or ctx ends.
func (s *Service) Wait(ctx context.Context, jobID string) (Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}
	select {
	case <-job.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
	got, _ := s.GetJob(jobID)
	return got, nil
}

func snapshot(job *Job) Job {
	c := *job
	c.Metadata = maps.Clone(job.Metadata)
	return c
}

func (s *Service) isJobTypeRunning(jobType string) bool {
	for _, job := range s.jobs {
		if job.Type == jobType && job.Status == JobStatusRunning {
			return true
		}
	}
	return false
}

func (s *Service) promoteNextPendingLocked(jobType string) (*Job, Task) {
	var next *Job
	for _, job := range s.jobs {
		if job.Type == jobType && job.Status == JobStatusPending {
			if next == nil || job.CreatedAt.Before(next.CreatedAt) {
				next = job
			}
		}
	}
	if next == nil {
		return nil, nil
	}
	next.Status = JobStatusRunning
	return next, s.tasks[jobType]
}

// ClearFinished forgets finished jobs and removes their log files.
func (s *Service) ClearFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for id, job := range s.jobs {
		if !job.Status.Finished() {
			continue
		}
		if job.LogPath != "" {
			os.Remove(job.LogPath)
		}
		delete(s.jobs, id)
		cleared++
	}
	return cleared
}

// executeWebhook runs the configured shell command for finished jobs of the selected types.
func (s *Service) executeWebhook(job *Job) {
	hooks := s.config.Webhooks
	if !hooks.Enabled || hooks.Command == "" {
		return
	}
	if !slices.Contains(hooks.JobTypes, job.Type) && !slices.Contains(hooks.JobTypes, "*") {
		return
	}

	s.mu.RLock()
	data := struct {
		Name     string
		Type     string
		Status   string
		Message  string
		Duration string
	}{
		Name:     job.Name,
		Type:     job.Type,
		Status:   string(job.Status),
		Message:  job.Message,
		Duration: time.Since(job.CreatedAt).Round(time.Second).String(),
	}
	if msg, ok := job.Metadata["msg"].(string); ok && msg != "" {
		data.Message = msg
	}
	s.mu.RUnlock()

	tmpl, err := template.New("webhook").Parse(hooks.Command)
	if err != nil {
		job.Logger.Error("Failed to parse webhook template", "error", err)
		return
	}
	var command strings.Builder
	if err := tmpl.Execute(&command, data); err != nil {
		job.Logger.Error("Failed to execute webhook template", "error", err)
		return
	}
	go runWebhookCommand(command.String(), job.Type)
}

func runWebhookCommand(command, jobType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Env = os.Environ()
	if out, err := cmd.CombinedOutput(); err != nil {
		slog.Error("Webhook execution failed", "type", jobType, "error", err, "output", string(out))
		return
	}
	slog.Debug("Webhook executed", "type", jobType)
}
