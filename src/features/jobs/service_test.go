package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contre95/dropsort/src/features/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcTask struct {
	keys []string
	fn   func(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error)
}

func (t funcTask) MetadataKeys() []string { return t.keys }

func (t funcTask) Execute(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error) {
	return t.fn(ctx, job, progress)
}

func waitJob(t *testing.T, s *Service, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := s.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func TestService_CompletesAndMergesStats(t *testing.T) {
	s := NewService(&config.Jobs{})
	s.RegisterTask("sweep", funcTask{keys: []string{"path"}, fn: func(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error) {
		progress(50, "halfway")
		return map[string]any{"moved": 3}, nil
	}})

	id, err := s.StartJob("sweep", "Sweep", map[string]any{"path": "/tmp"})
	require.NoError(t, err)

	job := waitJob(t, s, id)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 3, job.Metadata["moved"])
}

func TestService_RejectsUnknownTypeAndMissingMetadata(t *testing.T) {
	s := NewService(&config.Jobs{})
	_, err := s.StartJob("nope", "x", nil)
	assert.Error(t, err)

	s.RegisterTask("sweep", funcTask{keys: []string{"path"}})
	_, err = s.StartJob("sweep", "x", map[string]any{})
	assert.ErrorContains(t, err, "path")
}

func TestService_StatusFromTaskError(t *testing.T) {
	s := NewService(&config.Jobs{})
	s.RegisterTask("partial", funcTask{fn: func(context.Context, *Job, func(int, string)) (map[string]any, error) {
		return nil, ErrPartial
	}})
	s.RegisterTask("broken", funcTask{fn: func(context.Context, *Job, func(int, string)) (map[string]any, error) {
		return nil, errors.New("root missing")
	}})
	s.RegisterTask("panics", funcTask{fn: func(context.Context, *Job, func(int, string)) (map[string]any, error) {
		panic("kaboom")
	}})

	id, _ := s.StartJob("partial", "p", nil)
	assert.Equal(t, JobStatusCompleted, waitJob(t, s, id).Status)

	id, _ = s.StartJob("broken", "b", nil)
	job := waitJob(t, s, id)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "root missing", job.Error)

	id, _ = s.StartJob("panics", "p", nil)
	assert.Equal(t, JobStatusFailed, waitJob(t, s, id).Status)
}

func TestService_CancelRunningJob(t *testing.T) {
	s := NewService(&config.Jobs{})
	started := make(chan struct{})
	s.RegisterTask("slow", funcTask{fn: func(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	id, err := s.StartJob("slow", "slow", nil)
	require.NoError(t, err)
	<-started
	require.NoError(t, s.CancelJob(id))
	assert.Equal(t, JobStatusCancelled, waitJob(t, s, id).Status)

	assert.ErrorIs(t, s.CancelJob("missing"), ErrJobNotFound)
}

func TestService_SameTypeRunsOneAtATime(t *testing.T) {
	s := NewService(&config.Jobs{})
	release := make(chan struct{})
	s.RegisterTask("sweep", funcTask{fn: func(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error) {
		<-release
		return nil, nil
	}})

	first, _ := s.StartJob("sweep", "first", nil)
	second, _ := s.StartJob("sweep", "second", nil)

	job, _ := s.GetJob(second)
	assert.Equal(t, JobStatusPending, job.Status)

	close(release)
	assert.Equal(t, JobStatusCompleted, waitJob(t, s, first).Status)
	assert.Equal(t, JobStatusCompleted, waitJob(t, s, second).Status)
}

func TestService_NextJobIsPromotedBeforeWaitReturns(t *testing.T) {
	s := NewService(&config.Jobs{})
	release := make(chan struct{}, 3)
	s.RegisterTask("sweep", funcTask{fn: func(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error) {
		<-release
		return nil, nil
	}})

	first, _ := s.StartJob("sweep", "first", nil)
	second, _ := s.StartJob("sweep", "second", nil)

	release <- struct{}{}
	waitJob(t, s, first)

	job, _ := s.GetJob(second)
	assert.Equal(t, JobStatusRunning, job.Status, "handed over as the first one finished")

	third, _ := s.StartJob("sweep", "third", nil)
	job, _ = s.GetJob(third)
	assert.Equal(t, JobStatusPending, job.Status, "a late start must queue behind the promoted job")

	release <- struct{}{}
	release <- struct{}{}
	assert.Equal(t, JobStatusCompleted, waitJob(t, s, second).Status)
	assert.Equal(t, JobStatusCompleted, waitJob(t, s, third).Status)
}

func TestService_ConcurrentStartsNeverOverlap(t *testing.T) {
	s := NewService(&config.Jobs{})
	var running, peak atomic.Int32
	s.RegisterTask("sweep", funcTask{fn: func(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return nil, nil
	}})

	var mu sync.Mutex
	var ids []string
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				id, err := s.StartJob("sweep", "sweep", nil)
				assert.NoError(t, err)
				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
				time.Sleep(time.Duration(i%3) * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, JobStatusCompleted, waitJob(t, s, id).Status)
	}
	assert.Equal(t, int32(1), peak.Load())
}

func TestService_JobLogAndClear(t *testing.T) {
	dir := t.TempDir()
	s := NewService(&config.Jobs{Log: true, LogPath: dir})
	s.RegisterTask("sweep", funcTask{fn: func(ctx context.Context, job *Job, progress func(int, string)) (map[string]any, error) {
		job.Logger.Info("moved something")
		return nil, nil
	}})

	id, err := s.StartJob("sweep", "logged", nil)
	require.NoError(t, err)
	job := waitJob(t, s, id)
	require.NotEmpty(t, job.LogPath)
	assert.Equal(t, dir, filepath.Dir(job.LogPath))

	content, err := os.ReadFile(job.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "moved something")

	assert.Equal(t, 1, s.ClearFinished())
	assert.Empty(t, s.GetJobs())
	assert.NoFileExists(t, job.LogPath)
}

func TestService_WebhookRunsForSelectedTypes(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "hook.txt")
	s := NewService(&config.Jobs{Webhooks: config.WebhookConfig{
		Enabled:  true,
		JobTypes: []string{"sweep"},
		Command:  "echo '{{.Type}} {{.Status}}' > " + marker,
	}})
	s.RegisterTask("sweep", funcTask{fn: func(context.Context, *Job, func(int, string)) (map[string]any, error) {
		return nil, nil
	}})

	id, _ := s.StartJob("sweep", "hooked", nil)
	waitJob(t, s, id)

	assert.Eventually(t, func() bool {
		content, err := os.ReadFile(marker)
		return err == nil && string(content) == "sweep completed\n"
	}, 5*time.Second, 20*time.Millisecond)
}
