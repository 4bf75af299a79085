package watching

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sizes returns a SizeFunc replaying the given sizes, repeating the last one.
func sizes(values ...int64) SizeFunc {
	i := 0
	return func(string) (int64, error) {
		v := values[min(i, len(values)-1)]
		i++
		return v, nil
	}
}

func TestStabilityTracker_StableAfterTwoEqualSamples(t *testing.T) {
	tr := NewStabilityTracker(5, time.Second, sizes(42))
	now := time.Now()
	require.True(t, tr.Observe("/d/a", now))

	phase, err := tr.Sample("/d/a", now)
	require.NoError(t, err)
	assert.Equal(t, PhaseSampling, phase)

	st, ok := tr.State("/d/a")
	require.True(t, ok)
	assert.Equal(t, int64(42), st.LastSize)
	assert.Equal(t, 1, st.Reads)
	assert.Equal(t, now.Add(time.Second), st.NextCheck)

	phase, err = tr.Sample("/d/a", now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, PhaseStable, phase)
	assert.Zero(t, tr.Len(), "stable entries are dropped")
}

func TestStabilityTracker_GrowingFileIsAbandoned(t *testing.T) {
	tr := NewStabilityTracker(5, time.Second, sizes(1, 2, 3, 4, 5, 6))
	now := time.Now()
	tr.Observe("/d/big.iso", now)

	var phases []Phase
	for i := 0; i < 5; i++ {
		phase, err := tr.Sample("/d/big.iso", now)
		require.NoError(t, err)
		phases = append(phases, phase)
	}
	assert.Equal(t, []Phase{PhaseSampling, PhaseSampling, PhaseSampling, PhaseSampling, PhaseAbandoned}, phases)
	assert.Zero(t, tr.Len())

	assert.True(t, tr.Observe("/d/big.iso", now), "a later event restarts tracking")
}

func TestStabilityTracker_EmptyFileNeverStable(t *testing.T) {
	tr := NewStabilityTracker(3, time.Second, sizes(0))
	now := time.Now()
	tr.Observe("/d/empty", now)

	var last Phase
	for i := 0; i < 3; i++ {
		last, _ = tr.Sample("/d/empty", now)
	}
	assert.Equal(t, PhaseAbandoned, last)
}

func TestStabilityTracker_DuplicateObserveIsCoalesced(t *testing.T) {
	tr := NewStabilityTracker(5, time.Second, sizes(1))
	now := time.Now()
	assert.True(t, tr.Observe("/d/a", now))
	assert.False(t, tr.Observe("/d/a", now.Add(time.Millisecond)))
	assert.Equal(t, 1, tr.Len())
}

func TestStabilityTracker_MissingFileIsGone(t *testing.T) {
	tr := NewStabilityTracker(5, time.Second, func(string) (int64, error) {
		return 0, fs.ErrNotExist
	})
	tr.Observe("/d/a", time.Now())
	phase, err := tr.Sample("/d/a", time.Now())
	assert.NoError(t, err)
	assert.Equal(t, PhaseGone, phase)
	assert.Zero(t, tr.Len())
}

func TestStabilityTracker_ReadErrorAbandons(t *testing.T) {
	tr := NewStabilityTracker(5, time.Second, func(string) (int64, error) {
		return 0, errors.New("permission denied")
	})
	tr.Observe("/d/a", time.Now())
	phase, err := tr.Sample("/d/a", time.Now())
	assert.Error(t, err)
	assert.Equal(t, PhaseAbandoned, phase)
	assert.Zero(t, tr.Len())
}

func TestStabilityTracker_DueOrdering(t *testing.T) {
	tr := NewStabilityTracker(5, time.Second, sizes(1))
	now := time.Now()
	tr.Observe("/d/b", now.Add(-time.Second))
	tr.Observe("/d/a", now)
	tr.Observe("/d/c", now.Add(time.Minute))

	assert.Equal(t, []string{"/d/b", "/d/a"}, tr.Due(now))

	next, ok := tr.NextDue()
	require.True(t, ok)
	assert.Equal(t, now.Add(-time.Second), next)

	tr.Forget("/d/b")
	tr.Forget("/d/a")
	tr.Forget("/d/c")
	_, ok = tr.NextDue()
	assert.False(t, ok)
}

func TestStabilityTracker_DirtyRoundIsRearmedOnce(t *testing.T) {
	tr := NewStabilityTracker(3, time.Second, sizes(100, 200, 300, 300))
	now := time.Now()
	tr.Observe("/d/export.mov", now)

	phase, _ := tr.Sample("/d/export.mov", now)
	assert.Equal(t, PhaseSampling, phase)
	phase, _ = tr.Sample("/d/export.mov", now)
	assert.Equal(t, PhaseSampling, phase)

	assert.False(t, tr.Observe("/d/export.mov", now))
	st, _ := tr.State("/d/export.mov")
	assert.True(t, st.Dirty)

	phase, _ = tr.Sample("/d/export.mov", now)
	assert.Equal(t, PhaseSampling, phase, "a write during the round earns another round")
	st, _ = tr.State("/d/export.mov")
	assert.False(t, st.Dirty)
	assert.Zero(t, st.Reads)

	phase, _ = tr.Sample("/d/export.mov", now)
	assert.Equal(t, PhaseStable, phase)
}

func TestStabilityTracker_CleanRoundStillAbandons(t *testing.T) {
	tr := NewStabilityTracker(2, time.Second, sizes(1, 2, 3, 4, 5))
	now := time.Now()
	tr.Observe("/d/a", now)
	tr.Observe("/d/a", now)

	tr.Sample("/d/a", now)
	phase, _ := tr.Sample("/d/a", now)
	assert.Equal(t, PhaseSampling, phase, "dirty round re-armed")
	tr.Sample("/d/a", now)
	phase, _ = tr.Sample("/d/a", now)
	assert.Equal(t, PhaseAbandoned, phase, "no event since the re-arm")
	assert.Zero(t, tr.Len())
}
