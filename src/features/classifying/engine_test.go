package classifying

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/contre95/dropsort/src/infra/files"
	"github.com/contre95/dropsort/src/triage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMover struct{}

func (failingMover) Move(context.Context, *triage.CandidateFile, string) (string, error) {
	return "", errors.New("disk full")
}

type panickyResolver struct{}

func (panickyResolver) Resolve(context.Context, *triage.CandidateFile) Resolution {
	panic("boom")
}

func newTestEngine(t *testing.T, root string, sniffer *fakeSniffer, extractor *fakeExtractor) *Engine {
	rules := defaultRules()
	return NewEngine(rules, NewResolver(rules, sniffer, extractor), files.NewCollisionSafeMover(root, t.TempDir()))
}

func TestEngine_ManualSandbox(t *testing.T) {
	root := t.TempDir()
	sniffer := &fakeSniffer{types: map[string]string{
		"boring_document.txt":        "text/plain",
		"vacation_photo.jpg":         "image/jpeg",
		"Physics_Homework_Final.pdf": "application/pdf",
		"random_scan_001.png":        "image/png",
	}}
	extractor := &fakeExtractor{texts: map[string]string{"receipt": "This is an official Invoice for $500"}}
	engine := newTestEngine(t, root, sniffer, extractor)

	inputs := map[string]string{
		"boring_document.txt":        "words",
		"vacation_photo.jpg":         "jpeg",
		"Physics_Homework_Final.pdf": "pdf",
		"random_scan_001.png":        "receipt",
	}
	var paths []string
	for _, name := range []string{"boring_document.txt", "vacation_photo.jpg", "Physics_Homework_Final.pdf", "random_scan_001.png"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(path, []byte(inputs[name]), 0644))
		paths = append(paths, path)
	}

	results := engine.ProcessAll(context.Background(), paths)
	require.Len(t, results, 4)

	want := []string{"Documents/Text", "Media/Images", "Project_Physics", "Project_Invoice"}
	for i, result := range results {
		assert.True(t, result.Success, result.Error)
		assert.Equal(t, want[i], result.Category)
		assert.Equal(t, paths[i], result.Source, "results keep input order")
		assert.Equal(t, filepath.Join(root, want[i], filepath.Base(paths[i])), result.Destination)
		assert.FileExists(t, result.Destination)
		assert.NoFileExists(t, paths[i])
	}
}

func TestEngine_CollisionsAcrossRuns(t *testing.T) {
	root := t.TempDir()
	sniffer := &fakeSniffer{types: map[string]string{"duplicate.txt": "text/plain"}}
	engine := newTestEngine(t, root, sniffer, nil)

	var dests []string
	for _, content := range []string{"one", "two", "three"} {
		path := filepath.Join(root, "duplicate.txt")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		result := engine.Process(context.Background(), path)
		require.True(t, result.Success, result.Error)
		dests = append(dests, filepath.Base(result.Destination))
	}
	assert.Equal(t, []string{"duplicate.txt", "duplicate(1).txt", "duplicate(2).txt"}, dests)
}

func TestEngine_ExcludedFilesAreSkipped(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t, root, &fakeSniffer{}, nil)

	for _, name := range []string{".DS_Store", "desktop.ini", "Thumbs.db", ".secret_Invoice.pdf"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

		result := engine.Process(context.Background(), path)
		assert.True(t, result.Skipped, name)
		assert.False(t, result.Success, name)
		assert.False(t, result.Failed(), name)
		assert.Empty(t, result.Destination, name)
		assert.FileExists(t, path, "excluded files never move")

		_, err := engine.Resolve(context.Background(), path)
		assert.ErrorIs(t, err, triage.ErrExcluded)
	}
}

func TestEngine_FailuresBecomeResults(t *testing.T) {
	root := t.TempDir()
	rules := defaultRules()
	path := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	engine := NewEngine(rules, NewResolver(rules, &fakeSniffer{}, nil), failingMover{})
	result := engine.Process(context.Background(), path)
	assert.True(t, result.Failed())
	assert.Equal(t, "disk full", result.Error)
	assert.Equal(t, triage.MiscCategory, result.Category)
	assert.FileExists(t, path)

	engine = NewEngine(rules, panickyResolver{}, failingMover{})
	result = engine.Process(context.Background(), path)
	assert.True(t, result.Failed())
	assert.Contains(t, result.Error, "panic")

	result = engine.Process(context.Background(), filepath.Join(root, "missing.txt"))
	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, os.ErrNotExist)
}

func TestEngine_ProcessAllCancelled(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t, root, &fakeSniffer{}, nil)
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := engine.ProcessAll(ctx, []string{path, filepath.Join(root, "b.txt")})
	require.Len(t, results, 2)
	for _, result := range results {
		assert.ErrorIs(t, result.Err, context.Canceled)
	}
	assert.FileExists(t, path)
}

func TestEngine_ResolveDoesNotMove(t *testing.T) {
	root := t.TempDir()
	sniffer := &fakeSniffer{types: map[string]string{"clip.mp4": "video/mp4"}}
	engine := newTestEngine(t, root, sniffer, nil)
	path := filepath.Join(root, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	res, err := engine.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Media/Videos", res.Category)
	assert.FileExists(t, path)
}
