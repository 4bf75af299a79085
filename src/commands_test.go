package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "root: " + root + "\nlock_dir: " + t.TempDir() + "\nlogger:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSweepCommand_SortsRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("plain words\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Resume_2024.txt"), []byte("experience\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte{0}, 0644))

	out, err := run(t, "--config", writeConfig(t, root), "sweep")
	require.NoError(t, err)

	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "Project_Resume")
	assert.FileExists(t, filepath.Join(root, "Documents/Text", "notes.txt"))
	assert.FileExists(t, filepath.Join(root, "Project_Resume", "Resume_2024.txt"))
	assert.FileExists(t, filepath.Join(root, ".DS_Store"))
}

func TestSweepCommand_EmptyRoot(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t, t.TempDir()), "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to sort.")
}

func TestResolveCommand_DoesNotMove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Physics_Homework_Final.txt")
	require.NoError(t, os.WriteFile(path, []byte("F = ma\n"), 0644))

	out, err := run(t, "--config", writeConfig(t, root), "resolve", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Project_Physics")
	assert.Contains(t, out, "filename (Physics)")
	assert.FileExists(t, path)
}

func TestConfigInit_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	out, err := run(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")
}

func TestRenderTable_PadsShortRows(t *testing.T) {
	out := renderTable([]string{"File", "Category"}, [][]string{{"a.txt"}})
	assert.Contains(t, out, "File")
	assert.Contains(t, out, "a.txt")
}

func TestWaitForShutdown_StopReason(t *testing.T) {
	ended := make(chan struct{})
	close(ended)
	requested := func() bool { return true }
	unrequested := func() bool { return false }

	assert.ErrorContains(t, waitForShutdown(context.Background(), ended, unrequested, false), "stopped unexpectedly")
	assert.ErrorContains(t, waitForShutdown(context.Background(), ended, unrequested, true), "stopped unexpectedly")
	assert.NoError(t, waitForShutdown(context.Background(), ended, requested, false))

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- waitForShutdown(ctx, ended, requested, true) }()
	select {
	case err := <-result:
		t.Fatalf("returned while still serving: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("did not return after shutdown")
	}
}
