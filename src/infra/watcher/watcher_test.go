package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contre95/dropsort/src/features/watching"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		op   fsnotify.Op
		want watching.FileEventType
		ok   bool
	}{
		{fsnotify.Create, watching.FileCreated, true},
		{fsnotify.Write, watching.FileModified, true},
		{fsnotify.Remove, watching.FileRemoved, true},
		{fsnotify.Rename, watching.FileRenamed, true},
		{fsnotify.Create | fsnotify.Write, watching.FileCreated, true},
		{fsnotify.Chmod, "", false},
	}
	for _, tc := range cases {
		got, ok := translate(fsnotify.Event{Name: "/tmp/a", Op: tc.op})
		assert.Equal(t, tc.ok, ok, tc.op.String())
		assert.Equal(t, tc.want, got.EventType, tc.op.String())
	}
}

func TestFSNotifySource_DeliversCreate(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFSNotifySource()
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.Start(context.Background(), dir))

	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-src.Events():
			if ev.Path == path {
				assert.Contains(t, []watching.FileEventType{watching.FileCreated, watching.FileModified}, ev.EventType)
				return
			}
		case <-deadline:
			t.Fatal("no event received for new file")
		}
	}
}

func TestFSNotifySource_StartFailsForMissingDir(t *testing.T) {
	src, err := NewFSNotifySource()
	require.NoError(t, err)
	defer src.Close()

	err = src.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.NoError(t, src.Close())
}
