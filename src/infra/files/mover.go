package files

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/contre95/dropsort/src/triage"
	"github.com/gofrs/flock"
)

// copyData is swapped in tests to fail a copy partway.
var copyData = io.Copy

// maxSuffix bounds the "(n)" search so a pathological folder cannot spin forever.
const maxSuffix = 100000

const lockRetryDelay = 50 * time.Millisecond

// CollisionSafeMover is the infrastructure implementation of the triage.Mover interface.
// It moves files into root/<category>/ and never overwrites an existing file.
type CollisionSafeMover struct {
	root    string
	lockDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCollisionSafeMover creates a mover rooted at root. Advisory lock files for the
// category folders are kept in lockDir, which should live outside the watched tree
// and belong to the user running the mover.
func NewCollisionSafeMover(root, lockDir string) *CollisionSafeMover {
	return &CollisionSafeMover{
		root:    root,
		lockDir: lockDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Root returns the folder categories are created under.
func (m *CollisionSafeMover) Root() string {
	return m.root
}

// Move relocates file into root/category, picking "name(n).ext" when the name is taken.
func (m *CollisionSafeMover) Move(ctx context.Context, file *triage.CandidateFile, category string) (string, error) {
	destDir, err := m.categoryDir(category)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	unlock, err := m.lock(ctx, destDir)
	if err != nil {
		return "", err
	}
	defer unlock()

	dest, err := nextFreePath(destDir, file.Name)
	if err != nil {
		return "", err
	}
	if err := relocate(file.Path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// categoryDir resolves category under the root and refuses paths escaping it.
func (m *CollisionSafeMover) categoryDir(category string) (string, error) {
	clean := filepath.Clean(category)
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid category %q", category)
	}
	return filepath.Join(m.root, clean), nil
}

// lock serializes name allocation for one destination folder, inside this process
// with a mutex and across processes with an advisory file lock.
func (m *CollisionSafeMover) lock(ctx context.Context, dir string) (func(), error) {
	m.mu.Lock()
	mu, ok := m.locks[dir]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[dir] = mu
	}
	m.mu.Unlock()
	mu.Lock()

	if err := os.MkdirAll(m.lockDir, 0o700); err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	sum := sha1.Sum([]byte(dir))
	fileLock := flock.New(filepath.Join(m.lockDir, fmt.Sprintf("%x.lock", sum)))
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			slog.Warn("Failed to release category lock", "dir", dir, "error", err)
		}
		mu.Unlock()
	}, nil
}

// nextFreePath returns dir/name, or the first dir/stem(n)suffix that does not exist.
// Every candidate is checked against the filesystem, nothing is cached.
func nextFreePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	free, err := isFree(candidate)
	if err != nil || free {
		return candidate, err
	}

	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for n := 1; n <= maxSuffix; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s(%d)%s", stem, n, ext))
		free, err := isFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s: %w", name, dir, triage.ErrDestinationExists)
}

func isFree(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", path, err)
}

// relocate moves src to dst without ever replacing dst. A hard link is the
// no-clobber primitive on one filesystem. Across filesystems the file is copied
// to an exclusively created dst and the source removed afterwards.
func relocate(src, dst string) error {
	err := os.Link(src, dst)
	switch {
	case err == nil:
		if err := os.Remove(src); err != nil {
			_ = os.Remove(dst)
			return fmt.Errorf("failed to remove source file after move: %w", err)
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s: %w", dst, triage.ErrDestinationExists)
	case isCrossDeviceError(err):
		return copyThenRemove(src, dst)
	}

	// Filesystems without hard links: the category lock covers the window
	// between the existence check and the rename.
	if _, statErr := os.Lstat(dst); statErr == nil {
		return fmt.Errorf("%s: %w", dst, triage.ErrDestinationExists)
	}
	if err := os.Rename(src, dst); err != nil {
		if isCrossDeviceError(err) {
			return copyThenRemove(src, dst)
		}
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

// isCrossDeviceError checks if an error is due to cross-device link (moving across filesystems)
func isCrossDeviceError(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func copyThenRemove(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to remove source file after copy: %w", err)
	}
	return nil
}

// copyFile copies src into a newly created dst. dst is removed if anything fails.
func copyFile(src, dst string) (err error) {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !sourceFileStat.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", src, triage.ErrNotRegular)
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, sourceFileStat.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", dst, triage.ErrDestinationExists)
		}
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	written, err := copyData(destination, source)
	if err != nil {
		destination.Close()
		return err
	}
	if written != sourceFileStat.Size() {
		destination.Close()
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", sourceFileStat.Size(), written)
	}
	if err = destination.Sync(); err != nil {
		destination.Close()
		return err
	}
	if err = destination.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, sourceFileStat.ModTime(), sourceFileStat.ModTime())
}
