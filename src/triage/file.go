package triage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CandidateFile is a file observed in the watched root or passed to a sweep.
type CandidateFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// NewCandidateFile stats path and builds a CandidateFile from it.
// Directories and other non-regular files are rejected with ErrNotRegular.
func NewCandidateFile(path string) (*CandidateFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotRegular)
	}
	return &CandidateFile{
		Path:    abs,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Stem returns the file name without its last extension.
func (f *CandidateFile) Stem() string {
	return f.Name[:len(f.Name)-len(filepath.Ext(f.Name))]
}
