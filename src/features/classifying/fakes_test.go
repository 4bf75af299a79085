package classifying

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/contre95/dropsort/src/triage"
)

// fakeSniffer returns types by file name; unknown names fail like an unreadable file.
type fakeSniffer struct {
	mu    sync.Mutex
	types map[string]string
	calls int
}

func (s *fakeSniffer) Sniff(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if t, ok := s.types[filepath.Base(path)]; ok {
		return t, nil
	}
	return "", errors.New("permission denied")
}

// fakeExtractor returns text by image content.
type fakeExtractor struct {
	texts map[string]string
	calls int
}

func (e *fakeExtractor) Extract(ctx context.Context, image []byte) string {
	e.calls++
	return e.texts[string(image)]
}

type panickyExtractor struct{}

func (panickyExtractor) Extract(context.Context, []byte) string { panic("decoder exploded") }

func defaultRules() *triage.Rules {
	return &triage.Rules{
		TypeRules: []triage.TypeRule{
			{Prefix: "image", Category: "Media/Images"},
			{Prefix: "video", Category: "Media/Videos"},
			{Prefix: "audio", Category: "Media/Audio"},
			{Prefix: "application/pdf", Category: "Documents/PDFs"},
			{Prefix: "application/zip", Category: "Archives"},
			{Prefix: "text/plain", Category: "Documents/Text"},
		},
		Keywords:      []string{"Physics", "Finance", "Resume", "Invoice", "Project_Alpha"},
		MetadataNames: []string{".DS_Store", "desktop.ini", "Thumbs.db"},
		TempSuffixes:  []string{".tmp"},
	}
}
