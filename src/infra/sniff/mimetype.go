package sniff

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MimeSniffer detects a file's MIME type from its magic bytes.
type MimeSniffer struct{}

// NewMimeSniffer creates a new magic-bytes sniffer.
func NewMimeSniffer() *MimeSniffer {
	return &MimeSniffer{}
}

// Sniff returns the detected MIME type of the file at path, e.g. "image/png".
func (s *MimeSniffer) Sniff(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect type of %s: %w", path, err)
	}
	return mtype.String(), nil
}
