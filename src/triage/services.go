package triage

import (
	"context"
)

// TypeSniffer classifies a file's content into a type identifier such as "image/png".
type TypeSniffer interface {
	Sniff(ctx context.Context, path string) (string, error)
}

// TextExtractor returns the text found in an image, or "" when there is none
// or extraction failed. It never returns an error to the caller.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) string
}

// Mover relocates a file into a category folder under the root without overwriting anything.
type Mover interface {
	Move(ctx context.Context, file *CandidateFile, category string) (string, error)
}

// Sink receives outcomes from the engine's callers. Implementations must not block.
type Sink interface {
	Report(result MoveResult)
	Log(line string)
}
