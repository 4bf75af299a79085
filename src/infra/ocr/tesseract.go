package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the images decoded for OCR when Options.MaxPixels is unset.
const DefaultMaxPixels = 50_000_000

// Runner executes the OCR binary with stdin and returns its stdout.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// Options configures the tesseract extractor.
type Options struct {
	Binary    string
	Languages string
	MinWidth  int
	Timeout   time.Duration
	// MaxPixels caps width*height, checked from the header before decoding.
	MaxPixels int64
}

// TesseractExtractor implements triage.TextExtractor by piping a normalized PNG
// through the tesseract command line tool.
type TesseractExtractor struct {
	opts Options
	run  Runner
}

// NewTesseractExtractor creates an extractor. It fails when the binary is not on PATH.
func NewTesseractExtractor(opts Options) (*TesseractExtractor, error) {
	if opts.Binary == "" {
		opts.Binary = "tesseract"
	}
	if opts.Languages == "" {
		opts.Languages = "eng"
	}
	path, err := exec.LookPath(opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("ocr binary %q not available: %w", opts.Binary, err)
	}
	opts.Binary = path
	return newWithRunner(opts, runCommand), nil
}

func newWithRunner(opts Options, run Runner) *TesseractExtractor {
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &TesseractExtractor{opts: opts, run: run}
}

// Extract returns the text found in the image, or "" on any decoding or OCR failure.
func (t *TesseractExtractor) Extract(ctx context.Context, data []byte) string {
	input, err := t.prepare(data)
	if err != nil {
		slog.Debug("OCR skipped", "error", err)
		return ""
	}

	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	out, err := t.run(ctx, input, t.opts.Binary, "stdin", "stdout", "-l", t.opts.Languages)
	if err != nil {
		slog.Debug("OCR failed", "error", err)
		return ""
	}
	return strings.TrimSpace(string(out))
}

// prepare decodes any supported image format and re-encodes it as PNG,
// upscaling narrow images, which tesseract reads poorly.
func (t *TesseractExtractor) prepare(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > t.opts.MaxPixels {
		return nil, fmt.Errorf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, t.opts.MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if t.shouldUpscale(img.Bounds().Dx(), img.Bounds().Dy()) {
		slog.Debug("Upscaling image for OCR", "format", format, "width", img.Bounds().Dx(), "target", t.opts.MinWidth)
		img = resize.Resize(uint(t.opts.MinWidth), 0, img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// shouldUpscale reports whether a w-wide image is narrower than MinWidth and
// still within MaxPixels once scaled up.
func (t *TesseractExtractor) shouldUpscale(w, h int) bool {
	if t.opts.MinWidth <= 0 || w <= 0 || w >= t.opts.MinWidth {
		return false
	}
	scaledHeight := int64(h) * int64(t.opts.MinWidth) / int64(w)
	return int64(t.opts.MinWidth)*scaledHeight <= t.opts.MaxPixels
}

func runCommand(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
