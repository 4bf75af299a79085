package ocr

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestExtract_UpscalesAndPipesPNG(t *testing.T) {
	var gotArgs []string
	var gotWidth int
	run := func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		img, err := png.Decode(bytes.NewReader(stdin))
		require.NoError(t, err)
		gotWidth = img.Bounds().Dx()
		return []byte("  This is an official Invoice for $500\n"), nil
	}
	ex := newWithRunner(Options{Binary: "tesseract", Languages: "eng", MinWidth: 800}, run)

	text := ex.Extract(context.Background(), encodeJPEG(t, 400, 200))

	assert.Equal(t, "This is an official Invoice for $500", text)
	assert.Equal(t, []string{"tesseract", "stdin", "stdout", "-l", "eng"}, gotArgs)
	assert.Equal(t, 800, gotWidth)
}

func TestExtract_KeepsWideImages(t *testing.T) {
	var gotWidth int
	run := func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		img, err := png.Decode(bytes.NewReader(stdin))
		require.NoError(t, err)
		gotWidth = img.Bounds().Dx()
		return nil, nil
	}
	ex := newWithRunner(Options{Binary: "tesseract", Languages: "eng", MinWidth: 100}, run)
	ex.Extract(context.Background(), encodeJPEG(t, 300, 50))
	assert.Equal(t, 300, gotWidth)
}

func TestExtract_FailuresYieldEmptyText(t *testing.T) {
	called := false
	run := func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		called = true
		return nil, errors.New("exit status 1")
	}
	ex := newWithRunner(Options{Binary: "tesseract", Languages: "eng"}, run)

	assert.Empty(t, ex.Extract(context.Background(), []byte("not an image")))
	assert.False(t, called, "undecodable input must not reach the OCR binary")

	assert.Empty(t, ex.Extract(context.Background(), encodeJPEG(t, 10, 10)))
	assert.True(t, called)
}

// pngHeader returns a PNG holding only a w x h IHDR chunk.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestExtract_OversizedImagesAreNotDecoded(t *testing.T) {
	called := false
	run := func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		called = true
		return []byte("Invoice"), nil
	}

	ex := newWithRunner(Options{Binary: "tesseract", Languages: "eng"}, run)
	_, err := ex.prepare(pngHeader(100_000, 100_000))
	assert.ErrorContains(t, err, "image too large")
	assert.Empty(t, ex.Extract(context.Background(), pngHeader(100_000, 100_000)))

	small := newWithRunner(Options{Binary: "tesseract", Languages: "eng", MaxPixels: 100}, run)
	assert.Empty(t, small.Extract(context.Background(), encodeJPEG(t, 20, 20)))
	assert.False(t, called)
}

func TestExtract_NoUpscalePastPixelLimit(t *testing.T) {
	var gotWidth int
	run := func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		img, err := png.Decode(bytes.NewReader(stdin))
		require.NoError(t, err)
		gotWidth = img.Bounds().Dx()
		return nil, nil
	}
	// 10x400 scaled to width 1000 would be 1000x40000.
	ex := newWithRunner(Options{Binary: "tesseract", Languages: "eng", MinWidth: 1000, MaxPixels: 1_000_000}, run)
	ex.Extract(context.Background(), encodeJPEG(t, 10, 400))
	assert.Equal(t, 10, gotWidth)
}
