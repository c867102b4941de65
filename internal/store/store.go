// Package store persists delivered frames to disk, one PNG per frame.
package store

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/ryancwicks/CameraInterface/camera"
	"github.com/ryancwicks/CameraInterface/internal/debug"
)

// FrameWriter writes 8-bit grayscale frames into a directory, naming each
// file after its capture timestamp.
type FrameWriter struct {
	dir string
	seq uint64
}

// NewFrameWriter creates the output directory if needed.
func NewFrameWriter(dir string) (*FrameWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FrameWriter{dir: dir}, nil
}

// WriteFrame encodes the frame as PNG and returns the file path. The file is
// named from the frame's capture timestamp plus a sequence number, so frames
// captured within the same millisecond do not collide.
func (w *FrameWriter) WriteFrame(img *camera.Image[uint8]) (string, error) {
	width, height := img.Dimension()

	ts := img.Time()
	if ts.IsZero() {
		ts = time.Now()
	}
	w.seq++
	name := fmt.Sprintf("frame_%s_%06d.png", ts.Format("20060102-150405.000"), w.seq)
	path := filepath.Join(w.dir, name)

	gray := &image.Gray{
		Pix:    img.Data(),
		Stride: int(width),
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create frame file: %w", err)
	}
	if err := png.Encode(f, gray); err != nil {
		f.Close()
		return "", fmt.Errorf("encode frame: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close frame file: %w", err)
	}

	debug.Verbose("Wrote %s", path)
	return path, nil
}

// Count returns the number of frames written so far.
func (w *FrameWriter) Count() uint64 {
	return w.seq
}
