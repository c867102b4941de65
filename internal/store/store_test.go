package store

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ryancwicks/CameraInterface/camera"
)

func testFrame(t *testing.T, w, h uint32) *camera.Image[uint8] {
	t.Helper()
	img := camera.NewImage[uint8](w, h)
	pixels := make([]uint8, int(w)*int(h))
	for i := range pixels {
		pixels[i] = uint8(i % 256)
	}
	if err := img.SetData(pixels); err != nil {
		t.Fatal(err)
	}
	return img
}

func TestNewFrameWriter_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if _, err := NewFrameWriter(dir); err != nil {
		t.Fatalf("NewFrameWriter: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
}

func TestWriteFrame_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFrameWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	img := testFrame(t, 8, 4)
	path, err := fw.WriteFrame(img)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written frame: %v", err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode written frame: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 8 || bounds.Dy() != 4 {
		t.Errorf("decoded size = %dx%d, want 8x4", bounds.Dx(), bounds.Dy())
	}
}

func TestWriteFrame_SequenceAvoidsCollisions(t *testing.T) {
	fw, err := NewFrameWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	img := testFrame(t, 2, 2)
	first, err := fw.WriteFrame(img)
	if err != nil {
		t.Fatal(err)
	}
	second, err := fw.WriteFrame(img) // same capture timestamp
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("two frames with the same timestamp got the same path %q", first)
	}
	if fw.Count() != 2 {
		t.Errorf("Count() = %d, want 2", fw.Count())
	}
}
