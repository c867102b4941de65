package camera

import (
	"fmt"
	"io"
	"time"
	"unsafe"
)

// Pixel is the set of element types an Image can store. All members have a
// fixed in-memory size, which is what SizeOfData reports.
type Pixel interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~float32 | ~float64
}

// Image is a fixed-size pixel buffer with a capture timestamp. Dimensions are
// set at construction and never change; the only mutation is a whole-frame
// replace through one of the SetData variants, which validates the source size
// before touching the stored pixels.
type Image[T Pixel] struct {
	width    uint32
	height   uint32
	pixels   []T
	captured time.Time
}

// NewImage creates an image buffer holding width*height elements of type T.
// The pixel contents are zeroed but otherwise unspecified until SetData.
func NewImage[T Pixel](width, height uint32) *Image[T] {
	return &Image[T]{
		width:  width,
		height: height,
		pixels: make([]T, int(width)*int(height)),
	}
}

// SetData replaces the whole frame from a typed pixel slice. The slice must
// hold exactly width*height elements; otherwise a *SizeMismatchError is
// returned and the stored pixels are left as they were.
func (img *Image[T]) SetData(pixels []T) error {
	if len(pixels) != len(img.pixels) {
		return &SizeMismatchError{Got: len(pixels), Want: len(img.pixels)}
	}
	copy(img.pixels, pixels)
	img.captured = time.Now()
	return nil
}

// SetDataBytes replaces the whole frame from a raw byte buffer, as read from a
// device. len(raw) must equal width*height*SizeOfData(). Multi-byte pixel
// types are reinterpreted in native byte order, matching what a memory-mapped
// capture buffer holds.
func (img *Image[T]) SetDataBytes(raw []byte) error {
	want := len(img.pixels) * img.SizeOfData()
	if len(raw) != want {
		return &SizeMismatchError{Got: len(raw), Want: want}
	}
	if want == 0 {
		img.captured = time.Now()
		return nil
	}
	src := unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), len(img.pixels))
	copy(img.pixels, src)
	img.captured = time.Now()
	return nil
}

// SetDataFrom reads exactly one frame's worth of bytes from r and replaces the
// whole frame with it. On a short read the stored pixels are left untouched.
func (img *Image[T]) SetDataFrom(r io.Reader) error {
	buf := make([]byte, len(img.pixels)*img.SizeOfData())
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("read frame data: %w", err)
	}
	return img.SetDataBytes(buf)
}

// Data returns the stored pixels. The slice is always width*height long.
// It is a view into the image's own storage: callers must treat it as
// read-only and must not hold it across a later SetData.
func (img *Image[T]) Data() []T {
	return img.pixels
}

// Dimension returns the fixed (width, height) of the image.
func (img *Image[T]) Dimension() (width, height uint32) {
	return img.width, img.height
}

// Time returns the capture timestamp of the most recent successful SetData.
// Before the first successful SetData it returns the zero time
// (t.IsZero() == true).
func (img *Image[T]) Time() time.Time {
	return img.captured
}

// SizeOfData returns the size of one pixel element in bytes.
func (img *Image[T]) SizeOfData() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
