// Package simulated provides a camera driver that produces synthetic frames.
// It stands in for real hardware during development and testing, the same way
// a mock GPIO driver stands in for a real board: same interface, no device.
package simulated

import (
	"fmt"
	"time"

	"github.com/ryancwicks/CameraInterface/camera"
	"github.com/ryancwicks/CameraInterface/internal/debug"
)

// Config describes the simulated sensor.
type Config struct {
	Width  uint32
	Height uint32

	// FailAfter makes the FailAfter-th grab fail (1-based), to exercise
	// the capture loop's error path end to end. 0 = never fail.
	FailAfter uint64
}

// Driver implements camera.Driver[uint8] with a moving diagonal test pattern.
// Gain and exposure scale the pattern brightness; rate paces grabs.
//
// Fields are unsynchronized on purpose: the engine's gating guarantees the
// configuration setters and GrabImage are never active concurrently.
type Driver struct {
	cfg      Config
	gain     int
	exposure float64
	interval time.Duration
	grabs    uint64
}

// New creates a simulated driver. Defaults: 50% gain, 10ms exposure, 30Hz.
func New(cfg Config) *Driver {
	return &Driver{
		cfg:      cfg,
		gain:     50,
		exposure: 0.010,
		interval: time.Second / 30,
	}
}

// Initialize validates the configured frame geometry.
func (d *Driver) Initialize() error {
	if d.cfg.Width == 0 || d.cfg.Height == 0 {
		return fmt.Errorf("simulated camera: invalid frame size %dx%d", d.cfg.Width, d.cfg.Height)
	}
	debug.Driver("initialize", fmt.Sprintf("simulated %dx%d", d.cfg.Width, d.cfg.Height))
	return nil
}

// SetGain stores the gain in percent (0-100).
func (d *Driver) SetGain(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("simulated camera: gain must be 0-100 percent, got %d", percent)
	}
	debug.Driver("set gain", fmt.Sprintf("%d%%", percent))
	d.gain = percent
	return nil
}

// SetExposure stores the exposure time in seconds.
func (d *Driver) SetExposure(seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("simulated camera: exposure must be positive, got %g", seconds)
	}
	debug.Driver("set exposure", fmt.Sprintf("%gs", seconds))
	d.exposure = seconds
	return nil
}

// SetRate sets the pacing of GrabImage in Hz.
func (d *Driver) SetRate(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("simulated camera: rate must be positive, got %g", hz)
	}
	debug.Driver("set rate", fmt.Sprintf("%gHz", hz))
	d.interval = time.Duration(float64(time.Second) / hz)
	return nil
}

// GrabImage waits one frame interval, then returns the next test-pattern
// frame. If Config.FailAfter is set, that grab reports a hardware-style fault
// instead.
func (d *Driver) GrabImage() (*camera.Image[uint8], error) {
	time.Sleep(d.interval)

	d.grabs++
	if d.cfg.FailAfter > 0 && d.grabs >= d.cfg.FailAfter {
		return nil, fmt.Errorf("simulated camera: device disconnected on frame %d", d.grabs)
	}

	img := camera.NewImage[uint8](d.cfg.Width, d.cfg.Height)
	if err := img.SetData(d.pattern()); err != nil {
		return nil, err
	}
	return img, nil
}

// pattern renders one frame: a diagonal gradient that drifts with the grab
// counter, scaled by gain and exposure so setting changes are visible.
func (d *Driver) pattern() []uint8 {
	w := int(d.cfg.Width)
	h := int(d.cfg.Height)
	shift := int(d.grabs % 256)

	// Brightness scale: gain is linear 0-100%, exposure saturates around
	// 100ms, roughly what a real mono sensor does in a lit room.
	scale := float64(d.gain) / 100.0 * min(d.exposure/0.100, 1.0)

	pixels := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64((x + y + shift) % 256)
			pixels[y*w+x] = uint8(v * scale)
		}
	}
	return pixels
}
