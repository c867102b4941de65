// Package camera provides a vendor-agnostic camera abstraction: a Driver
// interface that concrete hardware bindings implement, and the Camera engine
// that gives every driver the same lifecycle gating, single-shot grab, and
// asynchronous continuous-capture loop with callback delivery.
package camera

import (
	"sync/atomic"
)

// Driver is the capability set a concrete hardware binding implements
// (USB, GigE, vendor SDK, simulated...). A driver is bound to exactly one
// Camera at construction; the Camera guarantees that while the capture loop
// runs, the driver is only called from the loop goroutine, and otherwise only
// from the caller's goroutine.
type Driver[T Pixel] interface {
	// Initialize opens and prepares the device.
	Initialize() error
	// SetGain sets the sensor gain in percent (0-100).
	SetGain(percent int) error
	// SetExposure sets the exposure time in seconds.
	SetExposure(seconds float64) error
	// SetRate sets the frame rate in Hz.
	SetRate(hz float64) error
	// GrabImage blocks until one frame is captured and returns it sized to
	// the camera's current configuration.
	GrabImage() (*Image[T], error)
}

// Camera wraps a Driver with lifecycle state handling and the background
// capture loop. It starts uninitialized, becomes idle after a successful
// Initialize, and oscillates between idle and running thereafter.
//
// Concurrency contract: the exported methods are meant to be called from a
// single foreground goroutine. The engine coordinates that goroutine with its
// own capture goroutine through the atomic running flag; it does not serialize
// concurrent foreground callers against each other. Do not discard a Camera
// while it is running; call StopCapture first.
type Camera[T Pixel] struct {
	driver  Driver[T]
	onImage func(*Image[T])
	onError func(error)

	initialized bool
	running     atomic.Bool

	// done is closed by the capture goroutine when it exits. Nil when no
	// capture goroutine has been launched since the last StopCapture.
	// Only the foreground goroutine touches the field itself.
	done chan struct{}
}

// New creates a Camera driven by d. The driver is fixed for the lifetime of
// the instance.
func New[T Pixel](d Driver[T]) *Camera[T] {
	return &Camera[T]{driver: d}
}

// Initialize prepares the driver and registers the two delivery callbacks:
// onImage receives every frame produced by the capture loop, onError receives
// the failure that terminated it. Calling Initialize on an already initialized
// camera is a no-op success and does not replace the callbacks. If the driver
// fails, the camera stays uninitialized and the driver's error is returned.
func (c *Camera[T]) Initialize(onImage func(*Image[T]), onError func(error)) error {
	if c.initialized {
		return nil
	}
	if err := c.driver.Initialize(); err != nil {
		return err
	}
	c.onImage = onImage
	c.onError = onError
	c.initialized = true
	return nil
}

// SetGain sets the sensor gain in percent. Legal only while idle.
func (c *Camera[T]) SetGain(percent int) error {
	if err := c.gate(); err != nil {
		return err
	}
	return c.driver.SetGain(percent)
}

// SetExposure sets the exposure time in seconds. Legal only while idle.
func (c *Camera[T]) SetExposure(seconds float64) error {
	if err := c.gate(); err != nil {
		return err
	}
	return c.driver.SetExposure(seconds)
}

// SetRate sets the frame rate in Hz. Legal only while idle.
func (c *Camera[T]) SetRate(hz float64) error {
	if err := c.gate(); err != nil {
		return err
	}
	return c.driver.SetRate(hz)
}

// GrabImage captures a single frame synchronously in the calling goroutine.
// Legal only while idle.
func (c *Camera[T]) GrabImage() (*Image[T], error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	return c.driver.GrabImage()
}

// StartCapture launches the background capture loop. Frames and the
// terminating error are delivered through the callbacks registered with
// Initialize. If the camera is already running this is a no-op success.
func (c *Camera[T]) StartCapture() error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if c.running.Load() {
		return nil
	}
	if c.done != nil {
		// A previous loop stopped itself on a grab error; reap it
		// before launching a new one. The channel is already closed,
		// so this does not block.
		<-c.done
	}
	c.done = make(chan struct{})
	c.running.Store(true)
	go c.captureLoop(c.done)
	return nil
}

// StopCapture clears the running flag and blocks until the capture goroutine
// has fully exited; no callback fires after StopCapture returns. There is
// deliberately no timeout: if the driver's grab blocks forever, so does
// StopCapture. If no capture goroutine is live this is a no-op success.
func (c *Camera[T]) StopCapture() error {
	if c.done == nil {
		return nil
	}
	c.running.Store(false)
	<-c.done
	c.done = nil
	return nil
}

// gate is the shared precondition check for configuration and single-shot
// operations: the camera must be initialized and must not be running.
func (c *Camera[T]) gate() error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if c.running.Load() {
		return ErrRunning
	}
	return nil
}

// captureLoop grabs frames while the running flag is set. On the first grab
// failure it reports the error once, clears the flag itself and exits; the
// loop never retries, a fresh StartCapture is required. The flag is checked
// once per iteration, so a grab already in flight when StopCapture clears the
// flag still completes and its frame is still delivered.
func (c *Camera[T]) captureLoop(done chan struct{}) {
	defer close(done)
	for c.running.Load() {
		img, err := c.driver.GrabImage()
		if err != nil {
			if c.onError != nil {
				c.onError(err)
			}
			c.running.Store(false)
			return
		}
		if c.onImage != nil {
			c.onImage(img)
		}
	}
}
