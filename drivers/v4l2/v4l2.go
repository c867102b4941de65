//go:build linux

// Package v4l2 binds the camera capability set to Video4Linux2 capture
// devices. It speaks to the kernel through github.com/blackjack/webcam and
// delivers 8-bit grayscale frames: native GREY when the device offers it,
// otherwise the luma plane extracted from YUYV.
package v4l2

import (
	"fmt"

	"github.com/blackjack/webcam"

	"github.com/ryancwicks/CameraInterface/camera"
	"github.com/ryancwicks/CameraInterface/internal/debug"
)

// V4L2 fourccs and control IDs (videodev2.h).
const (
	fmtGrey webcam.PixelFormat = 0x59455247 // 'GREY', 8-bit grayscale
	fmtYUYV webcam.PixelFormat = 0x56595559 // 'YUYV', packed 4:2:2

	ctrlGain             webcam.ControlID = 0x00980913 // V4L2_CID_GAIN
	ctrlExposureAuto     webcam.ControlID = 0x009a0901 // V4L2_CID_EXPOSURE_AUTO
	ctrlExposureAbsolute webcam.ControlID = 0x009a0902 // V4L2_CID_EXPOSURE_ABSOLUTE, 100µs units

	exposureManual = 1 // V4L2_EXPOSURE_MANUAL

	grabTimeoutSeconds = 5
)

// Driver implements camera.Driver[uint8] for a V4L2 capture device. It owns
// the device handle; call Close when done with it. Like every driver, it
// relies on the engine's gating for thread safety.
type Driver struct {
	device string
	width  uint32
	height uint32

	cam       *webcam.Webcam
	format    webcam.PixelFormat
	streaming bool
}

var _ camera.Driver[uint8] = (*Driver)(nil)

// NewDriver creates a driver for the given device path (e.g. /dev/video0).
// width and height are requests; the device may negotiate them down, and the
// dimensions actually in effect are what grabbed frames report.
func NewDriver(device string, width, height uint32) *Driver {
	return &Driver{
		device: device,
		width:  width,
		height: height,
	}
}

// Initialize opens the device and negotiates a frame format.
func (d *Driver) Initialize() error {
	cam, err := webcam.Open(d.device)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.device, err)
	}

	format, err := pickFormat(cam.GetSupportedFormats())
	if err != nil {
		cam.Close()
		return fmt.Errorf("%s: %w", d.device, err)
	}

	f, w, h, err := cam.SetImageFormat(format, d.width, d.height)
	if err != nil {
		cam.Close()
		return fmt.Errorf("set image format on %s: %w", d.device, err)
	}

	d.cam = cam
	d.format = f
	d.width = w
	d.height = h
	debug.Driver("initialize", debug.Fmt("%s %dx%d fourcc=%#x", d.device, w, h, uint32(f)))
	return nil
}

// pickFormat prefers native grayscale, falls back to YUYV.
func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, error) {
	if _, ok := supported[fmtGrey]; ok {
		return fmtGrey, nil
	}
	if _, ok := supported[fmtYUYV]; ok {
		return fmtYUYV, nil
	}
	return 0, fmt.Errorf("device offers neither GREY nor YUYV (%d formats)", len(supported))
}

// SetGain maps a 0-100 percent value onto the device's gain control range.
func (d *Driver) SetGain(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("gain must be 0-100 percent, got %d", percent)
	}
	ctrl, ok := d.cam.GetControls()[ctrlGain]
	if !ok {
		return fmt.Errorf("%s has no gain control", d.device)
	}
	value := ctrl.Min + int32(int64(ctrl.Max-ctrl.Min)*int64(percent)/100)
	if err := d.cam.SetControl(ctrlGain, value); err != nil {
		return fmt.Errorf("set gain on %s: %w", d.device, err)
	}
	debug.Setting("gain", debug.Fmt("%d%% (raw %d)", percent, value))
	return nil
}

// SetExposure sets a manual exposure time in seconds. The device control
// works in 100µs units.
func (d *Driver) SetExposure(seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("exposure must be positive, got %g", seconds)
	}

	// Switch off auto-exposure first; not all devices expose the control,
	// and on those that don't, the absolute control decides by itself.
	if err := d.cam.SetControl(ctrlExposureAuto, exposureManual); err != nil {
		debug.Trace("auto-exposure control not accepted on %s: %v", d.device, err)
	}

	value := int32(seconds * 10000)
	if value < 1 {
		value = 1
	}
	if err := d.cam.SetControl(ctrlExposureAbsolute, value); err != nil {
		return fmt.Errorf("set exposure on %s: %w", d.device, err)
	}
	debug.Setting("exposure", debug.Fmt("%gs (raw %d)", seconds, value))
	return nil
}

// SetRate asks the device for the given frame rate.
func (d *Driver) SetRate(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("rate must be positive, got %g", hz)
	}
	if err := d.cam.SetFramerate(float32(hz)); err != nil {
		return fmt.Errorf("set frame rate on %s: %w", d.device, err)
	}
	debug.Setting("rate", debug.Fmt("%gHz", hz))
	return nil
}

// GrabImage blocks until the device delivers a frame, then returns it as an
// 8-bit grayscale image. Streaming is started lazily on the first grab.
func (d *Driver) GrabImage() (*camera.Image[uint8], error) {
	if !d.streaming {
		if err := d.cam.StartStreaming(); err != nil {
			return nil, fmt.Errorf("start streaming on %s: %w", d.device, err)
		}
		d.streaming = true
	}

	if err := d.cam.WaitForFrame(grabTimeoutSeconds); err != nil {
		return nil, fmt.Errorf("wait for frame on %s: %w", d.device, err)
	}
	raw, err := d.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame on %s: %w", d.device, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty frame from %s", d.device)
	}

	gray, err := d.toGray(raw)
	if err != nil {
		return nil, err
	}

	img := camera.NewImage[uint8](d.width, d.height)
	if err := img.SetDataBytes(gray); err != nil {
		return nil, fmt.Errorf("frame from %s: %w", d.device, err)
	}
	return img, nil
}

// toGray converts a raw device buffer to one byte per pixel.
func (d *Driver) toGray(raw []byte) ([]byte, error) {
	pixels := int(d.width) * int(d.height)
	switch d.format {
	case fmtGrey:
		if len(raw) != pixels {
			return nil, fmt.Errorf("GREY frame is %d bytes, want %d", len(raw), pixels)
		}
		return raw, nil
	case fmtYUYV:
		// Packed Y0 U Y1 V: the luma bytes sit at even offsets.
		if len(raw) != pixels*2 {
			return nil, fmt.Errorf("YUYV frame is %d bytes, want %d", len(raw), pixels*2)
		}
		gray := make([]byte, pixels)
		for i := 0; i < pixels; i++ {
			gray[i] = raw[i*2]
		}
		return gray, nil
	default:
		return nil, fmt.Errorf("unexpected negotiated format %#x", uint32(d.format))
	}
}

// Close stops streaming and releases the device. Safe to call if Initialize
// never succeeded.
func (d *Driver) Close() error {
	if d.cam == nil {
		return nil
	}
	if d.streaming {
		if err := d.cam.StopStreaming(); err != nil {
			debug.Trace("stop streaming on %s: %v", d.device, err)
		}
		d.streaming = false
	}
	return d.cam.Close()
}
