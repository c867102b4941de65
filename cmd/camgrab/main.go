package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/ryancwicks/CameraInterface/camera"
	"github.com/ryancwicks/CameraInterface/drivers/simulated"
	"github.com/ryancwicks/CameraInterface/internal/config"
	"github.com/ryancwicks/CameraInterface/internal/debug"
	"github.com/ryancwicks/CameraInterface/internal/store"
	"github.com/ryancwicks/CameraInterface/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web preview on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	single := flag.Bool("single", false, "grab one frame synchronously and exit")
	frames := flag.Uint64("frames", 0, "override capture.frame_count (0 = use config)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *frames > 0 {
		cfg.Capture.FrameCount = *frames
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Camera type", cfg.Camera.Type)
	debug.Value("Frame size", debug.Fmt("%dx%d", cfg.Camera.Width, cfg.Camera.Height))
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Build the driver
	debug.Step(1, "Creating camera driver")
	drv, closeDriver, err := newDriverFromConfig(cfg)
	if err != nil {
		log.Fatalf("create driver failed: %v", err)
	}
	defer func() {
		if err := closeDriver(); err != nil {
			log.Printf("closing driver failed: %v", err)
		}
	}()

	// Frame sink
	var writer *store.FrameWriter
	if cfg.Capture.SaveFrames {
		debug.Step(2, "Creating frame writer")
		writer, err = store.NewFrameWriter(cfg.Capture.OutputDir)
		if err != nil {
			log.Fatalf("create frame writer failed: %v", err)
		}
		debug.Value("Output dir", cfg.Capture.OutputDir)
	}

	// Web preview plumbing (broadcasters exist even before the server runs,
	// so the delivery callback has a single shape).
	headless := webPort.port() == 0
	var statusB *web.StatusBroadcaster
	var framesB *web.FrameBroadcaster
	if !headless {
		statusB = web.NewStatusBroadcaster()
		framesB = web.NewFrameBroadcaster()
	}

	// Capture bookkeeping: the callbacks run on the capture goroutine, the
	// session end is signalled back to the foreground through sessionEnd.
	var delivered atomic.Uint64
	sessionEnd := make(chan struct{})
	var endOnce sync.Once
	endSession := func() { endOnce.Do(func() { close(sessionEnd) }) }

	onImage := func(img *camera.Image[uint8]) {
		n := delivered.Add(1)
		w, h := img.Dimension()
		debug.Frame(n, w, h)

		if writer != nil {
			if _, err := writer.WriteFrame(img); err != nil {
				debug.Error(err)
			}
		}
		if framesB != nil && framesB.ClientCount() > 0 {
			if data, err := encodeJPEG(img); err == nil {
				framesB.Broadcast(data)
			} else {
				debug.Error(err)
			}
		}
		if headless && cfg.Capture.FrameCount > 0 && n >= cfg.Capture.FrameCount {
			endSession()
		}
	}
	onError := func(err error) {
		debug.Error(err)
		if statusB != nil {
			statusB.Broadcast("error", "Capture failed: "+err.Error())
		}
		endSession()
	}

	// Initialize the camera and apply configured settings
	debug.Step(3, "Initializing camera")
	cam := camera.New[uint8](drv)
	if err := cam.Initialize(onImage, onError); err != nil {
		log.Fatalf("initialize camera failed: %v", err)
	}
	if err := applySettings(cam, cfg); err != nil {
		log.Fatalf("apply camera settings failed: %v", err)
	}

	// Single-shot mode: one blocking grab, no capture loop.
	if *single {
		img, err := cam.GrabImage()
		if err != nil {
			log.Fatalf("grab image failed: %v", err)
		}
		w, h := img.Dimension()
		debug.Info("Grabbed one %dx%d frame", w, h)
		if writer != nil {
			path, err := writer.WriteFrame(img)
			if err != nil {
				log.Fatalf("write frame failed: %v", err)
			}
			fmt.Println(path)
		}
		return
	}

	// Web mode: capture is driven from the browser; run until interrupted.
	if port := webPort.port(); port > 0 {
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(statusB)))
		defaults := web.Settings{
			GainPercent: cfg.Camera.GainPercent,
			ExposureS:   cfg.Camera.ExposureS,
			RateHz:      cfg.Camera.RateHz,
		}
		srv := web.NewServer(fmt.Sprintf(":%d", port), statusB, framesB, cam, defaults)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := cam.StopCapture(); err != nil {
			log.Printf("stop capture failed: %v", err)
		}
		debug.Session("finished", delivered.Load())
		return
	}

	// Headless mode: run the capture loop until the frame budget is
	// reached, the driver fails, or we are interrupted.
	debug.Section("Starting Capture")
	if err := cam.StartCapture(); err != nil {
		log.Fatalf("start capture failed: %v", err)
	}
	debug.Session("started", 0)

	select {
	case <-ctx.Done():
		debug.Info("Interrupted, stopping capture")
	case <-sessionEnd:
	}

	if err := cam.StopCapture(); err != nil {
		log.Printf("stop capture failed: %v", err)
	}
	debug.Session("finished", delivered.Load())
}

// applySettings pushes the configured gain, exposure and rate to the camera.
func applySettings(cam *camera.Camera[uint8], cfg *config.Config) error {
	if err := cam.SetGain(cfg.Camera.GainPercent); err != nil {
		return fmt.Errorf("set gain: %w", err)
	}
	if err := cam.SetExposure(cfg.Camera.ExposureS); err != nil {
		return fmt.Errorf("set exposure: %w", err)
	}
	if err := cam.SetRate(cfg.Camera.RateHz); err != nil {
		return fmt.Errorf("set rate: %w", err)
	}
	return nil
}

// encodeJPEG renders an 8-bit grayscale frame for the MJPEG preview stream.
func encodeJPEG(img *camera.Image[uint8]) ([]byte, error) {
	w, h := img.Dimension()
	gray := &image.Gray{
		Pix:    img.Data(),
		Stride: int(w),
		Rect:   image.Rect(0, 0, int(w), int(h)),
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode preview frame: %w", err)
	}
	return buf.Bytes(), nil
}

// newDriverFromConfig selects a driver implementation based on configuration.
// The returned closer releases driver-owned resources (device handles).
func newDriverFromConfig(cfg *config.Config) (camera.Driver[uint8], func() error, error) {
	switch cfg.Camera.Type {
	case "simulated":
		drv := simulated.New(simulated.Config{
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			FailAfter: cfg.Camera.FailAfter,
		})
		return drv, func() error { return nil }, nil
	case "v4l2":
		return newV4L2Driver(cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
