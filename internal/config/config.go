package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CameraConfig describes the camera to drive.
// Type selects a concrete driver (e.g., "simulated", "v4l2").
type CameraConfig struct {
	Type        string  `yaml:"type"`         // e.g., "simulated" or "v4l2"
	Device      string  `yaml:"device"`       // device path for v4l2 (e.g., /dev/video0)
	Width       uint32  `yaml:"width"`        // frame width in pixels
	Height      uint32  `yaml:"height"`       // frame height in pixels
	GainPercent int     `yaml:"gain_percent"` // sensor gain 0-100
	ExposureS   float64 `yaml:"exposure_s"`   // exposure time in seconds
	RateHz      float64 `yaml:"rate_hz"`      // frame rate in Hz
	FailAfter   uint64  `yaml:"fail_after"`   // simulated only: fail the Nth grab (0 = never)
}

// CaptureConfig controls the continuous capture session.
type CaptureConfig struct {
	FrameCount uint64 `yaml:"frame_count"` // stop after this many frames (0 = until interrupted)
	OutputDir  string `yaml:"output_dir"`  // where saved frames go
	SaveFrames bool   `yaml:"save_frames"` // write delivered frames as PNG
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Capture  CaptureConfig  `yaml:"capture"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Camera.Type == "" {
		return nil, fmt.Errorf("camera.type is required")
	}
	if cfg.Camera.Type == "v4l2" && cfg.Camera.Device == "" {
		return nil, fmt.Errorf("camera.device is required for type v4l2")
	}
	if cfg.Camera.GainPercent < 0 || cfg.Camera.GainPercent > 100 {
		return nil, fmt.Errorf("gain_percent must be between 0 and 100, got %d", cfg.Camera.GainPercent)
	}
	if cfg.Camera.ExposureS < 0 {
		return nil, fmt.Errorf("exposure_s must be >= 0, got %g", cfg.Camera.ExposureS)
	}
	if cfg.Camera.RateHz < 0 {
		return nil, fmt.Errorf("rate_hz must be >= 0, got %g", cfg.Camera.RateHz)
	}

	// Reasonable defaults
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.Height == 0 {
		cfg.Camera.Height = 480
	}
	if cfg.Camera.GainPercent == 0 {
		cfg.Camera.GainPercent = 50
	}
	if cfg.Camera.ExposureS == 0 {
		cfg.Camera.ExposureS = 0.010 // 10ms
	}
	if cfg.Camera.RateHz == 0 {
		cfg.Camera.RateHz = 10
	}
	if cfg.Capture.OutputDir == "" {
		cfg.Capture.OutputDir = "frames"
	}

	return &cfg, nil
}

// Exposure returns the exposure time as a duration.
func (c *Config) Exposure() time.Duration {
	return time.Duration(c.Camera.ExposureS * float64(time.Second))
}

// FrameInterval returns the time between frames at the configured rate.
func (c *Config) FrameInterval() time.Duration {
	if c.Camera.RateHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.Camera.RateHz)
}
