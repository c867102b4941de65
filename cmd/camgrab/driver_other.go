//go:build !linux

package main

import (
	"fmt"

	"github.com/ryancwicks/CameraInterface/camera"
	"github.com/ryancwicks/CameraInterface/internal/config"
)

// newV4L2Driver is unavailable off Linux; use the simulated driver instead.
func newV4L2Driver(cfg *config.Config) (camera.Driver[uint8], func() error, error) {
	return nil, nil, fmt.Errorf("camera type v4l2 requires linux")
}
