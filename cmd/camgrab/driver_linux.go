//go:build linux

package main

import (
	"github.com/ryancwicks/CameraInterface/camera"
	"github.com/ryancwicks/CameraInterface/drivers/v4l2"
	"github.com/ryancwicks/CameraInterface/internal/config"
)

// newV4L2Driver builds the real V4L2 driver. Linux only.
func newV4L2Driver(cfg *config.Config) (camera.Driver[uint8], func() error, error) {
	drv := v4l2.NewDriver(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)
	return drv, drv.Close, nil
}
