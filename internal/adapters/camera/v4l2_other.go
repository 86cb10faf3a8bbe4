//go:build !linux

package camera

import (
	"fmt"
	"runtime"
	"time"
)

// V4L2Driver is only available on Linux.
type V4L2Driver struct {
	device string
}

// NewV4L2Driver creates a driver for device.
func NewV4L2Driver(device string) *V4L2Driver {
	return &V4L2Driver{device: device}
}

// Open always fails off Linux.
func (v *V4L2Driver) Open(p Profile) error {
	return fmt.Errorf("v4l2 capture not supported on %s", runtime.GOOS)
}

// Grab always fails off Linux.
func (v *V4L2Driver) Grab(timeout time.Duration) ([]byte, func(), error) {
	return nil, nil, fmt.Errorf("v4l2 capture not supported on %s", runtime.GOOS)
}

// Close does nothing.
func (v *V4L2Driver) Close() error { return nil }
