// Package camera implements the frame source over a camera driver.
package camera

import (
	"errors"
	"time"
)

// Profile is a camera operating point.
type Profile struct {
	Width     int
	Height    int
	Buffers   int
	FrameRate float64
}

// ErrTimeout is returned by Driver.Grab when no frame arrived in time.
var ErrTimeout = errors.New("camera: frame timeout")

// Driver is a camera back-end.
type Driver interface {
	// Open configures and starts the camera at p.
	Open(p Profile) error
	// Grab waits up to timeout for one encoded frame. The returned release
	// function hands the buffer back and may be nil.
	Grab(timeout time.Duration) (data []byte, release func(), err error)
	// Close stops the camera. Closing a closed driver is not an error.
	Close() error
}

// PowerSwitch cuts and restores camera power.
type PowerSwitch interface {
	SetPower(on bool) error
}
