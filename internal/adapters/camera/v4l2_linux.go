//go:build linux

package camera

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blackjack/webcam"
)

// V4L2Driver captures MJPEG frames from a Video4Linux device.
type V4L2Driver struct {
	device string

	mu  sync.Mutex
	cam *webcam.Webcam
}

// NewV4L2Driver creates a driver for device, e.g. /dev/video0.
func NewV4L2Driver(device string) *V4L2Driver {
	return &V4L2Driver{device: device}
}

// Open opens the device, selects Motion-JPEG at the profile's size and
// starts streaming.
func (v *V4L2Driver) Open(p Profile) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cam != nil {
		v.closeLocked()
	}

	cam, err := webcam.Open(v.device)
	if err != nil {
		return fmt.Errorf("open %s: %w", v.device, err)
	}

	var format webcam.PixelFormat
	for f, name := range cam.GetSupportedFormats() {
		if strings.HasPrefix(name, "Motion-JPEG") {
			format = f
			break
		}
	}
	if format == 0 {
		cam.Close()
		return fmt.Errorf("%s: Motion-JPEG not supported", v.device)
	}

	// The device may pick the nearest supported size.
	if _, _, _, err := cam.SetImageFormat(format, uint32(p.Width), uint32(p.Height)); err != nil {
		cam.Close()
		return fmt.Errorf("set format %dx%d: %w", p.Width, p.Height, err)
	}

	// Buffer count and frame rate setters are not present in every
	// webcam release.
	if p.Buffers > 0 {
		if bc, ok := interface{}(cam).(interface{ SetBufferCount(uint32) error }); ok {
			if err := bc.SetBufferCount(uint32(p.Buffers)); err != nil {
				cam.Close()
				return fmt.Errorf("set buffer count %d: %w", p.Buffers, err)
			}
		}
	}
	if p.FrameRate > 0 {
		if fr, ok := interface{}(cam).(interface{ SetFramerate(float32) error }); ok {
			_ = fr.SetFramerate(float32(p.FrameRate))
		}
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("start streaming: %w", err)
	}
	v.cam = cam
	return nil
}

// Grab waits for the next frame and copies it out of the driver buffer.
func (v *V4L2Driver) Grab(timeout time.Duration) ([]byte, func(), error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cam == nil {
		return nil, nil, fmt.Errorf("camera not open")
	}

	secs := uint32((timeout + time.Second - 1) / time.Second)
	if secs == 0 {
		secs = 1
	}
	err := v.cam.WaitForFrame(secs)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, nil, ErrTimeout
	default:
		return nil, nil, err
	}

	frame, err := v.cam.ReadFrame()
	if err != nil {
		return nil, nil, err
	}
	if len(frame) == 0 {
		return nil, nil, fmt.Errorf("empty frame")
	}
	return frame, nil, nil
}

// Close stops streaming and closes the device.
func (v *V4L2Driver) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closeLocked()
}

func (v *V4L2Driver) closeLocked() error {
	if v.cam == nil {
		return nil
	}
	cam := v.cam
	v.cam = nil
	_ = cam.StopStreaming()
	return cam.Close()
}
