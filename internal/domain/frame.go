package domain

import (
	"sync"
	"time"
)

// Frame is one encoded image capture held in a driver-owned buffer.
// The bytes are only valid until Release is called.
type Frame struct {
	data       []byte
	capturedAt time.Time
	release    func()

	once     sync.Once
	released bool
	mu       sync.Mutex
}

// NewFrame wraps a captured buffer. release returns the buffer to the driver
// and may be nil for buffers the driver does not track.
func NewFrame(data []byte, capturedAt time.Time, release func()) *Frame {
	return &Frame{data: data, capturedAt: capturedAt, release: release}
}

// Bytes returns the encoded payload. Callers must not retain it past Release.
func (f *Frame) Bytes() []byte { return f.data }

// Len returns the payload length in bytes.
func (f *Frame) Len() int { return len(f.data) }

// CapturedAt returns the capture timestamp.
func (f *Frame) CapturedAt() time.Time { return f.capturedAt }

// Release returns the underlying buffer to the driver. Only the first call
// has an effect; it reports whether this call performed the release.
func (f *Frame) Release() bool {
	did := false
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
		f.mu.Lock()
		f.released = true
		f.mu.Unlock()
		did = true
	})
	return did
}

// Released reports whether the buffer has been returned.
func (f *Frame) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}
