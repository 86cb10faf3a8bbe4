package camera

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/ports"
)

// Source defaults.
const (
	DefaultCaptureTimeout = 5 * time.Second
	DefaultPowerOffDelay  = 200 * time.Millisecond
	DefaultSettleDelay    = 2 * time.Second
)

var jpegSOI = []byte{0xFF, 0xD8}

// Config configures a Source.
type Config struct {
	Normal         Profile
	Reduced        Profile
	CaptureTimeout time.Duration
	PowerOffDelay  time.Duration
	SettleDelay    time.Duration
}

// Source implements ports.FrameSource over a Driver. It opens the driver
// lazily at the normal profile and drops to the reduced profile after the
// first reinitialize.
type Source struct {
	cfg    Config
	driver Driver
	power  PowerSwitch
	logger ports.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	open    bool
	profile Profile
	// fresh is set by a successful Reinitialize and cleared by Capture.
	fresh bool
}

// NewSource creates a source. power may be nil.
func NewSource(cfg Config, driver Driver, power PowerSwitch, logger ports.Logger) *Source {
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.PowerOffDelay <= 0 {
		cfg.PowerOffDelay = DefaultPowerOffDelay
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.Reduced == (Profile{}) {
		cfg.Reduced = cfg.Normal
	}
	return &Source{
		cfg:     cfg,
		driver:  driver,
		power:   power,
		logger:  logger,
		sleep:   sleepCtx,
		profile: cfg.Normal,
	}
}

// Capture grabs one JPEG frame. A buffer that does not start with a JPEG
// start-of-image marker is released and reported as a capture error.
func (s *Source) Capture(ctx context.Context) (*domain.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fresh = false
	if !s.open {
		if err := s.driver.Open(s.profile); err != nil {
			return nil, errors.Wrapf(domain.ErrCapture, "open camera: %v", err)
		}
		s.open = true
	}

	timeout := s.cfg.CaptureTimeout
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, errors.Wrap(domain.ErrCapture, "no time left for capture")
	}

	data, release, err := s.driver.Grab(timeout)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrCapture, "grab: %v", err)
	}
	if len(data) < len(jpegSOI) || !bytes.HasPrefix(data, jpegSOI) {
		if release != nil {
			release()
		}
		return nil, errors.Wrapf(domain.ErrCapture, "invalid frame of %d bytes", len(data))
	}
	return domain.NewFrame(data, time.Now(), release), nil
}

// Reinitialize power-cycles the camera and reopens it at the reduced
// profile, then waits the settle delay. A second call with no capture in
// between does nothing.
func (s *Source) Reinitialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fresh {
		s.logger.Debug("camera already reinitialized")
		return nil
	}

	if s.open {
		if err := s.driver.Close(); err != nil {
			s.logger.Warn("close camera", ports.Err(err))
		}
		s.open = false
	}

	if s.power != nil {
		if err := s.power.SetPower(false); err != nil {
			return errors.Wrapf(domain.ErrReinitialize, "power off: %v", err)
		}
		if err := s.sleep(ctx, s.cfg.PowerOffDelay); err != nil {
			return errors.Wrap(domain.ErrReinitialize, err.Error())
		}
		if err := s.power.SetPower(true); err != nil {
			return errors.Wrapf(domain.ErrReinitialize, "power on: %v", err)
		}
	}

	s.profile = s.cfg.Reduced
	if err := s.driver.Open(s.profile); err != nil {
		return errors.Wrapf(domain.ErrReinitialize, "open camera: %v", err)
	}
	s.open = true

	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return errors.Wrap(domain.ErrReinitialize, err.Error())
	}

	s.fresh = true
	s.logger.Info("camera reinitialized",
		ports.Int("width", s.profile.Width),
		ports.Int("height", s.profile.Height),
		ports.Int("buffers", s.profile.Buffers),
		ports.Float64("frame_rate", s.profile.FrameRate),
	)
	return nil
}

// Profile returns the profile the camera runs at.
func (s *Source) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Close stops the camera and leaves power on.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	return s.driver.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
