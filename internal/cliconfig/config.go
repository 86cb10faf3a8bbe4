package cliconfig

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
)

// DefaultServiceURL is the default collector endpoint.
const DefaultServiceURL = "http://localhost:8000"

// Camera sources.
const (
	SourceV4L2 = "v4l2"
	SourceDir  = "dir"
)

// Config holds CLI configuration for frameship.
type Config struct {
	ServiceURL string
	DeviceID   string
	DeviceType string
	StateDir   string
	Mode       string

	CameraSource     string
	CameraDevice     string
	SourceDir        string
	Width            int
	Height           int
	Buffers          int
	FrameRate        float64
	ReducedWidth     int
	ReducedHeight    int
	ReducedBuffers   int
	ReducedFrameRate float64
	CaptureTimeout   time.Duration
	SettleDelay      time.Duration
	PowerPin         string
	PowerActiveLow   bool

	Iface            string
	LeaseCommand     string
	LinkResetCommand string
	LeaseInterval    time.Duration
	LinkRecovery     bool

	ConnectTimeout    time.Duration
	ConnectRetryDelay time.Duration
	ChunkSize         int
	ChunkTimeout      time.Duration
	TransferTimeout   time.Duration
	AckTimeout        time.Duration
	ConnectSpacing    time.Duration
	RegisterTimeout   time.Duration

	FrameInterval     time.Duration
	TickInterval      time.Duration
	MaxFailures       int
	MaxReinitFailures int
	ResetInterval     time.Duration
	RegisterInterval  time.Duration
	RestartCommand    string

	LogFile       string
	LogLevel      string
	LogJSON       bool
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	HealthAddr  string
	WatchConfig bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServiceURL: DefaultServiceURL,
		DeviceType: "camera",
		Mode:       string(domain.ModeDiscrete),

		CameraSource:     SourceV4L2,
		CameraDevice:     "/dev/video0",
		Width:            1280,
		Height:           720,
		Buffers:          2,
		FrameRate:        10,
		ReducedWidth:     640,
		ReducedHeight:    480,
		ReducedBuffers:   1,
		ReducedFrameRate: 5,
		CaptureTimeout:   5 * time.Second,
		SettleDelay:      2 * time.Second,

		LeaseInterval: 10 * time.Minute,

		ConnectTimeout:    5 * time.Second,
		ConnectRetryDelay: 100 * time.Millisecond,
		ChunkSize:         4096,
		ChunkTimeout:      2 * time.Second,
		TransferTimeout:   10 * time.Second,
		AckTimeout:        500 * time.Millisecond,
		ConnectSpacing:    500 * time.Millisecond,
		RegisterTimeout:   3 * time.Second,

		FrameInterval:     time.Second,
		TickInterval:      100 * time.Millisecond,
		MaxFailures:       5,
		MaxReinitFailures: 2,
		ResetInterval:     6 * time.Hour,
		RegisterInterval:  30 * time.Second,

		LogLevel:      "info",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		LogMaxAgeDays: 14,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	u, err := url.Parse(c.ServiceURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid service url %q", c.ServiceURL)
	}
	if u.Scheme != "http" {
		return fmt.Errorf("service url %q: only http is supported", c.ServiceURL)
	}

	if c.StateDir == "" {
		dir := filepath.Dir(DefaultConfigPath())
		if dir == "." || dir == "" {
			return fmt.Errorf("state-dir is required")
		}
		c.StateDir = dir
	}

	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch domain.Mode(c.Mode) {
	case domain.ModeDiscrete, domain.ModeStream:
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", c.Mode, domain.ModeDiscrete, domain.ModeStream)
	}

	switch c.CameraSource {
	case SourceV4L2:
		if c.CameraDevice == "" {
			return fmt.Errorf("camera-device is required for the v4l2 source")
		}
	case SourceDir:
		if c.SourceDir == "" {
			return fmt.Errorf("source-dir is required for the dir source")
		}
	default:
		return fmt.Errorf("unknown camera source %q", c.CameraSource)
	}

	if c.ReducedWidth <= 0 || c.ReducedHeight <= 0 {
		c.ReducedWidth, c.ReducedHeight = c.Width, c.Height
	}
	if c.ReducedBuffers <= 0 {
		c.ReducedBuffers = 1
	}
	if c.ReducedFrameRate <= 0 {
		c.ReducedFrameRate = c.FrameRate
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"frame-interval", c.FrameInterval},
		{"tick-interval", c.TickInterval},
		{"connect-timeout", c.ConnectTimeout},
		{"connect-retry-delay", c.ConnectRetryDelay},
		{"chunk-timeout", c.ChunkTimeout},
		{"transfer-timeout", c.TransferTimeout},
		{"capture-timeout", c.CaptureTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}
	if c.ChunkTimeout > c.TransferTimeout {
		return fmt.Errorf("chunk-timeout (%s) exceeds transfer-timeout (%s)", c.ChunkTimeout, c.TransferTimeout)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk-size must be positive")
	}
	if c.MaxFailures <= 0 {
		return fmt.Errorf("max-failures must be positive")
	}
	if c.MaxReinitFailures <= 0 {
		c.MaxReinitFailures = 2
	}

	return nil
}

// Tunables returns the parameters that may be reloaded at runtime.
func (c Config) Tunables() domain.Tunables {
	return domain.Tunables{
		FrameInterval:     c.FrameInterval,
		ConnectSpacing:    c.ConnectSpacing,
		MaxFailures:       c.MaxFailures,
		MaxReinitFailures: c.MaxReinitFailures,
		ResetInterval:     c.ResetInterval,
		LeaseInterval:     c.LeaseInterval,
		Transport: domain.TransportTunables{
			ConnectTimeout:    c.ConnectTimeout,
			ConnectRetryDelay: c.ConnectRetryDelay,
			ChunkSize:         c.ChunkSize,
			ChunkTimeout:      c.ChunkTimeout,
			TransferTimeout:   c.TransferTimeout,
			AckTimeout:        c.AckTimeout,
		},
	}
}
