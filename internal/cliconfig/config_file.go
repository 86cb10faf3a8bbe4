package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ServiceURL string `toml:"service_url"`
	DeviceID   string `toml:"device_id"`
	DeviceType string `toml:"device_type"`
	StateDir   string `toml:"state_dir"`
	Mode       string `toml:"mode"`

	Camera    CameraFileConfig    `toml:"camera"`
	Link      LinkFileConfig      `toml:"link"`
	Transport TransportFileConfig `toml:"transport"`
	Cycle     CycleFileConfig     `toml:"cycle"`
	Log       LogFileConfig       `toml:"log"`

	HealthAddr  string `toml:"health_addr"`
	WatchConfig *bool  `toml:"watch_config"`
}

// CameraFileConfig is the [camera] table.
type CameraFileConfig struct {
	Source           string  `toml:"source"`
	Device           string  `toml:"device"`
	Dir              string  `toml:"dir"`
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	Buffers          int     `toml:"buffers"`
	FrameRate        float64 `toml:"frame_rate"`
	ReducedWidth     int     `toml:"reduced_width"`
	ReducedHeight    int     `toml:"reduced_height"`
	ReducedBuffers   int     `toml:"reduced_buffers"`
	ReducedFrameRate float64 `toml:"reduced_frame_rate"`
	CaptureTimeout   string  `toml:"capture_timeout"`
	SettleDelay      string  `toml:"settle_delay"`
	PowerPin         string  `toml:"power_pin"`
	PowerActiveLow   *bool   `toml:"power_active_low"`
}

// LinkFileConfig is the [link] table.
type LinkFileConfig struct {
	Iface         string `toml:"iface"`
	LeaseCommand  string `toml:"lease_command"`
	ResetCommand  string `toml:"reset_command"`
	LeaseInterval string `toml:"lease_interval"`
	Recovery      *bool  `toml:"recovery"`
}

// TransportFileConfig is the [transport] table.
type TransportFileConfig struct {
	ConnectTimeout    string `toml:"connect_timeout"`
	ConnectRetryDelay string `toml:"connect_retry_delay"`
	ChunkSize         int    `toml:"chunk_size"`
	ChunkTimeout      string `toml:"chunk_timeout"`
	TransferTimeout   string `toml:"transfer_timeout"`
	AckTimeout        string `toml:"ack_timeout"`
	ConnectSpacing    string `toml:"connect_spacing"`
	RegisterTimeout   string `toml:"register_timeout"`
}

// CycleFileConfig is the [cycle] table.
type CycleFileConfig struct {
	FrameInterval     string `toml:"frame_interval"`
	TickInterval      string `toml:"tick_interval"`
	MaxFailures       int    `toml:"max_failures"`
	MaxReinitFailures int    `toml:"max_reinit_failures"`
	ResetInterval     string `toml:"reset_interval"`
	RegisterInterval  string `toml:"register_interval"`
	RestartCommand    string `toml:"restart_command"`
}

// LogFileConfig is the [log] table.
type LogFileConfig struct {
	File       string `toml:"file"`
	Level      string `toml:"level"`
	JSON       *bool  `toml:"json"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.frameship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".frameship", "config.toml")
	}
	return ""
}

type durationSetting struct {
	flag  string
	value string
	dst   *time.Duration
}

func (s *configSetter) setDurations(settings []durationSetting) error {
	for _, d := range settings {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("device-id", fc.DeviceID, &cfg.DeviceID)
	s.setString("device-type", fc.DeviceType, &cfg.DeviceType)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("mode", fc.Mode, &cfg.Mode)
	s.setString("health-addr", fc.HealthAddr, &cfg.HealthAddr)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	cam := fc.Camera
	s.setString("camera-source", cam.Source, &cfg.CameraSource)
	s.setString("camera-device", cam.Device, &cfg.CameraDevice)
	s.setString("source-dir", cam.Dir, &cfg.SourceDir)
	s.setInt("width", cam.Width, &cfg.Width)
	s.setInt("height", cam.Height, &cfg.Height)
	s.setInt("buffers", cam.Buffers, &cfg.Buffers)
	s.setFloat("frame-rate", cam.FrameRate, &cfg.FrameRate)
	s.setInt("reduced-width", cam.ReducedWidth, &cfg.ReducedWidth)
	s.setInt("reduced-height", cam.ReducedHeight, &cfg.ReducedHeight)
	s.setInt("reduced-buffers", cam.ReducedBuffers, &cfg.ReducedBuffers)
	s.setFloat("reduced-frame-rate", cam.ReducedFrameRate, &cfg.ReducedFrameRate)
	s.setString("power-pin", cam.PowerPin, &cfg.PowerPin)
	s.setBool("power-active-low", cam.PowerActiveLow, &cfg.PowerActiveLow)

	link := fc.Link
	s.setString("iface", link.Iface, &cfg.Iface)
	s.setString("lease-command", link.LeaseCommand, &cfg.LeaseCommand)
	s.setString("link-reset-command", link.ResetCommand, &cfg.LinkResetCommand)
	s.setBool("link-recovery", link.Recovery, &cfg.LinkRecovery)

	tr := fc.Transport
	s.setInt("chunk-size", tr.ChunkSize, &cfg.ChunkSize)

	cyc := fc.Cycle
	s.setInt("max-failures", cyc.MaxFailures, &cfg.MaxFailures)
	s.setInt("max-reinit-failures", cyc.MaxReinitFailures, &cfg.MaxReinitFailures)
	s.setString("restart-command", cyc.RestartCommand, &cfg.RestartCommand)

	lg := fc.Log
	s.setString("log-file", lg.File, &cfg.LogFile)
	s.setString("log-level", lg.Level, &cfg.LogLevel)
	s.setBool("log-json", lg.JSON, &cfg.LogJSON)
	s.setInt("log-max-size", lg.MaxSizeMB, &cfg.LogMaxSizeMB)
	s.setInt("log-max-backups", lg.MaxBackups, &cfg.LogMaxBackups)
	s.setInt("log-max-age", lg.MaxAgeDays, &cfg.LogMaxAgeDays)

	return s.setDurations([]durationSetting{
		{"capture-timeout", cam.CaptureTimeout, &cfg.CaptureTimeout},
		{"settle-delay", cam.SettleDelay, &cfg.SettleDelay},
		{"lease-interval", link.LeaseInterval, &cfg.LeaseInterval},
		{"connect-timeout", tr.ConnectTimeout, &cfg.ConnectTimeout},
		{"connect-retry-delay", tr.ConnectRetryDelay, &cfg.ConnectRetryDelay},
		{"chunk-timeout", tr.ChunkTimeout, &cfg.ChunkTimeout},
		{"transfer-timeout", tr.TransferTimeout, &cfg.TransferTimeout},
		{"ack-timeout", tr.AckTimeout, &cfg.AckTimeout},
		{"connect-spacing", tr.ConnectSpacing, &cfg.ConnectSpacing},
		{"register-timeout", tr.RegisterTimeout, &cfg.RegisterTimeout},
		{"frame-interval", cyc.FrameInterval, &cfg.FrameInterval},
		{"tick-interval", cyc.TickInterval, &cfg.TickInterval},
		{"reset-interval", cyc.ResetInterval, &cfg.ResetInterval},
		{"register-interval", cyc.RegisterInterval, &cfg.RegisterInterval},
	})
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
