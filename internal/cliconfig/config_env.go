package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (FRAMESHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("FRAMESHIP_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("device-id", os.Getenv("FRAMESHIP_DEVICE_ID"), &cfg.DeviceID)
	s.setString("device-type", os.Getenv("FRAMESHIP_DEVICE_TYPE"), &cfg.DeviceType)
	s.setString("state-dir", os.Getenv("FRAMESHIP_STATE_DIR"), &cfg.StateDir)
	s.setString("mode", os.Getenv("FRAMESHIP_MODE"), &cfg.Mode)
	s.setString("camera-source", os.Getenv("FRAMESHIP_CAMERA_SOURCE"), &cfg.CameraSource)
	s.setString("camera-device", os.Getenv("FRAMESHIP_CAMERA_DEVICE"), &cfg.CameraDevice)
	s.setString("source-dir", os.Getenv("FRAMESHIP_SOURCE_DIR"), &cfg.SourceDir)
	s.setString("power-pin", os.Getenv("FRAMESHIP_POWER_PIN"), &cfg.PowerPin)
	s.setString("iface", os.Getenv("FRAMESHIP_IFACE"), &cfg.Iface)
	s.setString("lease-command", os.Getenv("FRAMESHIP_LEASE_COMMAND"), &cfg.LeaseCommand)
	s.setString("link-reset-command", os.Getenv("FRAMESHIP_LINK_RESET_COMMAND"), &cfg.LinkResetCommand)
	s.setString("restart-command", os.Getenv("FRAMESHIP_RESTART_COMMAND"), &cfg.RestartCommand)
	s.setString("log-file", os.Getenv("FRAMESHIP_LOG_FILE"), &cfg.LogFile)
	s.setString("log-level", os.Getenv("FRAMESHIP_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("health-addr", os.Getenv("FRAMESHIP_HEALTH_ADDR"), &cfg.HealthAddr)

	if err := s.setDurations([]durationSetting{
		{"capture-timeout", os.Getenv("FRAMESHIP_CAPTURE_TIMEOUT"), &cfg.CaptureTimeout},
		{"settle-delay", os.Getenv("FRAMESHIP_SETTLE_DELAY"), &cfg.SettleDelay},
		{"lease-interval", os.Getenv("FRAMESHIP_LEASE_INTERVAL"), &cfg.LeaseInterval},
		{"connect-timeout", os.Getenv("FRAMESHIP_CONNECT_TIMEOUT"), &cfg.ConnectTimeout},
		{"connect-retry-delay", os.Getenv("FRAMESHIP_CONNECT_RETRY_DELAY"), &cfg.ConnectRetryDelay},
		{"chunk-timeout", os.Getenv("FRAMESHIP_CHUNK_TIMEOUT"), &cfg.ChunkTimeout},
		{"transfer-timeout", os.Getenv("FRAMESHIP_TRANSFER_TIMEOUT"), &cfg.TransferTimeout},
		{"ack-timeout", os.Getenv("FRAMESHIP_ACK_TIMEOUT"), &cfg.AckTimeout},
		{"connect-spacing", os.Getenv("FRAMESHIP_CONNECT_SPACING"), &cfg.ConnectSpacing},
		{"register-timeout", os.Getenv("FRAMESHIP_REGISTER_TIMEOUT"), &cfg.RegisterTimeout},
		{"frame-interval", os.Getenv("FRAMESHIP_FRAME_INTERVAL"), &cfg.FrameInterval},
		{"tick-interval", os.Getenv("FRAMESHIP_TICK_INTERVAL"), &cfg.TickInterval},
		{"reset-interval", os.Getenv("FRAMESHIP_RESET_INTERVAL"), &cfg.ResetInterval},
		{"register-interval", os.Getenv("FRAMESHIP_REGISTER_INTERVAL"), &cfg.RegisterInterval},
	}); err != nil {
		return err
	}

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"width", "FRAMESHIP_WIDTH", &cfg.Width},
		{"height", "FRAMESHIP_HEIGHT", &cfg.Height},
		{"buffers", "FRAMESHIP_BUFFERS", &cfg.Buffers},
		{"reduced-width", "FRAMESHIP_REDUCED_WIDTH", &cfg.ReducedWidth},
		{"reduced-height", "FRAMESHIP_REDUCED_HEIGHT", &cfg.ReducedHeight},
		{"reduced-buffers", "FRAMESHIP_REDUCED_BUFFERS", &cfg.ReducedBuffers},
		{"chunk-size", "FRAMESHIP_CHUNK_SIZE", &cfg.ChunkSize},
		{"max-failures", "FRAMESHIP_MAX_FAILURES", &cfg.MaxFailures},
		{"max-reinit-failures", "FRAMESHIP_MAX_REINIT_FAILURES", &cfg.MaxReinitFailures},
		{"log-max-size", "FRAMESHIP_LOG_MAX_SIZE_MB", &cfg.LogMaxSizeMB},
		{"log-max-backups", "FRAMESHIP_LOG_MAX_BACKUPS", &cfg.LogMaxBackups},
		{"log-max-age", "FRAMESHIP_LOG_MAX_AGE_DAYS", &cfg.LogMaxAgeDays},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, os.Getenv(i.env), i.dst); err != nil {
			return err
		}
	}

	if err := s.setFloatFromString("frame-rate", os.Getenv("FRAMESHIP_FRAME_RATE"), &cfg.FrameRate); err != nil {
		return err
	}
	if err := s.setFloatFromString("reduced-frame-rate", os.Getenv("FRAMESHIP_REDUCED_FRAME_RATE"), &cfg.ReducedFrameRate); err != nil {
		return err
	}

	s.setBoolFromString("power-active-low", os.Getenv("FRAMESHIP_POWER_ACTIVE_LOW"), &cfg.PowerActiveLow)
	s.setBoolFromString("link-recovery", os.Getenv("FRAMESHIP_LINK_RECOVERY"), &cfg.LinkRecovery)
	s.setBoolFromString("log-json", os.Getenv("FRAMESHIP_LOG_JSON"), &cfg.LogJSON)
	s.setBoolFromString("watch-config", os.Getenv("FRAMESHIP_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
