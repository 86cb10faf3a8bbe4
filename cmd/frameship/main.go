package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/bft-labs/frameship/internal/adapters/log"
	"github.com/bft-labs/frameship/internal/cliconfig"
	"github.com/bft-labs/frameship/pkg/frameship"
	"github.com/bft-labs/frameship/pkg/log"
	"github.com/bft-labs/frameship/plugins/configwatcher"
)

const helpDescription = `
Capture camera frames and ship them to a collector over a flaky Wi-Fi link.

Highlights:
  - Discrete mode sends one JPEG per cycle; stream mode keeps a multipart
    upload open and appends frames.
  - Watches the link, renews the DHCP lease and backs off while it is down.
  - Degrades capture, re-initializes the link and finally asks for a
    restart when failures keep piling up.
  - Configure via file, FRAMESHIP_* environment variables, or flags.
`

var longHelp = "frameship\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  frameship --service-url http://10.0.0.2:8000 --camera-device /dev/video0
  frameship --config /etc/frameship/config.toml --mode stream
  frameship --camera-source dir --source-dir ./frames --health-addr :9090
`)

// exitRestartRequired tells the supervisor that the node gave up on
// in-process recovery.
const exitRestartRequired = 3

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "frameship",
		Short:         "Capture camera frames and ship them to a collector",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// File first, then FRAMESHIP_* variables. Flags beat both.
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closer := logAdapter.New(logAdapter.Options{
				Level:      cfg.LogLevel,
				JSON:       cfg.LogJSON,
				File:       cfg.LogFile,
				MaxSizeMB:  cfg.LogMaxSizeMB,
				MaxBackups: cfg.LogMaxBackups,
				MaxAgeDays: cfg.LogMaxAgeDays,
			})
			defer closer.Close()

			logger.Info("configuration", log.Any("config", cfg), log.String("config_file", cfgFile))

			opts := []frameship.Option{frameship.WithLogger(logger)}
			switch {
			case cfg.WatchConfig && !cliconfig.FileExists(cfgFile):
				logger.Warn("watch-config set but config file does not exist", log.String("config_file", cfgFile))
			case cfg.WatchConfig:
				opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
					Path:    cfgFile,
					Changed: changed,
				}))
			}

			node, err := frameship.New(cfg, opts...)
			if err != nil {
				return fmt.Errorf("create frameship: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := node.Start(ctx); err != nil {
				return fmt.Errorf("start frameship: %w", err)
			}
			logger.Info("frameship started", log.DeviceID(node.DeviceID()), log.String("mode", cfg.Mode))

			select {
			case <-ctx.Done():
				logger.Info("received signal, stopping...")
			case <-node.Done():
			}

			if err := node.Err(); err != nil {
				logger.Error("frameship crashed", log.Err(err))
				return err
			}
			if err := node.Stop(); err != nil && !errors.Is(err, frameship.ErrNotRunning) {
				return fmt.Errorf("stop frameship: %w", err)
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.frameship/config.toml)")
	bindFlags(root.Flags(), &cfg)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "frameship:", err)
		if errors.Is(err, frameship.ErrRestartRequired) {
			os.Exit(exitRestartRequired)
		}
		os.Exit(1)
	}
}

func bindFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "collector base URL")
	fs.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "device identifier (derived from the MAC address when empty)")
	fs.StringVar(&cfg.DeviceType, "device-type", cfg.DeviceType, "device type reported at registration")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the persisted device identity")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "transport mode: discrete or stream")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "address for the /healthz endpoint (disabled when empty)")
	fs.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload tunables when the config file changes")

	fs.StringVar(&cfg.CameraSource, "camera-source", cfg.CameraSource, "frame source: v4l2 or dir")
	fs.StringVar(&cfg.CameraDevice, "camera-device", cfg.CameraDevice, "V4L2 device path")
	fs.StringVar(&cfg.SourceDir, "source-dir", cfg.SourceDir, "directory of JPEG files for the dir source")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "capture width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "capture height")
	fs.IntVar(&cfg.Buffers, "buffers", cfg.Buffers, "driver buffer count")
	fs.Float64Var(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "capture frame rate")
	fs.IntVar(&cfg.ReducedWidth, "reduced-width", cfg.ReducedWidth, "capture width after degrading")
	fs.IntVar(&cfg.ReducedHeight, "reduced-height", cfg.ReducedHeight, "capture height after degrading")
	fs.IntVar(&cfg.ReducedBuffers, "reduced-buffers", cfg.ReducedBuffers, "driver buffer count after degrading")
	fs.Float64Var(&cfg.ReducedFrameRate, "reduced-frame-rate", cfg.ReducedFrameRate, "capture frame rate after degrading")
	fs.DurationVar(&cfg.CaptureTimeout, "capture-timeout", cfg.CaptureTimeout, "maximum wait for one frame")
	fs.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "wait after powering the camera back on")
	fs.StringVar(&cfg.PowerPin, "power-pin", cfg.PowerPin, "GPIO pin switching camera power (optional)")
	fs.BoolVar(&cfg.PowerActiveLow, "power-active-low", cfg.PowerActiveLow, "camera power pin is active low")

	fs.StringVar(&cfg.Iface, "iface", cfg.Iface, "wireless interface to watch (first non-loopback when empty)")
	fs.StringVar(&cfg.LeaseCommand, "lease-command", cfg.LeaseCommand, "command that renews the DHCP lease")
	fs.StringVar(&cfg.LinkResetCommand, "link-reset-command", cfg.LinkResetCommand, "command that re-initializes the link")
	fs.DurationVar(&cfg.LeaseInterval, "lease-interval", cfg.LeaseInterval, "DHCP lease renewal interval")
	fs.BoolVar(&cfg.LinkRecovery, "link-recovery", cfg.LinkRecovery, "re-initialize the link after repeated send failures")

	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "TCP connect timeout")
	fs.DurationVar(&cfg.ConnectRetryDelay, "connect-retry-delay", cfg.ConnectRetryDelay, "pause between connect attempts")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "bytes per socket write")
	fs.DurationVar(&cfg.ChunkTimeout, "chunk-timeout", cfg.ChunkTimeout, "deadline for one chunk write")
	fs.DurationVar(&cfg.TransferTimeout, "transfer-timeout", cfg.TransferTimeout, "deadline for a whole transfer")
	fs.DurationVar(&cfg.AckTimeout, "ack-timeout", cfg.AckTimeout, "how long to wait for the collector's reply")
	fs.DurationVar(&cfg.ConnectSpacing, "connect-spacing", cfg.ConnectSpacing, "minimum gap between connections")
	fs.DurationVar(&cfg.RegisterTimeout, "register-timeout", cfg.RegisterTimeout, "registration request timeout")

	fs.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "time between capture cycles")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "controller tick")
	fs.IntVar(&cfg.MaxFailures, "max-failures", cfg.MaxFailures, "consecutive failures before recovery")
	fs.IntVar(&cfg.MaxReinitFailures, "max-reinit-failures", cfg.MaxReinitFailures, "failed re-initializations before a restart is requested")
	fs.DurationVar(&cfg.ResetInterval, "reset-interval", cfg.ResetInterval, "periodic camera reset (0 disables)")
	fs.DurationVar(&cfg.RegisterInterval, "register-interval", cfg.RegisterInterval, "retry interval for registration")
	fs.StringVar(&cfg.RestartCommand, "restart-command", cfg.RestartCommand, "command run when a restart is required")

	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rotating log file (stderr only when empty)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "emit JSON log lines")
	fs.IntVar(&cfg.LogMaxSizeMB, "log-max-size", cfg.LogMaxSizeMB, "log file size in MB before rotation")
	fs.IntVar(&cfg.LogMaxBackups, "log-max-backups", cfg.LogMaxBackups, "rotated log files to keep")
	fs.IntVar(&cfg.LogMaxAgeDays, "log-max-age", cfg.LogMaxAgeDays, "days to keep rotated log files")
}
