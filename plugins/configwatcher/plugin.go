// Package configwatcher reloads tunable parameters when the frameship
// config file changes. New values reach the controller between cycles;
// settings that shape the hardware or the transport mode still need a
// restart.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/frameship/internal/cliconfig"
	"github.com/bft-labs/frameship/pkg/frameship"
	"github.com/bft-labs/frameship/pkg/log"
)

// Plugin watches the config file with fsnotify.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	changed       map[string]bool

	// Runtime state
	base     frameship.Config
	current  frameship.Tunables
	update   func(frameship.Tunables)
	logger   frameship.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML file to watch.
	// Default: ~/.frameship/config.toml
	Path string

	// DebounceDelay is how long to wait after the last change before
	// reloading. Editors often write a file in several steps.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Changed lists options set on the command line. The file never
	// overrides them.
	Changed map[string]bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          filepath.Clean(cfg.Path),
		debounceDelay: cfg.DebounceDelay,
		changed:       cfg.Changed,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file.
func (p *Plugin) Initialize(ctx context.Context, cfg frameship.PluginConfig) error {
	p.mu.Lock()
	p.base = cfg.Config
	p.current = cfg.Config.Tunables()
	p.update = cfg.UpdateTunables
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	p.mu.Unlock()

	if p.path == "." || p.update == nil {
		p.logger.Warn("config watcher disabled: no config path or controller")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and config management replace the file.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) scheduleReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies the file, then the environment, on top of the startup
// configuration and hands the resulting tunables to the controller if they
// changed. An unreadable or invalid file keeps the current values.
func (p *Plugin) reload() {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Warn("config reload skipped", log.String("path", p.path), log.Err(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := p.base
	if err := cliconfig.ApplyFileConfig(&cfg, fc, p.changed); err != nil {
		p.logger.Warn("config reload rejected", log.Err(err))
		return
	}
	// Environment still beats the file.
	if err := cliconfig.ApplyEnvConfig(&cfg, p.changed); err != nil {
		p.logger.Warn("config reload rejected", log.Err(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		p.logger.Warn("config reload rejected", log.Err(err))
		return
	}
	if cfg.Mode != p.base.Mode || cfg.CameraSource != p.base.CameraSource || cfg.ServiceURL != p.base.ServiceURL {
		p.logger.Warn("config change needs a restart to take effect")
	}

	t := cfg.Tunables()
	if t == p.current {
		p.logger.Debug("config reloaded, tunables unchanged")
		return
	}
	p.current = t
	p.update(t)
	p.logger.Info("tunables reloaded",
		log.Duration("frame_interval", t.FrameInterval),
		log.Int("max_failures", t.MaxFailures),
		log.Duration("transfer_timeout", t.Transport.TransferTimeout),
	)
}

// Ensure Plugin implements frameship.Plugin.
var _ frameship.Plugin = (*Plugin)(nil)
