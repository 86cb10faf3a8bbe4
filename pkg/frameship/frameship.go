package frameship

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/frameship/internal/adapters/camera"
	"github.com/bft-labs/frameship/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/frameship/internal/adapters/http"
	linkAdapter "github.com/bft-labs/frameship/internal/adapters/link"
	"github.com/bft-labs/frameship/internal/adapters/system"
	"github.com/bft-labs/frameship/internal/app"
	"github.com/bft-labs/frameship/internal/cliconfig"
	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/health"
	"github.com/bft-labs/frameship/internal/ports"
	"github.com/bft-labs/frameship/pkg/log"
)

// IdentityPrefix is prepended to generated device identifiers.
const IdentityPrefix = "cam-"

// Snapshot is a point-in-time copy of the controller state.
type Snapshot = app.Snapshot

// Frameship is a frame shipping node that can be embedded in other
// applications. Use New() to create an instance, then Start() to begin
// delivering frames.
type Frameship struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	emitter   *eventEmitterWrapper
	logger    ports.Logger
	source    ports.FrameSource
	link      ports.LinkMonitor
	transport ports.Transport
	house     ports.Housekeeper
	restarter ports.Restarter
	resolver  *fs.Resolver
	plugins   []Plugin

	// watchdog is nil when a housekeeper was injected.
	watchdog *system.Watchdog

	mu         sync.RWMutex
	controller *app.Controller
	deviceID   string
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
	release    *sync.Once
}

// New creates a node with the given configuration. The instance is created
// in StateStopped; call Start() to begin. No device is opened yet.
func New(cfg Config, opts ...Option) (*Frameship, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	f := &Frameship{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		emitter:   emitter,
		logger:    logger,
		plugins:   o.plugins,
		done:      closedChan(),
	}

	f.house = o.housekeeper
	if f.house == nil {
		f.watchdog = system.NewWatchdog(logger)
		f.house = f.watchdog
	}

	f.source = o.source
	if f.source == nil {
		src, err := newCameraSource(cfg, logger)
		if err != nil {
			return nil, err
		}
		f.source = src
	}

	f.link = o.link
	if f.link == nil {
		f.link = linkAdapter.NewMonitor(linkAdapter.Config{
			Interface:    cfg.Iface,
			LeaseCommand: cfg.LeaseCommand,
			ResetCommand: cfg.LinkResetCommand,
		}, logger)
	}

	f.transport = o.transport
	if f.transport == nil {
		sess, err := httpAdapter.NewSession(httpAdapter.Config{
			ServiceURL:      cfg.ServiceURL,
			Mode:            domain.Mode(cfg.Mode),
			DeviceType:      cfg.DeviceType,
			RegisterTimeout: cfg.RegisterTimeout,
			Tunables:        cfg.Tunables().Transport,
		}, httpAdapter.Deps{
			Client:      o.httpClient,
			Housekeeper: f.house,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
		}
		f.transport = sess
	}

	f.restarter = o.restarter
	if f.restarter == nil {
		f.restarter = system.NewCommandRestarter(cfg.RestartCommand, logger)
	}

	store := o.identity
	if store == nil {
		store = fs.NewIdentityFile(cfg.StateDir)
	}
	f.resolver = &fs.Resolver{
		Store:     store,
		Interface: cfg.Iface,
		Prefix:    IdentityPrefix,
		Logger:    logger,
	}

	return f, nil
}

func newCameraSource(cfg Config, logger ports.Logger) (*camera.Source, error) {
	var driver camera.Driver
	switch cfg.CameraSource {
	case cliconfig.SourceDir:
		driver = camera.NewDirDriver(cfg.SourceDir)
	default:
		driver = camera.NewV4L2Driver(cfg.CameraDevice)
	}

	power, err := camera.NewPowerSwitch(cfg.PowerPin, cfg.PowerActiveLow, logger)
	if err != nil {
		return nil, fmt.Errorf("camera power pin %s: %w", cfg.PowerPin, err)
	}

	return camera.NewSource(camera.Config{
		Normal: camera.Profile{
			Width:     cfg.Width,
			Height:    cfg.Height,
			Buffers:   cfg.Buffers,
			FrameRate: cfg.FrameRate,
		},
		Reduced: camera.Profile{
			Width:     cfg.ReducedWidth,
			Height:    cfg.ReducedHeight,
			Buffers:   cfg.ReducedBuffers,
			FrameRate: cfg.ReducedFrameRate,
		},
		CaptureTimeout: cfg.CaptureTimeout,
		SettleDelay:    cfg.SettleDelay,
	}, driver, power, logger), nil
}

// linkRecovery reports whether send failures may reset the link.
func (f *Frameship) linkRecovery() bool {
	if !f.config.LinkRecovery {
		return false
	}
	if c, ok := f.link.(interface{ CanReset() bool }); ok {
		return c.CanReset()
	}
	_, ok := f.link.(ports.LinkResetter)
	return ok
}

// Start resolves the device identity, initializes plugins and starts the
// controller in the background. It returns once the controller goroutine
// is running. The provided context bounds the node's lifetime.
func (f *Frameship) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := f.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.lifecycle.SetCancel(cancel)

	deviceID, src, err := f.resolver.Resolve(runCtx, f.config.DeviceID)
	if err != nil {
		cancel()
		_ = f.lifecycle.TransitionTo(app.StateCrashed, "identity: "+err.Error())
		return err
	}
	f.deviceID = deviceID
	f.logger.Info("device identity",
		ports.DeviceID(deviceID),
		ports.String("source", string(src)),
	)

	ctrl := app.NewController(app.ControllerConfig{
		DeviceID:         deviceID,
		Tunables:         f.config.Tunables(),
		TickInterval:     f.config.TickInterval,
		RegisterInterval: f.config.RegisterInterval,
		LinkRecovery:     f.linkRecovery(),
	}, app.ControllerDeps{
		Source:      f.source,
		Link:        f.link,
		Transport:   f.transport,
		Housekeeper: f.house,
		Restarter:   f.restarter,
		Logger:      f.logger,
		Clock:       f.opts.clock,
		Events:      f.emitter,
	})
	f.controller = ctrl

	pluginCfg := PluginConfig{
		DeviceID:       deviceID,
		ServiceURL:     f.config.ServiceURL,
		StateDir:       f.config.StateDir,
		Config:         f.config,
		Logger:         f.logger,
		UpdateTunables: ctrl.UpdateTunables,
	}
	for i, p := range f.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			f.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			f.shutdownPlugins(f.plugins[:i])
			_ = f.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		f.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	done := make(chan struct{})
	f.done = done
	f.err = nil
	f.release = new(sync.Once)

	f.lifecycle.Go(func() {
		defer close(done)
		f.run(runCtx, ctrl)
	})
	return nil
}

// run drives the controller and the optional health endpoint until ctx is
// done or the controller requires a restart.
func (f *Frameship) run(ctx context.Context, ctrl *app.Controller) {
	if err := f.lifecycle.TransitionTo(app.StateRunning, "controller starting"); err != nil {
		f.logger.Error("failed to transition to running", ports.Err(err))
		return
	}
	if f.watchdog != nil {
		f.watchdog.Ready()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	if f.config.HealthAddr != "" {
		srv := health.NewServer(f.config.HealthAddr, f.report, f.logger)
		g.Go(func() error {
			// The endpoint is optional; losing it must not stop delivery.
			if err := srv.Serve(gctx); err != nil {
				f.logger.Error("health endpoint stopped",
					ports.String("addr", f.config.HealthAddr),
					ports.Err(err))
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	if errors.Is(err, domain.ErrRestartRequired) {
		f.logger.Error("device restart required", ports.DeviceID(ctrl.Snapshot().DeviceID))
	} else {
		f.logger.Error("controller stopped", ports.Err(err))
	}
	_ = f.lifecycle.TransitionTo(app.StateCrashed, err.Error())
	f.releaseResources()
}

// Stop cancels the controller, waits for it to finish the current cycle and
// shuts down plugins. Waits up to ShutdownTimeout before giving up.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (f *Frameship) Stop() error {
	f.mu.Lock()

	if !f.lifecycle.CanStop() {
		f.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := f.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.cancel != nil {
		f.cancel()
	}

	f.mu.Unlock()

	err := f.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	f.releaseResources()

	if err != nil {
		_ = f.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = f.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// releaseResources runs once per Start, from Stop or after a crash.
func (f *Frameship) releaseResources() {
	f.mu.RLock()
	once := f.release
	f.mu.RUnlock()
	if once == nil {
		return
	}
	once.Do(func() {
		if f.watchdog != nil {
			f.watchdog.Stopping()
		}
		f.shutdownPlugins(f.plugins)
		if err := f.source.Close(); err != nil {
			f.logger.Warn("camera close failed", ports.Err(err))
		}
	})
}

// shutdownPlugins shuts plugins down in reverse order.
func (f *Frameship) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			f.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			f.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (f *Frameship) Status() State {
	return convertState(f.lifecycle.State())
}

// DeviceID returns the identifier resolved by the last Start.
func (f *Frameship) DeviceID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.deviceID
}

// Snapshot returns the controller state, or false before the first Start.
func (f *Frameship) Snapshot() (Snapshot, bool) {
	f.mu.RLock()
	ctrl := f.controller
	f.mu.RUnlock()
	if ctrl == nil {
		return Snapshot{}, false
	}
	return ctrl.Snapshot(), true
}

// UpdateTunables hands new parameters to the running controller.
func (f *Frameship) UpdateTunables(t Tunables) {
	f.mu.RLock()
	ctrl := f.controller
	f.mu.RUnlock()
	if ctrl != nil {
		ctrl.UpdateTunables(t)
	}
}

// Done is closed when the background controller of the last Start exits.
func (f *Frameship) Done() <-chan struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.done
}

// Err returns why the controller exited on its own, typically
// ErrRestartRequired. It is nil after a requested Stop.
func (f *Frameship) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

func (f *Frameship) report() health.Report {
	st := f.lifecycle.State()
	r := health.Report{
		State:   st.String(),
		Since:   f.lifecycle.Since(),
		Healthy: st == app.StateRunning,
	}
	if s, ok := f.Snapshot(); ok {
		r.Controller = &s
	}
	return r
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
