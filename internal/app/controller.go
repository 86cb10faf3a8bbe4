package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/ports"
	"github.com/bft-labs/frameship/internal/recovery"
)

// DefaultTickInterval is how often the controller wakes up.
const DefaultTickInterval = 100 * time.Millisecond

// CycleState is where the controller is within a cycle.
type CycleState int

const (
	Idle CycleState = iota
	Capturing
	Sending
	Recovering
)

// String returns a human-readable representation of the cycle state.
func (s CycleState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case Sending:
		return "Sending"
	case Recovering:
		return "Recovering"
	default:
		return "Unknown"
	}
}

// Skip says why a tick ended without sending.
type Skip int

const (
	SkipNone Skip = iota
	SkipLinkDown
	SkipFrameInterval
	SkipCaptureFailed
	SkipConnectSpacing
)

// String returns a human-readable representation of the skip reason.
func (s Skip) String() string {
	switch s {
	case SkipNone:
		return "none"
	case SkipLinkDown:
		return "link_down"
	case SkipFrameInterval:
		return "frame_interval"
	case SkipCaptureFailed:
		return "capture_failed"
	case SkipConnectSpacing:
		return "connect_spacing"
	default:
		return "unknown"
	}
}

// ControllerConfig contains configuration for the delivery controller.
type ControllerConfig struct {
	DeviceID         string
	Tunables         domain.Tunables
	TickInterval     time.Duration
	RegisterInterval time.Duration
	// LinkRecovery lets send failures reset the link instead of the camera.
	// It only takes effect when the link monitor implements ports.LinkResetter.
	LinkRecovery bool
}

// ControllerDeps are the collaborators a controller drives. Housekeeper,
// Restarter and Events may be nil.
type ControllerDeps struct {
	Source      ports.FrameSource
	Link        ports.LinkMonitor
	Transport   ports.Transport
	Housekeeper ports.Housekeeper
	Restarter   ports.Restarter
	Logger      ports.Logger
	Clock       Clock
	Events      CycleEventEmitter
}

// TickResult summarizes one cycle.
type TickResult struct {
	LinkUp   bool
	Skip     Skip
	Captured bool
	// Delivery is set when a send was attempted.
	Delivery   *domain.Delivery
	CaptureErr error
	Decision   recovery.Decision
	// RecoveryErr is set when the decided action did not complete.
	RecoveryErr error
	Counters    domain.Counters
}

// Totals are cumulative counts since the controller was created.
type Totals struct {
	Cycles        uint64 `json:"cycles"`
	Captures      uint64 `json:"captures"`
	CaptureErrors uint64 `json:"capture_errors"`
	Delivered     uint64 `json:"delivered"`
	PartialSends  uint64 `json:"partial_sends"`
	ConnectErrors uint64 `json:"connect_errors"`
	BytesSent     uint64 `json:"bytes_sent"`
	Recoveries    uint64 `json:"recoveries"`
}

// Snapshot is a point-in-time copy of controller state.
type Snapshot struct {
	DeviceID       string            `json:"device_id"`
	State          string            `json:"state"`
	Registered     bool              `json:"registered"`
	Counters       domain.Counters   `json:"counters"`
	ReinitFailures int               `json:"reinit_failures"`
	Totals         Totals            `json:"totals"`
	Clock          domain.CycleClock `json:"clock"`
	LastOutcome    string            `json:"last_outcome,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
}

// Controller sequences capture and delivery and drives recovery.
// Tick and Run must be called from a single goroutine; Snapshot and
// UpdateTunables are safe to call concurrently.
type Controller struct {
	cfg       ControllerConfig
	source    ports.FrameSource
	link      ports.LinkMonitor
	transport ports.Transport
	house     ports.Housekeeper
	restarter ports.Restarter
	logger    ports.Logger
	clock     Clock
	events    CycleEventEmitter
	tunables  chan domain.Tunables

	mu             sync.Mutex
	state          CycleState
	counters       domain.Counters
	reinitFailures int
	cycle          domain.CycleClock
	registered     bool
	totals         Totals
	lastOutcome    string
	lastErr        error
}

// NewController creates a controller. The periodic reset timer starts now.
func NewController(cfg ControllerConfig, deps ControllerDeps) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	c := &Controller{
		cfg:       cfg,
		source:    deps.Source,
		link:      deps.Link,
		transport: deps.Transport,
		house:     deps.Housekeeper,
		restarter: deps.Restarter,
		logger:    deps.Logger,
		clock:     deps.Clock,
		events:    deps.Events,
		tunables:  make(chan domain.Tunables, 1),
	}
	c.cycle.LastReset = c.clock.Now()
	if tt, ok := c.transport.(ports.TunableTransport); ok {
		tt.Configure(cfg.Tunables.Transport)
	}
	return c
}

// Run ticks until ctx is done or a restart is required. New tunables are
// applied between ticks.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	defer c.transport.Close()

	for {
		if _, err := c.Tick(ctx); err != nil {
			return err
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case t := <-c.tunables:
				c.applyTunables(t)
			case <-ticker.C:
				break wait
			}
		}
	}
}

// UpdateTunables queues t for the next gap between ticks. A pending update
// that has not been applied yet is replaced.
func (c *Controller) UpdateTunables(t domain.Tunables) {
	for {
		select {
		case c.tunables <- t:
			return
		default:
		}
		select {
		case <-c.tunables:
		default:
		}
	}
}

func (c *Controller) applyTunables(t domain.Tunables) {
	c.cfg.Tunables = t
	if tt, ok := c.transport.(ports.TunableTransport); ok {
		tt.Configure(t.Transport)
	}
	c.logger.Info("tunables applied",
		ports.Duration("frame_interval", t.FrameInterval),
		ports.Int("max_failures", t.MaxFailures),
		ports.Duration("reset_interval", t.ResetInterval),
		ports.Int("chunk_size", t.Transport.ChunkSize),
	)
}

// Tick runs one cycle. The only error it returns is ErrRestartRequired.
func (c *Controller) Tick(ctx context.Context) (TickResult, error) {
	now := c.clock.Now()
	if c.house != nil {
		c.house.Service()
	}
	c.maintainLease(ctx, now)

	var res TickResult
	if !c.link.IsUp() {
		c.setState(Idle)
		res.Skip = SkipLinkDown
		return c.finish(res), nil
	}
	res.LinkUp = true
	c.maybeRegister(ctx, now)

	if !domain.Due(now, c.cycle.LastCapture, c.cfg.Tunables.FrameInterval) {
		res.Skip = SkipFrameInterval
		return c.evaluate(ctx, now, res)
	}

	c.setState(Capturing)
	c.mu.Lock()
	c.cycle.LastCapture = now
	c.mu.Unlock()

	frame, err := c.source.Capture(ctx)
	if err == nil && frame == nil {
		err = domain.ErrCapture
	}
	if err != nil {
		c.mu.Lock()
		c.counters.CaptureFailed()
		c.totals.CaptureErrors++
		c.lastErr = err
		counters := c.counters
		c.mu.Unlock()

		c.logger.Warn("capture failed",
			ports.Err(err),
			ports.Int("capture_failures", counters.CaptureFailures),
			ports.Int("send_failures", counters.SendFailures),
		)
		res.Skip = SkipCaptureFailed
		res.CaptureErr = err
		return c.evaluate(ctx, now, res)
	}
	defer frame.Release()

	res.Captured = true
	c.mu.Lock()
	c.counters.CaptureSucceeded()
	c.totals.Captures++
	c.mu.Unlock()

	if !domain.Due(now, c.cycle.LastConnectAttempt, c.cfg.Tunables.ConnectSpacing) {
		frame.Release()
		res.Skip = SkipConnectSpacing
		return c.evaluate(ctx, now, res)
	}

	c.setState(Sending)
	c.mu.Lock()
	c.cycle.LastConnectAttempt = now
	c.mu.Unlock()

	d := c.transport.SendFrame(ctx, c.cfg.DeviceID, frame)
	frame.Release()
	res.Delivery = &d
	c.recordDelivery(d)

	return c.evaluate(ctx, now, res)
}

func (c *Controller) recordDelivery(d domain.Delivery) {
	c.mu.Lock()
	switch d.Outcome {
	case domain.Delivered:
		c.counters.SendSucceeded()
		// A healthy cycle breaks any run of failed reinitializations.
		c.reinitFailures = 0
		c.totals.Delivered++
	case domain.PartialSend:
		c.counters.SendFailed()
		c.totals.PartialSends++
	default:
		c.counters.SendFailed()
		c.totals.ConnectErrors++
	}
	c.totals.BytesSent += uint64(d.Written)
	c.lastOutcome = d.Outcome.String()
	if d.Err != nil {
		c.lastErr = d.Err
	}
	counters := c.counters
	c.mu.Unlock()

	if d.Failed() {
		c.logger.Warn("send failed",
			ports.String("outcome", d.Outcome.String()),
			ports.Int("written", d.Written),
			ports.Int("total", d.Total),
			ports.Err(d.Err),
			ports.Int("capture_failures", counters.CaptureFailures),
			ports.Int("send_failures", counters.SendFailures),
		)
		return
	}
	if !d.Acked {
		c.logger.Debug("frame delivered without acknowledgment",
			ports.Int("bytes", d.Written),
			ports.Duration("duration", d.Duration),
		)
		return
	}
	c.logger.Debug("frame delivered",
		ports.Int("bytes", d.Written),
		ports.Duration("duration", d.Duration),
	)
}

func (c *Controller) thresholds() recovery.Thresholds {
	_, canReset := c.link.(ports.LinkResetter)
	return recovery.Thresholds{
		MaxFailures:       c.cfg.Tunables.MaxFailures,
		MaxReinitFailures: c.cfg.Tunables.MaxReinitFailures,
		PeriodicReset:     c.cfg.Tunables.ResetInterval,
		LinkRecovery:      c.cfg.LinkRecovery && canReset,
	}
}

func (c *Controller) decide(now time.Time) recovery.Decision {
	c.mu.Lock()
	in := recovery.Input{
		CaptureFailures: c.counters.CaptureFailures,
		SendFailures:    c.counters.SendFailures,
		ReinitFailures:  c.reinitFailures,
		SinceLastReset:  now.Sub(c.cycle.LastReset),
	}
	c.mu.Unlock()
	return recovery.Decide(in, c.thresholds())
}

// evaluate consults the policy with the counters already updated for this
// cycle and carries out its decision.
func (c *Controller) evaluate(ctx context.Context, now time.Time, res TickResult) (TickResult, error) {
	dec := c.decide(now)
	res.Decision = dec
	if !dec.Escalates() {
		c.setState(Idle)
		return c.finish(res), nil
	}

	err := c.recover(ctx, now, dec)
	res.RecoveryErr = err
	if errors.Is(err, domain.ErrRestartRequired) {
		return c.finish(res), err
	}

	if err != nil {
		// A failed reinitialize may have crossed the fatal threshold.
		if next := c.decide(now); next.Action == domain.RestartDevice {
			res.Decision = next
			res.RecoveryErr = c.recover(ctx, now, next)
			return c.finish(res), res.RecoveryErr
		}
	}

	c.setState(Idle)
	return c.finish(res), nil
}

func (c *Controller) recover(ctx context.Context, now time.Time, dec recovery.Decision) error {
	c.setState(Recovering)

	c.mu.Lock()
	before := c.counters
	reinitFailures := c.reinitFailures
	c.totals.Recoveries++
	c.mu.Unlock()

	c.logger.Warn("recovery",
		ports.String("action", dec.Action.String()),
		ports.String("reason", dec.Reason.String()),
		ports.Int("capture_failures", before.CaptureFailures),
		ports.Int("send_failures", before.SendFailures),
		ports.Int("reinit_failures", reinitFailures),
	)

	var err error
	switch dec.Action {
	case domain.ReinitCamera:
		err = c.reinitCamera(ctx, now, dec.Reason)
	case domain.ReinitLink:
		err = c.reinitLink(ctx, now)
	case domain.RestartDevice:
		err = c.restart(ctx, dec.Reason)
	}

	if c.events != nil {
		c.events.OnRecovery(RecoveryEvent{
			Decision:       dec,
			Counters:       before,
			ReinitFailures: reinitFailures,
			Err:            err,
		})
	}
	return err
}

func (c *Controller) reinitCamera(ctx context.Context, now time.Time, reason domain.Reason) error {
	if err := c.source.Reinitialize(ctx); err != nil {
		c.reinitFailed(err)
		return err
	}

	c.mu.Lock()
	c.reinitFailures = 0
	c.cycle.LastReset = now
	if reason != domain.ReasonPeriodic {
		c.counters.Reset()
	}
	c.mu.Unlock()

	c.logger.Info("camera reinitialized", ports.String("reason", reason.String()))
	return nil
}

func (c *Controller) reinitLink(ctx context.Context, now time.Time) error {
	resetter, ok := c.link.(ports.LinkResetter)
	if !ok {
		return c.reinitCamera(ctx, now, domain.ReasonSendFailures)
	}

	if err := c.transport.Close(); err != nil {
		c.logger.Debug("close transport", ports.Err(err))
	}
	if err := resetter.ResetLink(ctx); err != nil {
		if errors.Is(err, domain.ErrLinkResetUnsupported) {
			return c.reinitCamera(ctx, now, domain.ReasonSendFailures)
		}
		c.reinitFailed(err)
		return err
	}

	c.mu.Lock()
	c.reinitFailures = 0
	c.counters.SendSucceeded()
	c.registered = false
	c.mu.Unlock()

	c.logger.Info("link reset")
	return nil
}

func (c *Controller) reinitFailed(err error) {
	c.mu.Lock()
	c.reinitFailures++
	n := c.reinitFailures
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Error("reinitialize failed",
		ports.Err(err),
		ports.Int("reinit_failures", n),
	)
}

func (c *Controller) restart(ctx context.Context, reason domain.Reason) error {
	c.logger.Error("device restart required", ports.String("reason", reason.String()))
	if c.restarter != nil {
		if err := c.restarter.Restart(ctx, reason.String()); err != nil {
			c.logger.Error("restart command failed", ports.Err(err))
		}
	}
	return domain.ErrRestartRequired
}

func (c *Controller) maintainLease(ctx context.Context, now time.Time) {
	interval := c.cfg.Tunables.LeaseInterval
	if interval <= 0 || !domain.Due(now, c.cycle.LastLeaseRenewal, interval) {
		return
	}
	c.mu.Lock()
	c.cycle.LastLeaseRenewal = now
	c.mu.Unlock()

	if err := c.link.MaintainLease(ctx); err != nil {
		c.logger.Warn("lease renewal failed", ports.Err(err))
	}
}

func (c *Controller) maybeRegister(ctx context.Context, now time.Time) {
	c.mu.Lock()
	due := !c.registered && domain.Due(now, c.cycle.LastRegister, c.cfg.RegisterInterval)
	if due {
		c.cycle.LastRegister = now
	}
	c.mu.Unlock()
	if !due {
		return
	}

	if err := c.transport.Register(ctx, c.cfg.DeviceID); err != nil {
		c.logger.Warn("registration failed", ports.Err(err), ports.DeviceID(c.cfg.DeviceID))
		return
	}
	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()
	c.logger.Info("device registered", ports.DeviceID(c.cfg.DeviceID))
}

func (c *Controller) setState(s CycleState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) finish(res TickResult) TickResult {
	c.mu.Lock()
	c.totals.Cycles++
	res.Counters = c.counters
	c.mu.Unlock()

	if c.events != nil {
		c.events.OnCycle(res)
	}
	return res
}

// Counters returns the current failure counters.
func (c *Controller) Counters() domain.Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		DeviceID:       c.cfg.DeviceID,
		State:          c.state.String(),
		Registered:     c.registered,
		Counters:       c.counters,
		ReinitFailures: c.reinitFailures,
		Totals:         c.totals,
		Clock:          c.cycle,
		LastOutcome:    c.lastOutcome,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
