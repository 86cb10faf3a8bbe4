package frameship_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/pkg/frameship"
)

var testJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 1, 0xFF, 0xD9}

// testLogger captures log messages.
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, fields ...frameship.LogField) { l.log("DEBUG", msg) }
func (l *testLogger) Info(msg string, fields ...frameship.LogField)  { l.log("INFO", msg) }
func (l *testLogger) Warn(msg string, fields ...frameship.LogField)  { l.log("WARN", msg) }
func (l *testLogger) Error(msg string, fields ...frameship.LogField) { l.log("ERROR", msg) }

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("[%s] %s", level, msg))
}

func (l *testLogger) Contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == msg {
			return true
		}
	}
	return false
}

// fakeCamera hands out frames and counts releases.
type fakeCamera struct {
	captureErr error
	reinitErr  error

	captures atomic.Int64
	released atomic.Int64
	reinits  atomic.Int64
	closed   atomic.Bool
}

func (c *fakeCamera) Capture(ctx context.Context) (*domain.Frame, error) {
	c.captures.Add(1)
	if c.captureErr != nil {
		return nil, c.captureErr
	}
	return domain.NewFrame(testJPEG, time.Now(), func() { c.released.Add(1) }), nil
}

func (c *fakeCamera) Reinitialize(ctx context.Context) error {
	c.reinits.Add(1)
	return c.reinitErr
}

func (c *fakeCamera) Close() error {
	c.closed.Store(true)
	return nil
}

type upLink struct{}

func (upLink) IsUp() bool                              { return true }
func (upLink) MaintainLease(ctx context.Context) error { return nil }

// recordingTransport accepts every frame.
type recordingTransport struct {
	mu         sync.Mutex
	frames     int
	registered []string
}

func (t *recordingTransport) Register(ctx context.Context, deviceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registered = append(t.registered, deviceID)
	return nil
}

func (t *recordingTransport) SendFrame(ctx context.Context, deviceID string, f *domain.Frame) domain.Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames++
	return domain.Delivery{Outcome: domain.Delivered, Written: f.Len(), Total: f.Len(), Acked: true}
}

func (t *recordingTransport) Close() error { return nil }

func (t *recordingTransport) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

type noopHousekeeper struct{}

func (noopHousekeeper) Service() {}

type countingRestarter struct {
	calls atomic.Int64
}

func (r *countingRestarter) Restart(ctx context.Context, reason string) error {
	r.calls.Add(1)
	return nil
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	frameship.BasePlugin
	name    string
	order   *[]string
	mu      *sync.Mutex
	initErr error
	cfg     frameship.PluginConfig
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg frameship.PluginConfig) error {
	if p.initErr != nil {
		return p.initErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	*p.order = append(*p.order, "init:"+p.name)
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, "shutdown:"+p.name)
	return nil
}

// eventTracker records lifecycle transitions and cycles.
type eventTracker struct {
	frameship.BaseEventHandler
	mu        sync.Mutex
	states    []frameship.State
	cycles    int
	recovered []frameship.RecoveryEvent
}

func (e *eventTracker) OnStateChange(ev frameship.StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, ev.Current)
}

func (e *eventTracker) OnCycle(ev frameship.CycleEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycles++
}

func (e *eventTracker) OnRecovery(ev frameship.RecoveryEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recovered = append(e.recovered, ev)
}

func (e *eventTracker) States() []frameship.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]frameship.State(nil), e.states...)
}

func testConfig(t *testing.T) frameship.Config {
	t.Helper()
	cfg := frameship.DefaultConfig()
	cfg.DeviceID = "cam-test"
	cfg.StateDir = t.TempDir()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.FrameInterval = 5 * time.Millisecond
	cfg.ConnectSpacing = 0
	cfg.RegisterInterval = time.Second
	return cfg
}

type harness struct {
	camera    *fakeCamera
	transport *recordingTransport
	restarter *countingRestarter
	logger    *testLogger
}

func newHarness() *harness {
	return &harness{
		camera:    &fakeCamera{},
		transport: &recordingTransport{},
		restarter: &countingRestarter{},
		logger:    &testLogger{},
	}
}

func (h *harness) options(extra ...frameship.Option) []frameship.Option {
	return append([]frameship.Option{
		frameship.WithFrameSource(h.camera),
		frameship.WithLinkMonitor(upLink{}),
		frameship.WithTransport(h.transport),
		frameship.WithHousekeeper(noopHousekeeper{}),
		frameship.WithRestarter(h.restarter),
		frameship.WithLogger(h.logger),
	}, extra...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errBoom = errors.New("boom")
