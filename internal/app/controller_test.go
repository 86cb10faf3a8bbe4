package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/ports"
)

type harness struct {
	clock     *fakeClock
	source    *fakeSource
	link      *fakeLink
	transport *fakeTransport
	restarter *fakeRestarter
	house     *fakeHousekeeper
	events    *recordingEvents
	ctrl      *Controller
}

func defaultTunables() domain.Tunables {
	return domain.Tunables{
		FrameInterval: time.Second,
		MaxFailures:   3,
	}
}

func newHarness(t *testing.T, tun domain.Tunables) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(),
		link:      &fakeLink{up: true},
		transport: &fakeTransport{},
		restarter: &fakeRestarter{},
		house:     &fakeHousekeeper{},
		events:    &recordingEvents{},
	}
	h.source = &fakeSource{clock: h.clock}
	h.build(ControllerConfig{DeviceID: "cam-1", Tunables: tun}, h.link)
	return h
}

func (h *harness) build(cfg ControllerConfig, link ports.LinkMonitor) {
	h.ctrl = NewController(cfg, ControllerDeps{
		Source:      h.source,
		Link:        link,
		Transport:   h.transport,
		Housekeeper: h.house,
		Restarter:   h.restarter,
		Logger:      &mockLogger{},
		Clock:       h.clock,
		Events:      h.events,
	})
}

func (h *harness) tick(t *testing.T) TickResult {
	t.Helper()
	res, err := h.ctrl.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	return res
}

func TestTick_DeliversFrame(t *testing.T) {
	h := newHarness(t, defaultTunables())

	res := h.tick(t)

	if !res.Captured || res.Delivery == nil || res.Delivery.Outcome != domain.Delivered {
		t.Fatalf("Tick() = %+v, want a delivered frame", res)
	}
	if len(h.transport.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(h.transport.sent))
	}
	if h.transport.releasedAtRet[0] {
		t.Error("frame released before the transport finished with it")
	}
	if !h.source.frames[0].Released() {
		t.Error("frame not released after delivery")
	}
	if h.transport.registers != 1 {
		t.Errorf("registers = %d, want 1", h.transport.registers)
	}
	if h.house.calls != 1 {
		t.Errorf("housekeeper calls = %d, want 1", h.house.calls)
	}
	if snap := h.ctrl.Snapshot(); snap.Totals.Delivered != 1 || snap.Totals.BytesSent != 1000 || snap.State != "Idle" {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestTick_ReleasesFrameOnEveryPath(t *testing.T) {
	tun := defaultTunables()
	tun.MaxFailures = 100
	h := newHarness(t, tun)
	h.transport.outcomes = []domain.Outcome{domain.Delivered, domain.PartialSend, domain.ConnectError}

	for i := 0; i < 3; i++ {
		h.tick(t)
		h.clock.Advance(time.Second)
	}

	// Connect spacing skip: the frame is captured but never sent.
	h.ctrl.cfg.Tunables.ConnectSpacing = time.Hour
	res := h.tick(t)
	if res.Skip != SkipConnectSpacing {
		t.Fatalf("Skip = %v, want connect_spacing", res.Skip)
	}

	if len(h.source.frames) != 4 {
		t.Fatalf("frames = %d, want 4", len(h.source.frames))
	}
	for i, f := range h.source.frames {
		if !f.Released() {
			t.Errorf("frame %d not released", i)
		}
		if f.Release() {
			t.Errorf("frame %d released more than once", i)
		}
	}
}

func TestTick_LinkDownSkipsCycle(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.link.up = false

	for i := 0; i < 5; i++ {
		res := h.tick(t)
		if res.Skip != SkipLinkDown {
			t.Fatalf("cycle %d: Skip = %v, want link_down", i, res.Skip)
		}
		h.clock.Advance(time.Second)
	}

	if len(h.source.captures) != 0 {
		t.Fatalf("captures while link down = %d, want 0", len(h.source.captures))
	}
	if c := h.ctrl.Counters(); c != (domain.Counters{}) {
		t.Fatalf("counters while link down = %+v, want zero", c)
	}
	if h.transport.registers != 0 {
		t.Errorf("registered while link down")
	}

	h.link.up = true
	res := h.tick(t)
	if res.Delivery == nil || res.Delivery.Outcome != domain.Delivered {
		t.Fatalf("after link up: %+v, want delivered", res)
	}
}

func TestTick_CaptureThresholdReinitializesCamera(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.source.captureErrs = []error{errNoBuffer, errNoBuffer, errNoBuffer}

	for i := 0; i < 2; i++ {
		res := h.tick(t)
		if res.Decision.Action != domain.Continue {
			t.Fatalf("cycle %d: action = %v, want Continue", i, res.Decision.Action)
		}
		h.clock.Advance(time.Second)
	}

	res := h.tick(t)
	if res.Decision.Action != domain.ReinitCamera {
		t.Fatalf("third failure: action = %v, want ReinitCamera", res.Decision.Action)
	}
	if h.source.reinitCalls != 1 {
		t.Fatalf("reinit calls = %d, want 1", h.source.reinitCalls)
	}
	if res.Counters.CaptureFailures != 0 {
		t.Errorf("capture failures after reinit = %d, want 0", res.Counters.CaptureFailures)
	}
	if len(h.transport.sent) != 0 {
		t.Errorf("sent %d frames after capture errors", len(h.transport.sent))
	}

	h.clock.Advance(time.Second)
	res = h.tick(t)
	if res.Delivery == nil || res.Delivery.Outcome != domain.Delivered {
		t.Fatalf("after reinit: %+v, want delivered", res)
	}
	if h.source.reinitCalls != 1 {
		t.Errorf("reinit calls = %d, want 1", h.source.reinitCalls)
	}
	if len(h.events.recoveries) != 1 {
		t.Errorf("recovery events = %d, want 1", len(h.events.recoveries))
	}
}

func TestTick_CaptureThresholdWinsOverSendFailures(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.transport.outcomes = []domain.Outcome{domain.ConnectError, domain.ConnectError}
	h.source.captureErrs = []error{nil, nil, errNoBuffer, errNoBuffer, errNoBuffer}

	var res TickResult
	for i := 0; i < 5; i++ {
		res = h.tick(t)
		h.clock.Advance(time.Second)
	}
	if res.Decision.Action != domain.ReinitCamera || res.Decision.Reason != domain.ReasonCaptureFailures {
		t.Fatalf("decision = %v/%v, want ReinitCamera/capture_failures", res.Decision.Action, res.Decision.Reason)
	}
}

func TestTick_SendFailuresResetAfterDelivered(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.transport.outcomes = []domain.Outcome{domain.ConnectError, domain.PartialSend, domain.Delivered}

	want := []int{1, 2, 0}
	for i, w := range want {
		res := h.tick(t)
		if res.Counters.SendFailures != w {
			t.Fatalf("cycle %d: send failures = %d, want %d", i, res.Counters.SendFailures, w)
		}
		h.clock.Advance(time.Second)
	}
}

func TestTick_PartialSendCountsAsFailure(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.transport.outcomes = []domain.Outcome{domain.PartialSend}

	res := h.tick(t)

	if res.Delivery.Outcome != domain.PartialSend || res.Delivery.Written != 400 || res.Delivery.Total != 1000 {
		t.Fatalf("delivery = %+v, want PartialSend 400/1000", res.Delivery)
	}
	var pe *domain.PartialSendError
	if !errors.As(res.Delivery.Err, &pe) {
		t.Errorf("delivery error %v is not a PartialSendError", res.Delivery.Err)
	}
	if res.Counters.SendFailures != 1 {
		t.Errorf("send failures = %d, want 1", res.Counters.SendFailures)
	}
	if !h.source.frames[0].Released() {
		t.Error("frame not released after partial send")
	}
	if snap := h.ctrl.Snapshot(); snap.Totals.PartialSends != 1 || snap.LastOutcome != "PartialSend" {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestTick_MinimumFrameSpacing(t *testing.T) {
	h := newHarness(t, defaultTunables())

	steps := []time.Duration{
		100 * time.Millisecond, 300 * time.Millisecond, 999 * time.Millisecond,
		time.Millisecond, 2 * time.Second, 250 * time.Millisecond, 750 * time.Millisecond,
		10 * time.Millisecond, 990 * time.Millisecond, 5 * time.Millisecond,
	}
	for i := 0; i < 200; i++ {
		h.tick(t)
		h.clock.Advance(steps[i%len(steps)])
	}

	if len(h.source.captures) < 2 {
		t.Fatalf("captures = %d, want several", len(h.source.captures))
	}
	for i := 1; i < len(h.source.captures); i++ {
		gap := h.source.captures[i].Sub(h.source.captures[i-1])
		if gap < time.Second {
			t.Fatalf("captures %d and %d are %v apart, want >= 1s", i-1, i, gap)
		}
	}
}

func TestTick_ConnectSpacingReleasesUnsentFrame(t *testing.T) {
	tun := defaultTunables()
	tun.FrameInterval = 0
	tun.ConnectSpacing = time.Second
	h := newHarness(t, tun)

	h.tick(t)
	h.clock.Advance(500 * time.Millisecond)
	res := h.tick(t)

	if res.Skip != SkipConnectSpacing || !res.Captured {
		t.Fatalf("Tick() = %+v, want a captured frame skipped for spacing", res)
	}
	if len(h.transport.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(h.transport.sent))
	}
	if !h.source.frames[1].Released() {
		t.Error("unsent frame not released")
	}

	h.clock.Advance(500 * time.Millisecond)
	h.tick(t)
	if len(h.transport.sent) != 2 {
		t.Errorf("sent = %d after spacing elapsed, want 2", len(h.transport.sent))
	}
}

func TestTick_PeriodicResetWithoutFailures(t *testing.T) {
	tun := defaultTunables()
	tun.ResetInterval = time.Hour
	h := newHarness(t, tun)

	h.tick(t)
	if h.source.reinitCalls != 0 {
		t.Fatalf("reinit before interval elapsed")
	}

	h.clock.Advance(time.Hour)
	res := h.tick(t)
	if res.Decision.Action != domain.ReinitCamera || res.Decision.Reason != domain.ReasonPeriodic {
		t.Fatalf("decision = %v/%v, want ReinitCamera/periodic", res.Decision.Action, res.Decision.Reason)
	}
	if h.source.reinitCalls != 1 {
		t.Fatalf("reinit calls = %d, want 1", h.source.reinitCalls)
	}
	if res.Counters != (domain.Counters{}) {
		t.Errorf("counters = %+v, want zero", res.Counters)
	}

	h.clock.Advance(time.Second)
	h.tick(t)
	if h.source.reinitCalls != 1 {
		t.Errorf("reinit calls = %d after timer restart, want 1", h.source.reinitCalls)
	}
}

func TestTick_PeriodicResetLeavesCountersUntouched(t *testing.T) {
	tun := defaultTunables()
	tun.ResetInterval = time.Hour
	h := newHarness(t, tun)
	h.source.captureErrs = []error{errNoBuffer, errNoBuffer}

	h.tick(t)
	h.clock.Advance(time.Hour)
	res := h.tick(t)

	if res.Decision.Reason != domain.ReasonPeriodic {
		t.Fatalf("reason = %v, want periodic", res.Decision.Reason)
	}
	if res.Counters.CaptureFailures != 2 {
		t.Errorf("capture failures = %d, want 2", res.Counters.CaptureFailures)
	}
}

func TestTick_RepeatedReinitFailureRestarts(t *testing.T) {
	tun := defaultTunables()
	tun.MaxFailures = 1
	h := newHarness(t, tun)
	h.source.captureErrs = []error{errNoBuffer, errNoBuffer}
	h.source.reinitErrs = []error{domain.ErrReinitialize, domain.ErrReinitialize}

	res, err := h.ctrl.Tick(context.Background())
	if err != nil {
		t.Fatalf("first failed reinit escalated: %v", err)
	}
	if res.RecoveryErr == nil {
		t.Error("RecoveryErr = nil after failed reinit")
	}
	if h.restarter.calls != 0 {
		t.Fatalf("restarted after one failed reinit")
	}

	h.clock.Advance(time.Second)
	res, err = h.ctrl.Tick(context.Background())
	if !errors.Is(err, domain.ErrRestartRequired) {
		t.Fatalf("Tick() error = %v, want ErrRestartRequired", err)
	}
	if res.Decision.Action != domain.RestartDevice {
		t.Errorf("action = %v, want RestartDevice", res.Decision.Action)
	}
	if h.restarter.calls != 1 {
		t.Errorf("restarter calls = %d, want 1", h.restarter.calls)
	}
	if h.source.reinitCalls != 2 {
		t.Errorf("reinit calls = %d, want 2", h.source.reinitCalls)
	}
}

func TestTick_ReinitSuccessClearsReinitFailures(t *testing.T) {
	tun := defaultTunables()
	tun.MaxFailures = 1
	h := newHarness(t, tun)
	h.source.captureErrs = []error{errNoBuffer, errNoBuffer, errNoBuffer}
	h.source.reinitErrs = []error{domain.ErrReinitialize, nil, domain.ErrReinitialize}

	for i := 0; i < 3; i++ {
		if _, err := h.ctrl.Tick(context.Background()); err != nil {
			t.Fatalf("cycle %d: Tick() error = %v", i, err)
		}
		h.clock.Advance(time.Second)
	}
	if h.restarter.calls != 0 {
		t.Errorf("restarted although failures were not consecutive")
	}
}

func TestTick_DeliveredCyclesBreakReinitFailureRun(t *testing.T) {
	tun := defaultTunables()
	tun.MaxFailures = 1
	h := newHarness(t, tun)

	const healthy = 100
	h.source.captureErrs = append([]error{errNoBuffer}, make([]error, healthy)...)
	h.source.captureErrs = append(h.source.captureErrs, errNoBuffer)
	h.source.reinitErrs = []error{domain.ErrReinitialize, domain.ErrReinitialize}

	for i := 0; i < healthy+2; i++ {
		if _, err := h.ctrl.Tick(context.Background()); err != nil {
			t.Fatalf("cycle %d: Tick() error = %v", i, err)
		}
		h.clock.Advance(time.Second)
	}
	if h.restarter.calls != 0 {
		t.Errorf("restarted after reinit failures separated by %d delivered cycles", healthy)
	}
	if h.source.reinitCalls != 2 {
		t.Errorf("reinit calls = %d, want 2", h.source.reinitCalls)
	}
	if got := len(h.transport.sent); got != healthy {
		t.Errorf("delivered %d frames, want %d", got, healthy)
	}
	if got := h.ctrl.Snapshot().ReinitFailures; got != 1 {
		t.Errorf("ReinitFailures = %d, want 1", got)
	}
}

func TestTick_SendFailuresResetLink(t *testing.T) {
	h := newHarness(t, defaultTunables())
	link := &resettableLink{fakeLink: fakeLink{up: true}}
	h.build(ControllerConfig{DeviceID: "cam-1", Tunables: defaultTunables(), LinkRecovery: true}, link)
	h.transport.outcomes = []domain.Outcome{domain.ConnectError, domain.ConnectError, domain.ConnectError}

	var res TickResult
	for i := 0; i < 3; i++ {
		res = h.tick(t)
		h.clock.Advance(time.Second)
	}

	if res.Decision.Action != domain.ReinitLink {
		t.Fatalf("action = %v, want ReinitLink", res.Decision.Action)
	}
	if link.resetCalls != 1 {
		t.Errorf("reset calls = %d, want 1", link.resetCalls)
	}
	if h.transport.closes != 1 {
		t.Errorf("transport closes = %d, want 1", h.transport.closes)
	}
	if res.Counters.SendFailures != 0 {
		t.Errorf("send failures = %d, want 0", res.Counters.SendFailures)
	}
	if h.source.reinitCalls != 0 {
		t.Errorf("camera reinitialized on link recovery")
	}
}

func TestTick_SendFailuresWithoutLinkRecoveryReinitCamera(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.transport.outcomes = []domain.Outcome{domain.ConnectError, domain.ConnectError, domain.ConnectError}

	var res TickResult
	for i := 0; i < 3; i++ {
		res = h.tick(t)
		h.clock.Advance(time.Second)
	}

	if res.Decision.Action != domain.ReinitCamera || res.Decision.Reason != domain.ReasonSendFailures {
		t.Fatalf("decision = %v/%v, want ReinitCamera/send_failures", res.Decision.Action, res.Decision.Reason)
	}
	if res.Counters.SendFailures != 0 {
		t.Errorf("send failures = %d, want 0", res.Counters.SendFailures)
	}
}

func TestTick_RegistrationRetriedUntilAccepted(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.ctrl.cfg.RegisterInterval = 10 * time.Second
	h.transport.registerErr = errors.New("refused")

	h.tick(t)
	h.clock.Advance(5 * time.Second)
	h.tick(t)
	if h.transport.registers != 1 {
		t.Fatalf("registers = %d before interval, want 1", h.transport.registers)
	}
	if len(h.transport.sent) != 2 {
		t.Errorf("failed registration blocked uploads")
	}

	h.transport.registerErr = nil
	h.clock.Advance(5 * time.Second)
	h.tick(t)
	if h.transport.registers != 2 {
		t.Fatalf("registers = %d, want 2", h.transport.registers)
	}

	h.clock.Advance(time.Minute)
	h.tick(t)
	if h.transport.registers != 2 {
		t.Errorf("registered again after success")
	}
	if !h.ctrl.Snapshot().Registered {
		t.Error("Snapshot().Registered = false")
	}
}

func TestTick_LeaseRenewedRegardlessOfLink(t *testing.T) {
	tun := defaultTunables()
	tun.LeaseInterval = time.Minute
	h := newHarness(t, tun)
	h.link.up = false

	for i := 0; i < 10; i++ {
		h.tick(t)
		h.clock.Advance(30 * time.Second)
	}
	if h.link.leaseCalls != 5 {
		t.Errorf("lease calls = %d, want 5", h.link.leaseCalls)
	}
}

func TestTick_NilFrameIsCaptureError(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.ctrl.source = nilFrameSource{}

	res := h.tick(t)
	if !errors.Is(res.CaptureErr, domain.ErrCapture) {
		t.Errorf("CaptureErr = %v, want ErrCapture", res.CaptureErr)
	}
}

type nilFrameSource struct{}

func (nilFrameSource) Capture(ctx context.Context) (*domain.Frame, error) { return nil, nil }
func (nilFrameSource) Reinitialize(ctx context.Context) error             { return nil }
func (nilFrameSource) Close() error                                       { return nil }

func TestRun_AppliesTunablesAndStops(t *testing.T) {
	h := newHarness(t, defaultTunables())
	h.ctrl.cfg.TickInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx) }()

	next := defaultTunables()
	next.Transport.ChunkSize = 512
	h.ctrl.UpdateTunables(next)

	deadline := time.After(2 * time.Second)
	for {
		cfgs := h.transport.Configured()
		if len(cfgs) >= 2 && cfgs[len(cfgs)-1].ChunkSize == 512 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("tunables not applied")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_ReturnsRestartRequired(t *testing.T) {
	tun := defaultTunables()
	tun.MaxFailures = 1
	tun.MaxReinitFailures = 1
	h := newHarness(t, tun)
	h.ctrl.cfg.TickInterval = time.Millisecond
	h.source.captureErrs = []error{errNoBuffer}
	h.source.reinitErrs = []error{domain.ErrReinitialize}

	err := h.ctrl.Run(context.Background())
	if !errors.Is(err, domain.ErrRestartRequired) {
		t.Fatalf("Run() = %v, want ErrRestartRequired", err)
	}
	if h.transport.closes == 0 {
		t.Error("transport not closed on exit")
	}
}
