package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
)

var errNoBuffer = errors.New("no buffer")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	clock *fakeClock

	// captureErrs is consumed one entry per Capture call; nil entries and an
	// exhausted slice produce a frame.
	captureErrs []error
	reinitErrs  []error

	captures    []time.Time
	frames      []*domain.Frame
	reinitCalls int
}

func (s *fakeSource) Capture(ctx context.Context) (*domain.Frame, error) {
	now := s.clock.Now()
	s.captures = append(s.captures, now)
	if len(s.captureErrs) > 0 {
		err := s.captureErrs[0]
		s.captureErrs = s.captureErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f := domain.NewFrame(make([]byte, 1000), now, func() {})
	s.frames = append(s.frames, f)
	return f, nil
}

func (s *fakeSource) Reinitialize(ctx context.Context) error {
	s.reinitCalls++
	if len(s.reinitErrs) > 0 {
		err := s.reinitErrs[0]
		s.reinitErrs = s.reinitErrs[1:]
		return err
	}
	return nil
}

func (s *fakeSource) Close() error { return nil }

type fakeLink struct {
	up         bool
	leaseCalls int
}

func (l *fakeLink) IsUp() bool { return l.up }

func (l *fakeLink) MaintainLease(ctx context.Context) error {
	l.leaseCalls++
	return nil
}

type resettableLink struct {
	fakeLink
	resetCalls int
	resetErr   error
}

func (l *resettableLink) ResetLink(ctx context.Context) error {
	l.resetCalls++
	return l.resetErr
}

type fakeTransport struct {
	mu sync.Mutex

	// outcomes is consumed one entry per SendFrame; an exhausted slice
	// delivers.
	outcomes    []domain.Outcome
	registerErr error

	sent          []*domain.Frame
	releasedAtRet []bool
	registers     int
	closes        int
	configured    []domain.TransportTunables
}

func (t *fakeTransport) Register(ctx context.Context, deviceID string) error {
	t.registers++
	return t.registerErr
}

func (t *fakeTransport) SendFrame(ctx context.Context, deviceID string, f *domain.Frame) domain.Delivery {
	t.sent = append(t.sent, f)
	t.releasedAtRet = append(t.releasedAtRet, f.Released())

	outcome := domain.Delivered
	if len(t.outcomes) > 0 {
		outcome = t.outcomes[0]
		t.outcomes = t.outcomes[1:]
	}
	switch outcome {
	case domain.PartialSend:
		return domain.Delivery{
			Outcome: domain.PartialSend,
			Written: 400,
			Total:   f.Len(),
			Err:     &domain.PartialSendError{Written: 400, Total: f.Len()},
		}
	case domain.ConnectError:
		return domain.Delivery{Outcome: domain.ConnectError, Total: f.Len(), Err: domain.ErrConnect}
	default:
		return domain.Delivery{Outcome: domain.Delivered, Written: f.Len(), Total: f.Len(), Acked: true}
	}
}

func (t *fakeTransport) Close() error {
	t.closes++
	return nil
}

func (t *fakeTransport) Configure(tt domain.TransportTunables) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.configured = append(t.configured, tt)
}

func (t *fakeTransport) Configured() []domain.TransportTunables {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TransportTunables(nil), t.configured...)
}

type fakeRestarter struct {
	calls   int
	reasons []string
}

func (r *fakeRestarter) Restart(ctx context.Context, reason string) error {
	r.calls++
	r.reasons = append(r.reasons, reason)
	return nil
}

type fakeHousekeeper struct{ calls int }

func (h *fakeHousekeeper) Service() { h.calls++ }

type recordingEvents struct {
	cycles     []TickResult
	recoveries []RecoveryEvent
}

func (e *recordingEvents) OnCycle(r TickResult)        { e.cycles = append(e.cycles, r) }
func (e *recordingEvents) OnRecovery(ev RecoveryEvent) { e.recoveries = append(e.recoveries, ev) }
