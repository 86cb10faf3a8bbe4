package frameship

import (
	"time"

	"github.com/bft-labs/frameship/internal/app"
)

// EventHandler receives node notifications. Calls are synchronous.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnCycle(event CycleEvent)
	OnRecovery(event RecoveryEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnCycle(CycleEvent)             {}
func (BaseEventHandler) OnRecovery(RecoveryEvent)       {}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// CycleEvent summarizes one capture and delivery cycle.
type CycleEvent struct {
	LinkUp   bool
	Skipped  string
	Captured bool
	// Outcome is empty when no send was attempted.
	Outcome  string
	Written  int
	Total    int
	Acked    bool
	Duration time.Duration
	Err      error

	CaptureFailures int
	SendFailures    int
}

// RecoveryEvent reports a recovery action.
type RecoveryEvent struct {
	Action          string
	Reason          string
	CaptureFailures int
	SendFailures    int
	ReinitFailures  int
	// Err is nil when the action completed.
	Err error
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnCycle(res app.TickResult) {
	if e.handler == nil {
		return
	}
	ev := CycleEvent{
		LinkUp:          res.LinkUp,
		Captured:        res.Captured,
		Err:             res.CaptureErr,
		CaptureFailures: res.Counters.CaptureFailures,
		SendFailures:    res.Counters.SendFailures,
	}
	if res.Skip != app.SkipNone {
		ev.Skipped = res.Skip.String()
	}
	if d := res.Delivery; d != nil {
		ev.Outcome = d.Outcome.String()
		ev.Written = d.Written
		ev.Total = d.Total
		ev.Acked = d.Acked
		ev.Duration = d.Duration
		ev.Err = d.Err
	}
	e.handler.OnCycle(ev)
}

func (e *eventEmitterWrapper) OnRecovery(ev app.RecoveryEvent) {
	if e.handler == nil {
		return
	}
	e.handler.OnRecovery(RecoveryEvent{
		Action:          ev.Decision.Action.String(),
		Reason:          ev.Decision.Reason.String(),
		CaptureFailures: ev.Counters.CaptureFailures,
		SendFailures:    ev.Counters.SendFailures,
		ReinitFailures:  ev.ReinitFailures,
		Err:             ev.Err,
	})
}
