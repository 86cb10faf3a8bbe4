// Package recovery maps failure counts and elapsed time to a recovery action.
//
// Decide is a pure function: the controller owns the counters and passes a
// copy in after updating them for the operation that just completed.
package recovery

import (
	"time"

	"github.com/bft-labs/frameship/internal/domain"
)

// DefaultMaxReinitFailures is the number of consecutive failed
// reinitializations treated as fatal.
const DefaultMaxReinitFailures = 2

// Input is the controller state the policy looks at.
type Input struct {
	CaptureFailures int
	SendFailures    int
	ReinitFailures  int
	SinceLastReset  time.Duration
}

// Thresholds configures the policy.
type Thresholds struct {
	// MaxFailures is the consecutive-failure threshold for either counter.
	MaxFailures int
	// MaxReinitFailures escalates to RestartDevice. Zero means the default.
	MaxReinitFailures int
	// PeriodicReset triggers a preventive camera reinitialize. Zero disables it.
	PeriodicReset time.Duration
	// LinkRecovery selects ReinitLink for send failures when the link monitor
	// can reset the link. Otherwise send failures reinitialize the camera.
	LinkRecovery bool
}

// Decision is the policy output.
type Decision struct {
	Action domain.Action
	Reason domain.Reason
}

// Escalates reports whether the decision requires work from the controller.
func (d Decision) Escalates() bool { return d.Action != domain.Continue }

// Decide returns the least invasive action that addresses the input.
func Decide(in Input, th Thresholds) Decision {
	maxReinit := th.MaxReinitFailures
	if maxReinit <= 0 {
		maxReinit = DefaultMaxReinitFailures
	}
	if in.ReinitFailures >= maxReinit {
		return Decision{Action: domain.RestartDevice, Reason: domain.ReasonReinitFailures}
	}

	if th.MaxFailures > 0 {
		if in.CaptureFailures >= th.MaxFailures {
			return Decision{Action: domain.ReinitCamera, Reason: domain.ReasonCaptureFailures}
		}
		if in.SendFailures >= th.MaxFailures {
			if th.LinkRecovery {
				return Decision{Action: domain.ReinitLink, Reason: domain.ReasonSendFailures}
			}
			return Decision{Action: domain.ReinitCamera, Reason: domain.ReasonSendFailures}
		}
	}

	if th.PeriodicReset > 0 && in.SinceLastReset >= th.PeriodicReset {
		return Decision{Action: domain.ReinitCamera, Reason: domain.ReasonPeriodic}
	}

	return Decision{Action: domain.Continue, Reason: domain.ReasonNone}
}
