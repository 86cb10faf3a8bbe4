package domain

// Action is a recovery step, ordered from least to most invasive.
type Action int

const (
	Continue Action = iota
	ReinitCamera
	ReinitLink
	RestartDevice
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case Continue:
		return "Continue"
	case ReinitCamera:
		return "ReinitCamera"
	case ReinitLink:
		return "ReinitLink"
	case RestartDevice:
		return "RestartDevice"
	default:
		return "Unknown"
	}
}

// Reason explains why an action was chosen.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonCaptureFailures
	ReasonSendFailures
	ReasonPeriodic
	ReasonReinitFailures
)

// String returns a human-readable representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonCaptureFailures:
		return "capture_failures"
	case ReasonSendFailures:
		return "send_failures"
	case ReasonPeriodic:
		return "periodic"
	case ReasonReinitFailures:
		return "reinit_failures"
	default:
		return "unknown"
	}
}
