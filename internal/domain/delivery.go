package domain

import "time"

// Outcome classifies a single frame delivery attempt.
type Outcome int

const (
	// Delivered means every payload byte was written.
	Delivered Outcome = iota
	// PartialSend means the connection opened but the payload was cut short.
	PartialSend
	// ConnectError means no connection was established before the deadline.
	ConnectError
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "Delivered"
	case PartialSend:
		return "PartialSend"
	case ConnectError:
		return "ConnectError"
	default:
		return "Unknown"
	}
}

// Delivery is what the transport reports back for one frame.
type Delivery struct {
	Outcome  Outcome
	Written  int
	Total    int
	Acked    bool
	Duration time.Duration
	// Err is nil for Delivered.
	Err error
}

// Failed reports whether the delivery counts against the send counter.
func (d Delivery) Failed() bool { return d.Outcome != Delivered }
