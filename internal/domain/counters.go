package domain

import "time"

// Counters tracks consecutive failures. A success resets only its own counter.
type Counters struct {
	CaptureFailures int `json:"capture_failures"`
	SendFailures    int `json:"send_failures"`
}

// CaptureFailed records a failed capture.
func (c *Counters) CaptureFailed() { c.CaptureFailures++ }

// CaptureSucceeded resets the capture counter.
func (c *Counters) CaptureSucceeded() { c.CaptureFailures = 0 }

// SendFailed records a failed delivery.
func (c *Counters) SendFailed() { c.SendFailures++ }

// SendSucceeded resets the send counter.
func (c *Counters) SendSucceeded() { c.SendFailures = 0 }

// Reset clears both counters.
func (c *Counters) Reset() { *c = Counters{} }

// CycleClock holds the timestamps used for spacing and maintenance.
// Zero values mean "never", so the first check is always due.
type CycleClock struct {
	LastCapture        time.Time `json:"last_capture"`
	LastConnectAttempt time.Time `json:"last_connect_attempt"`
	LastReset          time.Time `json:"last_reset"`
	LastLeaseRenewal   time.Time `json:"last_lease_renewal"`
	LastRegister       time.Time `json:"last_register"`
}

// Due reports whether at least interval has passed since last.
func Due(now, last time.Time, interval time.Duration) bool {
	if last.IsZero() || interval <= 0 {
		return true
	}
	return now.Sub(last) >= interval
}
