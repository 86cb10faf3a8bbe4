package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the frameship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("frameship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("frameship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("frameship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("frameship: invalid configuration")
)

// Cycle errors. Each one maps to exactly one failure counter, except
// ErrAckTimeout which is informational only.
var (
	// ErrCapture means the peripheral returned no buffer or an invalid one.
	ErrCapture = errors.New("capture failed")

	// ErrConnect means no transport connection could be established in time.
	ErrConnect = errors.New("connect failed")

	// ErrAckTimeout means no acknowledgment line arrived after a complete write.
	ErrAckTimeout = errors.New("acknowledgment timeout")

	// ErrReinitialize means a subsystem reinitialization did not complete.
	ErrReinitialize = errors.New("reinitialize failed")

	// ErrRestartRequired is returned by the controller after it has decided
	// the device must restart. It is the only error that leaves the loop.
	ErrRestartRequired = errors.New("device restart required")

	// ErrLinkResetUnsupported is returned by link monitors without a soft
	// reset primitive.
	ErrLinkResetUnsupported = errors.New("link reset not supported")
)

// PartialSendError reports a transfer that opened but did not write every
// byte before its deadline or before the connection failed.
type PartialSendError struct {
	Written int
	Total   int
	Err     error
}

func (e *PartialSendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("partial send: wrote %d of %d bytes: %v", e.Written, e.Total, e.Err)
	}
	return fmt.Sprintf("partial send: wrote %d of %d bytes", e.Written, e.Total)
}

func (e *PartialSendError) Unwrap() error { return e.Err }
