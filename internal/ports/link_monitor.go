package ports

import "context"

// LinkMonitor reports the connectivity of the network interface.
// A down link skips the cycle; it is never a transmission failure.
type LinkMonitor interface {
	// IsUp reports the current link state. It has no side effects.
	IsUp() bool

	// MaintainLease keeps the interface healthy (e.g. renews a DHCP lease).
	// It is called periodically regardless of failures.
	MaintainLease(ctx context.Context) error
}

// LinkResetter is implemented by link monitors that can soft-reset the link
// without a device restart. Returns domain.ErrLinkResetUnsupported when the
// primitive is not configured.
type LinkResetter interface {
	ResetLink(ctx context.Context) error
}
