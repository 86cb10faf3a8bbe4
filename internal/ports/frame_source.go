package ports

import (
	"context"

	"github.com/bft-labs/frameship/internal/domain"
)

// FrameSource wraps the camera peripheral.
type FrameSource interface {
	// Capture returns one frame or an error wrapping domain.ErrCapture.
	// It must return within the peripheral timeout. The caller owns the
	// frame and must Release it exactly once.
	Capture(ctx context.Context) (*domain.Frame, error)

	// Reinitialize powers the peripheral down and brings it back up at the
	// reduced operating profile, including the settle delay. Calling it
	// again with no capture in between has no further effect.
	Reinitialize(ctx context.Context) error

	// Close releases the peripheral.
	Close() error
}
