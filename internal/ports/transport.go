package ports

import (
	"context"

	"github.com/bft-labs/frameship/internal/domain"
)

// Transport owns the single outbound connection to the collector.
// Implementations encapsulate the framing of the configured mode so the
// controller never needs to know which one is in use.
type Transport interface {
	// Register announces the device. Failure is informational only.
	Register(ctx context.Context, deviceID string) error

	// SendFrame writes one frame. It never releases the frame.
	SendFrame(ctx context.Context, deviceID string, frame *domain.Frame) domain.Delivery

	// Close drops any open connection.
	Close() error
}

// TunableTransport accepts runtime parameter changes between cycles.
type TunableTransport interface {
	Transport
	Configure(t domain.TransportTunables)
}
