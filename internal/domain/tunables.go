package domain

import "time"

// Mode selects how frames are framed on the wire.
type Mode string

const (
	// ModeDiscrete sends one request per frame and closes the connection.
	ModeDiscrete Mode = "discrete"
	// ModeStream keeps one multipart/x-mixed-replace request open.
	ModeStream Mode = "stream"
)

// TransportTunables are the transport parameters that may change at runtime.
type TransportTunables struct {
	ConnectTimeout    time.Duration
	ConnectRetryDelay time.Duration
	ChunkSize         int
	ChunkTimeout      time.Duration
	TransferTimeout   time.Duration
	AckTimeout        time.Duration
}

// Tunables is the set of parameters that can be reloaded without a restart.
type Tunables struct {
	FrameInterval     time.Duration
	ConnectSpacing    time.Duration
	MaxFailures       int
	MaxReinitFailures int
	ResetInterval     time.Duration
	LeaseInterval     time.Duration
	Transport         TransportTunables
}
