package ports

import "context"

// Housekeeper services platform background duties (watchdog pings).
// Service is cheap and rate-limited internally, so callers may invoke it
// as often as they like between blocking steps.
type Housekeeper interface {
	Service()
}

// Restarter performs the full device restart.
type Restarter interface {
	Restart(ctx context.Context, reason string) error
}
