package ports

import "context"

// IdentityStore persists the device identifier across restarts.
type IdentityStore interface {
	// Load returns the stored identifier, or "" and nil error if none exists.
	Load(ctx context.Context) (string, error)

	// Save persists the identifier atomically.
	Save(ctx context.Context, deviceID string) error
}
