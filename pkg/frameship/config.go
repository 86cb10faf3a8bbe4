package frameship

import (
	"github.com/bft-labs/frameship/internal/cliconfig"
	"github.com/bft-labs/frameship/internal/domain"
)

// Config holds the node configuration. Use DefaultConfig() to get a Config
// with defaults for every field.
type Config = cliconfig.Config

// Tunables are the parameters that can change while the node runs.
type Tunables = domain.Tunables

// Transfer modes.
const (
	ModeDiscrete = domain.ModeDiscrete
	ModeStream   = domain.ModeStream
)

// Errors returned by the node.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrRestartRequired = domain.ErrRestartRequired
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}
