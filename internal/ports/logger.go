package ports

import "github.com/bft-labs/frameship/pkg/log"

// Logger provides structured logging capabilities.
type Logger = log.Logger

// Field represents a key-value pair for structured logging.
type Field = log.Field

// Field constructors re-exported for adapters and the application layer.
var (
	String   = log.String
	Int      = log.Int
	Float64  = log.Float64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	DeviceID = log.DeviceID
	Any      = log.Any
)
