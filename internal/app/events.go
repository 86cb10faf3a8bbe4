package app

import (
	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/recovery"
)

// CycleEventEmitter receives controller notifications. Calls are made
// synchronously from the cycle goroutine and must not block.
type CycleEventEmitter interface {
	OnCycle(result TickResult)
	OnRecovery(event RecoveryEvent)
}

// RecoveryEvent describes one recovery action the controller executed.
type RecoveryEvent struct {
	Decision recovery.Decision
	// Counters are the values that triggered the decision.
	Counters       domain.Counters
	ReinitFailures int
	// Err is nil when the action completed.
	Err error
}
