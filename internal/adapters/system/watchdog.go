// Package system talks to the service supervisor: watchdog keep-alives,
// readiness notifications and device restarts.
package system

import (
	"sync"
	"time"

	"github.com/coreos/go-systemd/daemon"

	"github.com/bft-labs/frameship/internal/ports"
)

// Notifier sends a state string to the supervisor. It matches
// daemon.SdNotify with unsetEnvironment false.
type Notifier func(state string) (bool, error)

func sdNotify(state string) (bool, error) { return daemon.SdNotify(false, state) }

// Watchdog implements ports.Housekeeper by pinging the systemd watchdog.
// Service may be called as often as the caller likes; pings are sent at
// most every third of the watchdog interval.
type Watchdog struct {
	interval time.Duration
	notify   Notifier
	logger   ports.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastPing time.Time
}

// NewWatchdog reads WATCHDOG_USEC. The returned watchdog is inert when the
// service runs without a watchdog.
func NewWatchdog(logger ports.Logger) *Watchdog {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("invalid watchdog environment", ports.Err(err))
		interval = 0
	}
	return newWatchdog(interval, sdNotify, logger, time.Now)
}

func newWatchdog(interval time.Duration, notify Notifier, logger ports.Logger, now func() time.Time) *Watchdog {
	return &Watchdog{interval: interval, notify: notify, logger: logger, now: now}
}

// Enabled reports whether the supervisor expects keep-alives.
func (w *Watchdog) Enabled() bool { return w.interval > 0 }

// Service pings the watchdog if a ping is due.
func (w *Watchdog) Service() {
	if w.interval <= 0 {
		return
	}
	now := w.now()

	w.mu.Lock()
	due := w.lastPing.IsZero() || now.Sub(w.lastPing) >= w.interval/3
	if due {
		w.lastPing = now
	}
	w.mu.Unlock()

	if !due {
		return
	}
	if _, err := w.notify(daemon.SdNotifyWatchdog); err != nil {
		w.logger.Warn("watchdog ping failed", ports.Err(err))
	}
}

// Ready tells the supervisor startup has finished.
func (w *Watchdog) Ready() {
	if _, err := w.notify(daemon.SdNotifyReady); err != nil {
		w.logger.Debug("ready notification failed", ports.Err(err))
	}
}

// Stopping tells the supervisor shutdown has begun.
func (w *Watchdog) Stopping() {
	if _, err := w.notify(daemon.SdNotifyStopping); err != nil {
		w.logger.Debug("stopping notification failed", ports.Err(err))
	}
}
