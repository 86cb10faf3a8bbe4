// Package link reports network interface state and keeps the interface
// healthy through operator-configured commands.
package link

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bft-labs/frameship/internal/adapters/system"
	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/ports"
)

// Config configures a Monitor.
type Config struct {
	// Interface to watch, e.g. "wlan0". Empty means any non-loopback
	// interface.
	Interface string
	// LeaseCommand renews the address lease, e.g. "dhcpcd -n wlan0".
	LeaseCommand string
	// ResetCommand soft-resets the link, e.g. "ip link set wlan0 down && ip link set wlan0 up".
	ResetCommand string
	// CommandTimeout bounds each command.
	CommandTimeout time.Duration
}

// Monitor implements ports.LinkMonitor and ports.LinkResetter for a host
// network interface.
type Monitor struct {
	cfg    Config
	logger ports.Logger

	interfaces func() ([]iface, error)
	run        func(ctx context.Context, command string) ([]byte, error)
}

// iface is the subset of net.Interface the monitor looks at.
type iface struct {
	name  string
	flags net.Flags
	addrs []net.Addr
}

// NewMonitor creates a monitor for the configured interface.
func NewMonitor(cfg Config, logger ports.Logger) *Monitor {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = system.DefaultCommandTimeout
	}
	cfg.LeaseCommand = strings.TrimSpace(cfg.LeaseCommand)
	cfg.ResetCommand = strings.TrimSpace(cfg.ResetCommand)
	return &Monitor{
		cfg:        cfg,
		logger:     logger,
		interfaces: hostInterfaces,
		run:        system.RunShell,
	}
}

// IsUp reports whether the interface is up, running and has a unicast
// address.
func (m *Monitor) IsUp() bool {
	ifaces, err := m.interfaces()
	if err != nil {
		m.logger.Debug("list interfaces", ports.Err(err))
		return false
	}
	for _, ifi := range ifaces {
		if m.cfg.Interface != "" && ifi.name != m.cfg.Interface {
			continue
		}
		if m.cfg.Interface == "" && ifi.flags&net.FlagLoopback != 0 {
			continue
		}
		if usable(ifi) {
			return true
		}
	}
	return false
}

func usable(ifi iface) bool {
	if ifi.flags&net.FlagUp == 0 || ifi.flags&net.FlagRunning == 0 {
		return false
	}
	for _, a := range ifi.addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && ip.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

// MaintainLease runs the lease command. It is a no-op without one.
func (m *Monitor) MaintainLease(ctx context.Context) error {
	if m.cfg.LeaseCommand == "" {
		return nil
	}
	return m.exec(ctx, "lease", m.cfg.LeaseCommand)
}

// ResetLink runs the reset command, or returns ErrLinkResetUnsupported.
func (m *Monitor) ResetLink(ctx context.Context) error {
	if m.cfg.ResetCommand == "" {
		return domain.ErrLinkResetUnsupported
	}
	if err := m.exec(ctx, "reset", m.cfg.ResetCommand); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrReinitialize, err)
	}
	return nil
}

// CanReset reports whether a reset command is configured.
func (m *Monitor) CanReset() bool { return m.cfg.ResetCommand != "" }

func (m *Monitor) exec(ctx context.Context, what, command string) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CommandTimeout)
	defer cancel()

	start := time.Now()
	out, err := m.run(ctx, command)
	if err != nil {
		return fmt.Errorf("link %s command %q: %w: %s", what, command, err, strings.TrimSpace(string(out)))
	}
	m.logger.Debug("link command",
		ports.String("kind", what),
		ports.Duration("duration", time.Since(start)),
	)
	return nil
}

func hostInterfaces() ([]iface, error) {
	nifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]iface, 0, len(nifs))
	for _, n := range nifs {
		addrs, err := n.Addrs()
		if err != nil {
			continue
		}
		out = append(out, iface{name: n.Name, flags: n.Flags, addrs: addrs})
	}
	return out, nil
}
