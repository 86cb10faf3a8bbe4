package fs

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/bft-labs/frameship/internal/ports"
)

// Source says where a resolved identity came from.
type Source string

const (
	SourceConfigured Source = "configured"
	SourcePersisted  Source = "persisted"
	SourceHardware   Source = "hardware"
	SourceRandom     Source = "random"
)

// Resolver picks the device identifier at startup.
type Resolver struct {
	Store ports.IdentityStore
	// Interface is the link interface whose MAC address seeds a new
	// hardware-derived identifier. Empty means the first non-loopback
	// interface with a hardware address.
	Interface string
	// Prefix is prepended to generated identifiers.
	Prefix string
	Logger ports.Logger

	// hardwareAddr is replaced in tests.
	hardwareAddr func(iface string) (net.HardwareAddr, error)
}

// Resolve returns configured if set, otherwise the persisted identifier,
// otherwise a newly generated one which is written back to the store.
func (r *Resolver) Resolve(ctx context.Context, configured string) (string, Source, error) {
	if id := strings.TrimSpace(configured); id != "" {
		return id, SourceConfigured, nil
	}

	id, err := r.Store.Load(ctx)
	if err != nil {
		r.Logger.Warn("unreadable identity file, generating a new one", ports.Err(err))
	} else if id != "" {
		return id, SourcePersisted, nil
	}

	id, src := r.generate()
	if err := r.Store.Save(ctx, id); err != nil {
		return "", "", fmt.Errorf("save device identity: %w", err)
	}
	r.Logger.Info("generated device identity",
		ports.DeviceID(id),
		ports.String("source", string(src)),
	)
	return id, src, nil
}

func (r *Resolver) generate() (string, Source) {
	lookup := r.hardwareAddr
	if lookup == nil {
		lookup = interfaceHardwareAddr
	}
	if mac, err := lookup(r.Interface); err == nil && len(mac) > 0 {
		return r.Prefix + strings.ReplaceAll(mac.String(), ":", ""), SourceHardware
	}
	return r.Prefix + uuid.NewString(), SourceRandom
}

func interfaceHardwareAddr(name string) (net.HardwareAddr, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}
		return ifi.HardwareAddr, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || len(ifi.HardwareAddr) == 0 {
			continue
		}
		return ifi.HardwareAddr, nil
	}
	return nil, fmt.Errorf("no interface with a hardware address")
}
