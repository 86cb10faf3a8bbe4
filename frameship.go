// Package frameship ships camera frames from a small device to a collector
// over an unreliable wireless link.
//
// Example usage:
//
//	cfg := frameship.DefaultConfig()
//	cfg.ServiceURL = "http://10.0.0.2:8000"
//	cfg.CameraDevice = "/dev/video0"
//	if err := frameship.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// For lifecycle control, plugins and event hooks use pkg/frameship.
package frameship

import (
	"context"
	"errors"

	"github.com/bft-labs/frameship/internal/cliconfig"
	"github.com/bft-labs/frameship/pkg/frameship"
)

// Config holds the configuration for a frameship node.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = frameship.Config

// DefaultServiceURL is the collector used when none is configured.
const DefaultServiceURL = cliconfig.DefaultServiceURL

// ErrRestartRequired is returned by Run when in-process recovery gave up.
var ErrRestartRequired = frameship.ErrRestartRequired

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return frameship.DefaultConfig()
}

// Run starts a node with the given configuration and blocks until ctx is
// cancelled or the node requires a restart.
func Run(ctx context.Context, cfg Config, opts ...frameship.Option) error {
	node, err := frameship.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := node.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-node.Done():
	}
	if err := node.Err(); err != nil {
		return err
	}
	if err := node.Stop(); err != nil && !errors.Is(err, frameship.ErrNotRunning) {
		return err
	}
	return nil
}
