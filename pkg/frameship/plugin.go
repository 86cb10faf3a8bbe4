package frameship

import (
	"context"

	"github.com/bft-labs/frameship/internal/ports"
)

// Plugin extends a node. Plugins are initialized in registration order when
// the node starts and shut down in reverse order when it stops.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin gets to work with.
type PluginConfig struct {
	DeviceID   string
	ServiceURL string
	StateDir   string
	// Config is the validated configuration the node started with.
	Config Config
	Logger Logger
	// UpdateTunables hands new parameters to the running controller. They
	// take effect between cycles.
	UpdateTunables func(Tunables)
}

// BasePlugin implements Plugin with no-ops. Embed it to override only
// what you need.
type BasePlugin struct {
	name string
}

// NewBasePlugin returns a BasePlugin reporting name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

func (p BasePlugin) Name() string                                   { return p.name }
func (p BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (p BasePlugin) Shutdown(context.Context) error                 { return nil }

// Logger is the structured logging interface.
type Logger = ports.Logger

// LogField is a structured log field.
type LogField = ports.Field
