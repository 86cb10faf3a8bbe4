package frameship

import (
	"github.com/bft-labs/frameship/internal/app"
	"github.com/bft-labs/frameship/internal/ports"
)

// Collaborator interfaces that can be injected with options.
type (
	HTTPClient    = ports.HTTPClient
	FrameSource   = ports.FrameSource
	LinkMonitor   = ports.LinkMonitor
	Transport     = ports.Transport
	Housekeeper   = ports.Housekeeper
	Restarter     = ports.Restarter
	IdentityStore = ports.IdentityStore
	Clock         = app.Clock
)

// Option configures optional behavior of a node.
type Option func(*options)

// options holds the optional configuration for a node.
type options struct {
	httpClient   ports.HTTPClient
	logger       ports.Logger
	eventHandler EventHandler
	plugins      []Plugin
	source       ports.FrameSource
	link         ports.LinkMonitor
	transport    ports.Transport
	housekeeper  ports.Housekeeper
	restarter    ports.Restarter
	identity     ports.IdentityStore
	clock        app.Clock
}

// WithHTTPClient sets the client used for device registration.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for node events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the node starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithFrameSource replaces the camera built from the configuration.
func WithFrameSource(source FrameSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithLinkMonitor replaces the network interface monitor. Link recovery
// is available when the monitor also implements ResetLink.
func WithLinkMonitor(link LinkMonitor) Option {
	return func(o *options) {
		o.link = link
	}
}

// WithTransport replaces the HTTP transport session.
func WithTransport(transport Transport) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithHousekeeper replaces the systemd watchdog.
func WithHousekeeper(h Housekeeper) Option {
	return func(o *options) {
		o.housekeeper = h
	}
}

// WithRestarter replaces the command based restarter.
func WithRestarter(r Restarter) Option {
	return func(o *options) {
		o.restarter = r
	}
}

// WithIdentityStore replaces the identity file in the state directory.
func WithIdentityStore(s IdentityStore) Option {
	return func(o *options) {
		o.identity = s
	}
}

// WithClock replaces the wall clock used by the controller.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
