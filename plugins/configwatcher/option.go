package configwatcher

import "github.com/bft-labs/frameship/pkg/frameship"

// WithConfigWatcher returns a frameship Option that reloads tunables when
// the config file changes.
//
// Usage:
//
//	node, err := frameship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/frameship/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) frameship.Option {
	return frameship.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher watches ~/.frameship/config.toml.
func WithDefaultConfigWatcher() frameship.Option {
	return WithConfigWatcher(DefaultConfig())
}
