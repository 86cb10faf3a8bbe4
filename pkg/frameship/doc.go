// Package frameship provides an embeddable frame shipping node.
//
// A node captures JPEG frames from a camera, delivers them to a collector
// over HTTP and keeps itself alive unattended: consecutive capture or send
// failures escalate to a camera reinitialization, a link reset or, as a
// last resort, a device restart.
//
// # Basic Usage
//
//	cfg := frameship.DefaultConfig()
//	cfg.ServiceURL = "http://192.168.4.1:8000"
//	cfg.CameraDevice = "/dev/video0"
//
//	node, err := frameship.New(cfg, frameship.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := node.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	select {
//	case <-ctx.Done():
//	    _ = node.Stop()
//	case <-node.Done():
//	    // node.Err() is ErrRestartRequired when the device must restart.
//	}
//
// # Dependency Injection
//
// Every collaborator can be replaced, which is how tests run a node without
// a camera or network:
//
//	node, err := frameship.New(cfg,
//	    frameship.WithFrameSource(fakeCamera),
//	    frameship.WithLinkMonitor(alwaysUp),
//	    frameship.WithTransport(recorder),
//	)
//
// # Events
//
// Implement [EventHandler] (embedding [BaseEventHandler] for no-op
// defaults) and pass it with [WithEventHandler] to observe state changes,
// cycles and recovery actions. Handlers run on the cycle goroutine and
// must return quickly.
//
// # Plugins
//
// A [Plugin] is initialized when the node starts and shut down when it
// stops. The configwatcher plugin reloads tunable parameters from the
// config file:
//
//	import "github.com/bft-labs/frameship/plugins/configwatcher"
//
//	node, err := frameship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: path}),
//	)
//
// # Lifecycle States
//
// A node is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Frameship.Status] to query it.
package frameship
