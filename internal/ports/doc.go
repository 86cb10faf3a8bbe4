// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the capture-transmit-recovery loop and the
// hardware and network it drives. They state what the loop needs without
// saying how a particular board provides it.
//
// # Port Interfaces
//
//   - [FrameSource]: Captures frames from the camera peripheral
//   - [LinkMonitor]: Reports link state and renews the lease
//   - [LinkResetter]: Optional soft reset of the link
//   - [Transport]: Registers the device and delivers frames to the collector
//   - [IdentityStore]: Persists the device identifier
//   - [Housekeeper]: Background servicing (watchdog) between blocking steps
//   - [Restarter]: Performs the full device restart
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with V4L2,
// sockets, systemd, zerolog and the file system, and tests implement them
// with fakes.
package ports
