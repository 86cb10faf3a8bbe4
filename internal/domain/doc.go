// Package domain contains the core domain entities and value objects for frameship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (camera drivers, sockets, logging)
// and contains only the rules every other layer agrees on.
//
// # Entities
//
//   - [Frame]: one encoded capture whose driver buffer is released exactly once
//   - [Delivery]: the classified result of handing a frame to the transport
//   - [Counters]: consecutive capture and send failure counters
//   - [CycleClock]: timestamps used for spacing and periodic maintenance
//   - [Action]: the recovery step chosen by the recovery policy
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
