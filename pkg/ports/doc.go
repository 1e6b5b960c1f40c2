// Package ports declares the interfaces between the application core and its
// adapters: persistence for locks and request records, the dispatch queue,
// the lifecycle event bus, the external provisioning API, and metrics.
//
// The application core depends only on these interfaces; Redis, EC2 and
// Prometheus implementations live under pkg/adapters, with in-memory
// substitutes for testing.
package ports
