// Package domain defines the core types of the VPC provisioning service:
// the request record and its lifecycle states, the idempotency lock, the
// provisioning spec and accumulated result, lifecycle events, and the typed
// errors shared across layers.
package domain
