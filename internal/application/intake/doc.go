// Package intake implements the synchronous intake path for provisioning
// requests.
//
// The intake manager coordinates submissions by:
//   - Validating the provisioning spec (CIDR shape, containment, non-overlap)
//   - Deduplicating submissions via a single atomic conditional lock write
//   - Creating the durable request record in state QUEUED
//   - Enqueuing the request id for the provisioning workers
//
// Losing the conditional write means the same (identity, token) pair was
// already submitted; the manager then replays the original request instead
// of creating a second one.
package intake
