// Package workers implements the asynchronous provisioning side of the
// service.
//
// The worker pool manages a fixed number of goroutines that:
//   - Consume request ids from the dispatch queue (at-least-once delivery)
//   - Drive the resumable provisioning state machine for each request
//   - Checkpoint progress into the request store after every external call
//   - Publish lifecycle events
//
// The provisioner is safely re-entrant: terminal states short-circuit, and
// already-checkpointed resources are never created twice. The health monitor
// tracks worker status and logs metrics.
package workers
