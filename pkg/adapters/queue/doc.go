// Package queue provides dispatch queue and lifecycle event bus
// implementations.
//
// Implementations:
//   - redis: Redis Streams; consumer groups with ack-on-success and
//     XAUTOCLAIM redelivery for dispatch, plain reads for event tailing
//   - memory: In-memory for testing
package queue
