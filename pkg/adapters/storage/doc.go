// Package storage provides lock and request record persistence.
//
// Implementations:
//   - redis: SET NX conditional lock writes, JSON records with TTL, and a
//     sorted-set index for pagination
//   - memory: In-memory for testing
package storage
