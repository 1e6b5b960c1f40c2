// Package metrics provides MetricsCollector implementations.
//
// Implementations:
//   - prometheus: Prometheus counters, gauges and histograms
//   - noop: No-op collector for testing
package metrics
