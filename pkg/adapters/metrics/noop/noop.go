package noop

import "time"

// Collector implements MetricsCollector doing nothing. This is for testing
// purposes only.
type Collector struct{}

// NewCollector creates a new no-op metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordRequestSubmitted(status string)                            {}
func (c *Collector) RecordRequestReplayed()                                          {}
func (c *Collector) RecordValidationFailed()                                         {}
func (c *Collector) RecordProvisionCompleted(status string, duration time.Duration) {}
func (c *Collector) RecordNetworkCreated()                                           {}
func (c *Collector) RecordSubnetCreated()                                            {}
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int)                  {}
