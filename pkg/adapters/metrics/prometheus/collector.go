package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	requestsSubmitted   *prometheus.CounterVec
	requestsReplayed    prometheus.Counter
	validationFailures  prometheus.Counter
	provisionsCompleted *prometheus.CounterVec
	provisionDuration   prometheus.Histogram
	networksCreated     prometheus.Counter
	subnetsCreated      prometheus.Counter
	workerPoolIdle      prometheus.Gauge
	workerPoolBusy      prometheus.Gauge
	workerPoolStopped   prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		requestsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netprov_requests_submitted_total",
				Help: "Total number of provisioning requests accepted",
			},
			[]string{"status"},
		),
		requestsReplayed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "netprov_requests_replayed_total",
				Help: "Total number of submissions resolved as idempotent replays",
			},
		),
		validationFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "netprov_validation_failures_total",
				Help: "Total number of submissions rejected by spec validation",
			},
		),
		provisionsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netprov_provisions_completed_total",
				Help: "Total number of provisioning runs reaching a terminal state",
			},
			[]string{"status"},
		),
		provisionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "netprov_provision_duration_seconds",
				Help:    "Provisioning run duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		networksCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "netprov_networks_created_total",
				Help: "Total number of network containers created",
			},
		),
		subnetsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "netprov_subnets_created_total",
				Help: "Total number of subnets created",
			},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "netprov_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "netprov_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "netprov_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordRequestSubmitted records an accepted submission
func (c *Collector) RecordRequestSubmitted(status string) {
	c.requestsSubmitted.WithLabelValues(status).Inc()
}

// RecordRequestReplayed records an idempotent replay
func (c *Collector) RecordRequestReplayed() {
	c.requestsReplayed.Inc()
}

// RecordValidationFailed records a spec validation rejection
func (c *Collector) RecordValidationFailed() {
	c.validationFailures.Inc()
}

// RecordProvisionCompleted records a provisioning run reaching a terminal state
func (c *Collector) RecordProvisionCompleted(status string, duration time.Duration) {
	c.provisionsCompleted.WithLabelValues(status).Inc()
	c.provisionDuration.Observe(duration.Seconds())
}

// RecordNetworkCreated records a created network container
func (c *Collector) RecordNetworkCreated() {
	c.networksCreated.Inc()
}

// RecordSubnetCreated records a created subnet
func (c *Collector) RecordSubnetCreated() {
	c.subnetsCreated.Inc()
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
