package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/netprov/pkg/ports"
	"go.uber.org/zap"
)

// Pool manages a pool of worker goroutines consuming the dispatch queue.
// Each worker consumes under its own consumer name, so distinct request ids
// are processed concurrently while one delivery is handled by exactly one
// worker at a time.
type Pool struct {
	size        int
	queue       ports.Queue
	provisioner *Provisioner
	metrics     ports.MetricsCollector
	logger      *zap.Logger
	health      *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	queue ports.Queue,
	provisioner *Provisioner,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:        size,
		queue:       queue,
		provisioner: provisioner,
		metrics:     metrics,
		logger:      logger,
		workers:     make([]*worker, size),
		ctx:         ctx,
		cancel:      cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop. It consumes deliveries until the pool
// context is cancelled; a returned handler error leaves the delivery
// unacknowledged so the queue redelivers it.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	err := w.pool.queue.Consume(ctx, w.id, w.handleDelivery)
	if err != nil && ctx.Err() == nil {
		w.pool.logger.Error("worker consume loop failed",
			zap.String("worker_id", w.id),
			zap.Error(err))
	}

	w.mu.Lock()
	w.status = WorkerStatusStopped
	w.mu.Unlock()
	w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
}

// handleDelivery processes a single queued request id.
func (w *worker) handleDelivery(ctx context.Context, requestID string) error {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.mu.Unlock()
	}()

	w.pool.logger.Info("processing request",
		zap.String("worker_id", w.id),
		zap.String("request_id", requestID))

	if err := w.pool.provisioner.HandleRequest(ctx, requestID); err != nil {
		w.pool.logger.Error("request handling failed",
			zap.String("worker_id", w.id),
			zap.String("request_id", requestID),
			zap.Error(err))
		return err
	}

	return nil
}
