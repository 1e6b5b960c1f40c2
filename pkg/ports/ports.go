package ports

import (
	"context"
	"time"

	"github.com/aescanero/netprov/pkg/domain"
)

// LockStore persists write-once idempotency locks.
type LockStore interface {
	// Acquire atomically creates the lock row if and only if no row exists
	// for lockKey. It returns domain.ErrLockExists when the conditional
	// write loses to an existing row. This single write is the sole mutual
	// exclusion primitive of the intake path.
	Acquire(ctx context.Context, lockKey string, lock *domain.Lock, ttl time.Duration) error

	// GetLock reads an existing lock row, or domain.ErrNotFound.
	GetLock(ctx context.Context, lockKey string) (*domain.Lock, error)
}

// RequestStore persists provisioning request records.
type RequestStore interface {
	// Create writes the initial QUEUED record with the given TTL.
	Create(ctx context.Context, req *domain.Request, ttl time.Duration) error

	// Get returns the record, or domain.ErrNotFound.
	Get(ctx context.Context, requestID string) (*domain.Request, error)

	// Update merges only the supplied fields into the record and always
	// stamps updated_at. It returns the record as stored.
	Update(ctx context.Context, requestID string, upd domain.RequestUpdate) (*domain.Request, error)

	// List returns one page of request records plus an opaque continuation
	// token. Lock rows are never listed.
	List(ctx context.Context, cursor string, limit int) (*domain.Page, error)
}

// JobHandler processes one dispatched request id. A nil return acknowledges
// the message; an error leaves it pending for redelivery.
type JobHandler func(ctx context.Context, requestID string) error

// Queue is the dispatch queue decoupling synchronous intake from the
// asynchronous provisioning workers. Delivery is at-least-once; consumers
// must tolerate redelivery.
type Queue interface {
	// Enqueue submits a request id for provisioning. Fire-and-forget.
	Enqueue(ctx context.Context, requestID string) error

	// Consume delivers queued request ids to handler until ctx is done.
	// Messages are acknowledged only after handler returns nil.
	Consume(ctx context.Context, consumer string, handler JobHandler) error

	Close() error
}

// EventHandler receives one lifecycle event.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes and tails provisioning lifecycle events. Events are
// best-effort notifications, not the system of record.
type EventBus interface {
	Publish(ctx context.Context, event domain.Event) error

	// Tail streams events published after the call until ctx is done.
	Tail(ctx context.Context, handler EventHandler) error
}

// CloudProvider is the consumed external provisioning API.
type CloudProvider interface {
	// CreateNetwork provisions the network container and returns its id.
	CreateNetwork(ctx context.Context, cidr string) (string, error)

	// CreateSubnet provisions one subnet inside the network container.
	CreateSubnet(ctx context.Context, networkID, cidr, az string) (string, error)

	// TagResources applies tags to the given resource ids.
	TagResources(ctx context.Context, ids []string, tags map[string]string) error

	// DescribeNetwork returns the provider-reported lifecycle state of the
	// network container. Used only by the readiness poll.
	DescribeNetwork(ctx context.Context, networkID string) (string, error)
}

// MetricsCollector records operational metrics.
type MetricsCollector interface {
	RecordRequestSubmitted(status string)
	RecordRequestReplayed()
	RecordValidationFailed()
	RecordProvisionCompleted(status string, duration time.Duration)
	RecordNetworkCreated()
	RecordSubnetCreated()
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
