package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/netprov/pkg/domain"
	"github.com/aescanero/netprov/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager coordinates request intake: spec validation, atomic idempotency
// locking, request record creation and dispatch to the provisioning queue.
type Manager struct {
	locks     ports.LockStore
	store     ports.RequestStore
	queue     ports.Queue
	events    ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	recordTTL time.Duration
}

// SubmitOutcome is the result of a submission: either a freshly accepted
// request or an idempotent replay of an earlier one. Both are reported to
// the caller as accepted.
type SubmitOutcome struct {
	RequestID    string
	Status       domain.RequestState
	Result       *domain.Result
	ErrorMessage string
	Replayed     bool
}

// NewManager creates a new intake manager
func NewManager(
	locks ports.LockStore,
	store ports.RequestStore,
	queue ports.Queue,
	events ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	recordTTL time.Duration,
) *Manager {
	return &Manager{
		locks:     locks,
		store:     store,
		queue:     queue,
		events:    events,
		metrics:   metrics,
		validator: validator,
		logger:    logger,
		recordTTL: recordTTL,
	}
}

// Submit validates the spec, then runs the acquire-or-replay protocol.
//
// Exactly one concurrent caller with the same (identity, token) wins the
// lock's conditional write; the winner creates the request record and
// enqueues it. Every loser replays the winner's request: the payload is not
// re-validated and no second record is ever created for the same lock key.
func (m *Manager) Submit(ctx context.Context, identity, token string, spec *domain.ProvisionSpec) (*SubmitOutcome, error) {
	if err := m.validator.Validate(spec); err != nil {
		m.metrics.RecordValidationFailed()
		m.logger.Info("spec validation failed", zap.Error(err))
		return nil, err
	}

	lockKey := deriveLockKey(identity, token)
	requestID := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(m.recordTTL).Unix()

	lock := &domain.Lock{
		OwnerRequestID: requestID,
		Type:           domain.RecordTypeLock,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
	}

	err := m.locks.Acquire(ctx, lockKey, lock, m.recordTTL)
	if errors.Is(err, domain.ErrLockExists) {
		return m.replay(ctx, lockKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}

	req := &domain.Request{
		RequestID:      requestID,
		Type:           domain.RecordTypeRequest,
		CreatedBy:      identity,
		IdempotencyKey: token,
		Status:         domain.StateQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      expiresAt,
		Spec:           *spec,
	}

	if err := m.store.Create(ctx, req, m.recordTTL); err != nil {
		return nil, fmt.Errorf("failed to create request record: %w", err)
	}

	if err := m.queue.Enqueue(ctx, requestID); err != nil {
		return nil, fmt.Errorf("failed to enqueue request: %w", err)
	}

	m.publishEvent(ctx, requestID, domain.EventRequestQueued, nil)
	m.metrics.RecordRequestSubmitted(string(domain.StateQueued))

	m.logger.Info("request accepted",
		zap.String("request_id", requestID),
		zap.String("vpc_cidr", spec.VPC.CIDR),
		zap.Int("subnets", len(spec.Subnets)))

	return &SubmitOutcome{RequestID: requestID, Status: domain.StateQueued}, nil
}

// replay resolves a lost conditional write to the winner's request.
func (m *Manager) replay(ctx context.Context, lockKey string) (*SubmitOutcome, error) {
	lock, err := m.locks.GetLock(ctx, lockKey)
	if err != nil || lock.OwnerRequestID == "" {
		// The row won the conditional check but cannot be read back: a
		// store-level anomaly, not normal operation.
		m.logger.Error("idempotency lock unreadable", zap.Error(err))
		return nil, domain.ErrLockUnreadable
	}

	req, err := m.store.Get(ctx, lock.OwnerRequestID)
	if errors.Is(err, domain.ErrNotFound) {
		// Race between the winner's two writes: the lock is visible but the
		// request record is not yet. Replay a minimal QUEUED snapshot.
		m.metrics.RecordRequestReplayed()
		return &SubmitOutcome{
			RequestID: lock.OwnerRequestID,
			Status:    domain.StateQueued,
			Replayed:  true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read replayed request: %w", err)
	}

	m.metrics.RecordRequestReplayed()
	m.logger.Info("request replayed",
		zap.String("request_id", req.RequestID),
		zap.String("status", string(req.Status)))

	return &SubmitOutcome{
		RequestID:    req.RequestID,
		Status:       req.Status,
		Result:       req.Result,
		ErrorMessage: req.ErrorMessage,
		Replayed:     true,
	}, nil
}

// GetRequest returns one request record, or domain.ErrNotFound. Lock rows
// are never exposed.
func (m *Manager) GetRequest(ctx context.Context, requestID string) (*domain.Request, error) {
	req, err := m.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Type != domain.RecordTypeRequest {
		return nil, domain.ErrNotFound
	}
	return req, nil
}

// ListRequests returns one page of request records. The cursor is an opaque
// token produced by the store and passed through unmodified by callers.
// Visibility is deliberately service-wide: any authenticated caller sees all
// requests.
func (m *Manager) ListRequests(ctx context.Context, cursor string, limit int) (*domain.Page, error) {
	if limit <= 0 {
		limit = 20
	}
	return m.store.List(ctx, cursor, limit)
}

// publishEvent publishes a lifecycle event, best-effort.
func (m *Manager) publishEvent(ctx context.Context, requestID string, eventType domain.EventType, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RequestID: requestID,
		Timestamp: time.Now(),
		Data:      data,
	}

	if err := m.events.Publish(ctx, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("request_id", requestID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

// deriveLockKey derives the lock key from the caller identity and the
// idempotency token. The identity is hashed, never stored verbatim on the
// lock row.
func deriveLockKey(identity, token string) string {
	h := sha256.New()
	h.Write([]byte(identity))
	h.Write([]byte{0})
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}
