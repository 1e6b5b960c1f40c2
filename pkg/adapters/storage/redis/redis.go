package redis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aescanero/netprov/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix    = "netprov:lock:"
	requestKeyPrefix = "netprov:request:"

	// requestIndex orders request ids by creation time for pagination. Lock
	// rows are never indexed, so listings exclude them by construction.
	requestIndex = "netprov:requests:index"
)

// Store implements LockStore and RequestStore using Redis.
//
// Lock rows are written with SET NX, the single atomic conditional write of
// the intake path. Request rows are JSON values with a key TTL; expiry
// sweeping is Redis's job, never the application's.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// Acquire atomically creates the lock row if absent (ports.LockStore interface)
func (s *Store) Acquire(ctx context.Context, lockKey string, lock *domain.Lock, ttl time.Duration) error {
	data, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	ok, err := s.client.SetNX(ctx, getLockKey(lockKey), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to write lock: %w", err)
	}
	if !ok {
		return domain.ErrLockExists
	}

	s.logger.Debug("lock acquired",
		zap.String("owner_request_id", lock.OwnerRequestID))

	return nil
}

// GetLock reads an existing lock row (ports.LockStore interface)
func (s *Store) GetLock(ctx context.Context, lockKey string) (*domain.Lock, error) {
	data, err := s.client.Get(ctx, getLockKey(lockKey)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}

	var lock domain.Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}

	return &lock, nil
}

// Create writes the initial request record (ports.RequestStore interface)
func (s *Store) Create(ctx context.Context, req *domain.Request, ttl time.Duration) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, getRequestKey(req.RequestID), data, ttl)
	pipe.ZAdd(ctx, requestIndex, redis.Z{
		Score:  float64(req.CreatedAt.Unix()),
		Member: req.RequestID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Debug("request created",
		zap.String("request_id", req.RequestID),
		zap.String("status", string(req.Status)))

	return nil
}

// Get retrieves a request record (ports.RequestStore interface)
func (s *Store) Get(ctx context.Context, requestID string) (*domain.Request, error) {
	data, err := s.client.Get(ctx, getRequestKey(requestID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	var req domain.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	return &req, nil
}

// Update merges only the supplied fields into the record and stamps
// updated_at (ports.RequestStore interface). The key's remaining TTL is
// preserved.
func (s *Store) Update(ctx context.Context, requestID string, upd domain.RequestUpdate) (*domain.Request, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		req.Status = *upd.Status
	}
	if upd.Result != nil {
		req.Result = upd.Result
	}
	if upd.ErrorMessage != nil {
		req.ErrorMessage = *upd.ErrorMessage
	}
	req.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := s.client.Set(ctx, getRequestKey(requestID), data, redis.KeepTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	s.logger.Debug("request updated",
		zap.String("request_id", requestID),
		zap.String("status", string(req.Status)))

	return req, nil
}

// List returns one page of request records plus an opaque continuation
// token (ports.RequestStore interface). Index members whose records have
// expired are skipped and pruned lazily.
func (s *Store) List(ctx context.Context, cursor string, limit int) (*domain.Page, error) {
	offset, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, requestIndex, offset, offset+int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read request index: %w", err)
	}
	if len(ids) == 0 {
		return &domain.Page{Items: []*domain.Request{}}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = getRequestKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read requests: %w", err)
	}

	items := make([]*domain.Request, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Record expired under the index entry.
			s.client.ZRem(ctx, requestIndex, ids[i])
			continue
		}

		var req domain.Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			s.logger.Error("failed to unmarshal listed request",
				zap.String("request_id", ids[i]),
				zap.Error(err))
			continue
		}
		items = append(items, &req)
	}

	page := &domain.Page{Items: items}

	total, err := s.client.ZCard(ctx, requestIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to size request index: %w", err)
	}
	if offset+int64(len(ids)) < total {
		page.NextToken = encodeCursor(offset + int64(len(ids)))
	}

	return page, nil
}

// cursorToken is the decoded shape of a list continuation token.
type cursorToken struct {
	Offset int64 `json:"offset"`
}

func encodeCursor(offset int64) string {
	raw, _ := json.Marshal(cursorToken{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, domain.ErrInvalidCursor
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil || tok.Offset < 0 {
		return 0, domain.ErrInvalidCursor
	}
	return tok.Offset, nil
}

// getLockKey returns the Redis key for an idempotency lock
func getLockKey(lockKey string) string {
	return lockKeyPrefix + lockKey
}

// getRequestKey returns the Redis key for a request record
func getRequestKey(requestID string) string {
	return requestKeyPrefix + requestID
}
