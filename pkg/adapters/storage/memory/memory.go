package memory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/aescanero/netprov/pkg/domain"
)

// Store implements LockStore and RequestStore using in-memory maps.
// This is for testing purposes only; TTLs are recorded but never swept.
type Store struct {
	locks    map[string]*domain.Lock
	requests map[string]*domain.Request
	order    []string // request ids in creation order
	mu       sync.RWMutex
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		locks:    make(map[string]*domain.Lock),
		requests: make(map[string]*domain.Request),
	}
}

// Acquire atomically creates the lock row if absent (ports.LockStore interface)
func (s *Store) Acquire(ctx context.Context, lockKey string, lock *domain.Lock, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locks[lockKey]; exists {
		return domain.ErrLockExists
	}

	copied := *lock
	s.locks[lockKey] = &copied
	return nil
}

// GetLock reads an existing lock row (ports.LockStore interface)
func (s *Store) GetLock(ctx context.Context, lockKey string) (*domain.Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, ok := s.locks[lockKey]
	if !ok {
		return nil, domain.ErrNotFound
	}

	copied := *lock
	return &copied, nil
}

// Create writes the initial request record (ports.RequestStore interface)
func (s *Store) Create(ctx context.Context, req *domain.Request, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := cloneRequest(req)
	s.requests[req.RequestID] = copied
	s.order = append(s.order, req.RequestID)
	return nil
}

// Get retrieves a request record (ports.RequestStore interface)
func (s *Store) Get(ctx context.Context, requestID string) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return cloneRequest(req), nil
}

// Update merges only the supplied fields (ports.RequestStore interface)
func (s *Store) Update(ctx context.Context, requestID string, upd domain.RequestUpdate) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if upd.Status != nil {
		req.Status = *upd.Status
	}
	if upd.Result != nil {
		req.Result = cloneResult(upd.Result)
	}
	if upd.ErrorMessage != nil {
		req.ErrorMessage = *upd.ErrorMessage
	}
	req.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	return cloneRequest(req), nil
}

// List returns one page of request records in creation order
// (ports.RequestStore interface)
func (s *Store) List(ctx context.Context, cursor string, limit int) (*domain.Page, error) {
	offset, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.order) {
		return &domain.Page{Items: []*domain.Request{}}, nil
	}

	end := offset + limit
	if end > len(s.order) {
		end = len(s.order)
	}

	items := make([]*domain.Request, 0, end-offset)
	for _, id := range s.order[offset:end] {
		items = append(items, cloneRequest(s.requests[id]))
	}

	page := &domain.Page{Items: items}
	if end < len(s.order) {
		page.NextToken = encodeCursor(end)
	}
	return page, nil
}

// cloneRequest deep-copies a record to keep callers from mutating the store.
func cloneRequest(req *domain.Request) *domain.Request {
	copied := *req
	copied.Result = cloneResult(req.Result)
	copied.Spec.Subnets = append([]domain.SubnetSpec(nil), req.Spec.Subnets...)
	return &copied
}

func cloneResult(r *domain.Result) *domain.Result {
	if r == nil {
		return nil
	}
	copied := *r
	copied.Subnets = append([]domain.CreatedSubnet(nil), r.Subnets...)
	return &copied
}

type cursorToken struct {
	Offset int `json:"offset"`
}

func encodeCursor(offset int) string {
	raw, _ := json.Marshal(cursorToken{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(cursor string) (int, error) {
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
