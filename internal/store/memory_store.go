package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/estateai/property-analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ PendingStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of PendingStore backed by a
// mutex-protected map. It is safe for concurrent use. State does not
// survive process restarts, so it is intended for tests and single-node
// development runs.
type MemoryStore struct {
	mu      sync.RWMutex
	pending map[string]*domain.PendingRequest
}

// NewMemoryStore creates an empty in-memory pending request store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]*domain.PendingRequest),
	}
}

// Create inserts a new pending request record.
func (s *MemoryStore) Create(_ context.Context, req *domain.PendingRequest) error {
	if err := validatePending(req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[req.CorrelationID]; ok {
		return domain.NewAlreadyExistsError("pending request", req.CorrelationID)
	}
	s.pending[req.CorrelationID] = copyPending(req)
	return nil
}

// Get retrieves the pending request for the given correlation id.
func (s *MemoryStore) Get(_ context.Context, correlationID string) (*domain.PendingRequest, error) {
	if correlationID == "" {
		return nil, domain.NewValidationError("correlation_id", "correlation id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.pending[correlationID]
	if !ok {
		return nil, domain.NewNotFoundError("pending request", correlationID)
	}
	return copyPending(req), nil
}

// Update overwrites the stored record with the given state.
func (s *MemoryStore) Update(_ context.Context, req *domain.PendingRequest) error {
	if err := validatePending(req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[req.CorrelationID]; !ok {
		return domain.NewNotFoundError("pending request", req.CorrelationID)
	}
	s.pending[req.CorrelationID] = copyPending(req)
	return nil
}

// Delete removes the record for the given correlation id.
func (s *MemoryStore) Delete(_ context.Context, correlationID string) error {
	if correlationID == "" {
		return domain.NewValidationError("correlation_id", "correlation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[correlationID]; !ok {
		return domain.NewNotFoundError("pending request", correlationID)
	}
	delete(s.pending, correlationID)
	return nil
}

// ListExpired returns all open requests created before the cutoff, oldest first.
func (s *MemoryStore) ListExpired(_ context.Context, cutoff time.Time) ([]*domain.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*domain.PendingRequest
	for _, req := range s.pending {
		if req.Status == domain.StatusOpen && req.CreatedAt.Before(cutoff) {
			expired = append(expired, copyPending(req))
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].CreatedAt.Before(expired[j].CreatedAt)
	})
	return expired, nil
}

// Len returns the number of stored records. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// copyPending deep-copies a record so callers never alias store-internal
// state through the returned pointer.
func copyPending(req *domain.PendingRequest) *domain.PendingRequest {
	cp := *req
	cp.Expected = append([]string(nil), req.Expected...)
	cp.Received = make(map[string]string, len(req.Received))
	for k, v := range req.Received {
		cp.Received[k] = v
	}
	return &cp
}
