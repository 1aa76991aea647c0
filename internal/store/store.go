// Package store provides persistence for pending analysis requests.
//
// The store is deliberately a plain record store: it does not serialize
// concurrent mutation of a single request. That is the correlation
// engine's job, which holds a per-correlation-id lock around every
// get-mutate-update cycle. The store only guarantees that each
// individual operation is atomic.
//
// Two implementations are provided:
//
//   - PgStore: PostgreSQL-backed, survives process restarts
//   - MemoryStore: map-backed, for tests and single-node development
//
// All methods return domain-specific errors: domain.ErrNotFound when no
// record matches, domain.ErrAlreadyExists on duplicate creation, and
// domain.ErrCorruptRecord when a stored record cannot be decoded.
package store

import (
	"context"
	"time"

	"github.com/estateai/property-analysis-service/internal/domain"
)

// PendingStore persists pending request records keyed by correlation id.
type PendingStore interface {
	// Create inserts a new pending request record.
	// Returns domain.ErrAlreadyExists if the correlation id is taken.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, req *domain.PendingRequest) error

	// Get retrieves the pending request for the given correlation id.
	// Returns domain.ErrNotFound if no record exists, which callers treat
	// as "request already closed" rather than an error condition.
	Get(ctx context.Context, correlationID string) (*domain.PendingRequest, error)

	// Update overwrites the stored record with the given state. The caller
	// must hold the per-correlation-id lock for the duration of the
	// get-mutate-update cycle.
	// Returns domain.ErrNotFound if the record was already removed.
	Update(ctx context.Context, req *domain.PendingRequest) error

	// Delete removes the record for the given correlation id.
	// Returns domain.ErrNotFound if no record exists; callers racing a
	// concurrent terminal transition ignore that error.
	Delete(ctx context.Context, correlationID string) error

	// ListExpired returns all open requests created before the cutoff,
	// oldest first. Used by the timeout sweeper.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.PendingRequest, error)
}
