package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/estateai/property-analysis-service/internal/database"
	"github.com/estateai/property-analysis-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Repositories accept it so callers can pass either the pool
// or a transaction from database.DB.WithTransaction.
type DBTX = database.DBTX

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Compile-time interface verification.
var _ PendingStore = (*PgStore)(nil)

// PgStore is a PostgreSQL implementation of PendingStore.
type PgStore struct {
	db DBTX
}

// NewPgStore creates a new PostgreSQL pending request store.
func NewPgStore(db DBTX) *PgStore {
	return &PgStore{db: db}
}

// Create inserts a new pending request record.
func (s *PgStore) Create(ctx context.Context, req *domain.PendingRequest) error {
	if err := validatePending(req); err != nil {
		return err
	}

	receivedJSON, err := json.Marshal(req.Received)
	if err != nil {
		return fmt.Errorf("failed to marshal received replies: %w", err)
	}

	query := `
		INSERT INTO pending_requests (
			correlation_id, originator, query, expected, received, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.Exec(ctx, query,
		req.CorrelationID, req.Originator, req.Query,
		req.Expected, receivedJSON, req.Status, req.CreatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("pending request", req.CorrelationID)
		}
		return fmt.Errorf("failed to create pending request: %w", err)
	}

	return nil
}

// Get retrieves the pending request for the given correlation id.
func (s *PgStore) Get(ctx context.Context, correlationID string) (*domain.PendingRequest, error) {
	if correlationID == "" {
		return nil, domain.NewValidationError("correlation_id", "correlation id is required")
	}

	query := `
		SELECT correlation_id, originator, query, expected, received, status, created_at
		FROM pending_requests
		WHERE correlation_id = $1`

	row := s.db.QueryRow(ctx, query, correlationID)
	req, err := scanPending(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("pending request", correlationID)
		}
		return nil, err
	}

	return req, nil
}

// Update overwrites the stored record with the given state.
func (s *PgStore) Update(ctx context.Context, req *domain.PendingRequest) error {
	if err := validatePending(req); err != nil {
		return err
	}

	receivedJSON, err := json.Marshal(req.Received)
	if err != nil {
		return fmt.Errorf("failed to marshal received replies: %w", err)
	}

	query := `
		UPDATE pending_requests
		SET received = $2, status = $3
		WHERE correlation_id = $1`

	result, err := s.db.Exec(ctx, query, req.CorrelationID, receivedJSON, req.Status)
	if err != nil {
		return fmt.Errorf("failed to update pending request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("pending request", req.CorrelationID)
	}

	return nil
}

// Delete removes the record for the given correlation id.
func (s *PgStore) Delete(ctx context.Context, correlationID string) error {
	if correlationID == "" {
		return domain.NewValidationError("correlation_id", "correlation id is required")
	}

	result, err := s.db.Exec(ctx, `DELETE FROM pending_requests WHERE correlation_id = $1`, correlationID)
	if err != nil {
		return fmt.Errorf("failed to delete pending request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("pending request", correlationID)
	}

	return nil
}

// ListExpired returns all open requests created before the cutoff, oldest
// first. A record that fails to decode is returned as a
// domain.CorruptRecordError so the sweeper can purge it instead of
// stalling on it forever.
func (s *PgStore) ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.PendingRequest, error) {
	query := `
		SELECT correlation_id, originator, query, expected, received, status, created_at
		FROM pending_requests
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, domain.StatusOpen, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired requests: %w", err)
	}
	defer rows.Close()

	var requests []*domain.PendingRequest
	for rows.Next() {
		req, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired requests: %w", err)
	}

	return requests, nil
}

// validatePending checks the fields every write requires.
func validatePending(req *domain.PendingRequest) error {
	if req == nil {
		return domain.NewValidationError("request", "request cannot be nil")
	}
	if req.CorrelationID == "" {
		return domain.NewValidationError("correlation_id", "correlation id is required")
	}
	if req.Originator == "" {
		return domain.NewValidationError("originator", "originator is required")
	}
	if len(req.Expected) == 0 {
		return domain.NewValidationError("expected", "at least one expected worker is required")
	}
	return nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// scanPending scans a single pending request row. pgx.Row and pgx.Rows
// share the Scan signature, so one helper covers both paths.
func scanPending(row pgx.Row) (*domain.PendingRequest, error) {
	var (
		req          domain.PendingRequest
		receivedJSON []byte
	)

	err := row.Scan(
		&req.CorrelationID, &req.Originator, &req.Query,
		&req.Expected, &receivedJSON, &req.Status, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan pending request: %w", err)
	}

	if err := json.Unmarshal(receivedJSON, &req.Received); err != nil {
		return nil, domain.NewCorruptRecordError(req.CorrelationID, err)
	}
	if req.Received == nil {
		req.Received = make(map[string]string)
	}

	return &req, nil
}
