package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/estateai/property-analysis-service/internal/domain"
	"github.com/estateai/property-analysis-service/internal/observability"
	"github.com/estateai/property-analysis-service/internal/store"
)

// maxCorruptPerSweep bounds how many corrupt records one pass will
// delete-and-relist before giving up until the next tick.
const maxCorruptPerSweep = 5

// Sweeper periodically force-completes pending requests whose deadline
// expired, delivering partial results through the Engine.
type Sweeper struct {
	store    store.PendingStore
	engine   *Engine
	interval time.Duration
	deadline time.Duration
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewSweeper creates a sweeper that checks every interval for requests
// older than deadline.
func NewSweeper(
	pending store.PendingStore,
	engine *Engine,
	interval, deadline time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Sweeper {
	return &Sweeper{
		store:    pending,
		engine:   engine,
		interval: interval,
		deadline: deadline,
		logger:   logger.With().Str("component", "timeout_sweeper").Logger(),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("deadline", s.deadline).
		Msg("starting timeout sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("timeout sweeper stopped via context cancellation")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: every open request older than the deadline is
// forced to TimedOut. A failure on one record is logged and does not
// abort the rest of the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.listExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list expired requests")
		return
	}

	for _, req := range expired {
		if _, err := s.engine.ForceTimeout(ctx, req.CorrelationID, s.deadline); err != nil {
			s.metrics.RecordSweepError()
			s.logger.Error().Err(err).
				Str("correlation_id", req.CorrelationID).
				Msg("failed to time out request")
		}
	}
}

// listExpired fetches expired open requests, abandoning corrupt records
// along the way so one unparseable row cannot wedge the sweep.
func (s *Sweeper) listExpired(ctx context.Context) ([]*domain.PendingRequest, error) {
	cutoff := s.now().Add(-s.deadline)

	for attempt := 0; ; attempt++ {
		expired, err := s.store.ListExpired(ctx, cutoff)
		if err == nil {
			return expired, nil
		}

		var corrupt *domain.CorruptRecordError
		if !errors.As(err, &corrupt) || attempt >= maxCorruptPerSweep {
			return nil, err
		}

		s.metrics.RecordSweepError()
		s.logger.Error().Err(err).
			Str("correlation_id", corrupt.CorrelationID).
			Msg("abandoning corrupt pending request")
		if delErr := s.store.Delete(ctx, corrupt.CorrelationID); delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
			return nil, delErr
		}
	}
}
