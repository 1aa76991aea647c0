package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/estateai/property-analysis-service/internal/domain"
	"github.com/estateai/property-analysis-service/internal/observability"
	"github.com/estateai/property-analysis-service/internal/store"
	"github.com/estateai/property-analysis-service/internal/transport"
)

// combinedWorkerKey labels the aggregated result envelope delivered to
// the originator, distinguishing it from individual worker replies on
// the same topic.
const combinedWorkerKey = "combined"

// Engine is the correlation core. It merges worker replies into pending
// records and drives the terminal transition, under a lock scoped to
// each correlation id.
type Engine struct {
	store      store.PendingStore
	sender     transport.Sender
	locks      *lockTable
	aggregator *Aggregator
	workers    map[string]string
	logger     zerolog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewEngine creates a correlation engine. workers maps worker key to
// transport address and is used to close conversations with peers that
// did not put a reply address on the wire.
func NewEngine(
	pending store.PendingStore,
	sender transport.Sender,
	aggregator *Aggregator,
	workers map[string]string,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		store:      pending,
		sender:     sender,
		locks:      newLockTable(),
		aggregator: aggregator,
		workers:    workers,
		logger:     logger.With().Str("component", "correlation_engine").Logger(),
		metrics:    metrics,
		now:        time.Now,
	}
}

// HandleEnvelope is the transport handler for the orchestrator's reply
// address. Only result envelopes are correlated; anything else on the
// topic is ignored.
func (e *Engine) HandleEnvelope(ctx context.Context, env transport.Envelope) {
	if env.Kind != transport.KindResult {
		e.logger.Debug().Str("kind", env.Kind).Msg("ignoring non-result envelope")
		return
	}
	e.HandleReply(ctx, env.Reply())
}

// HandleReply merges one worker reply into its pending request. Every
// exit path closes the conversation with the replying peer; only a
// valid reply from an expected worker mutates the record, and only the
// reply that achieves full coverage triggers completion.
func (e *Engine) HandleReply(ctx context.Context, reply domain.WorkerReply) {
	logger := e.logger.With().
		Str("correlation_id", reply.CorrelationID).
		Str("worker_key", reply.WorkerKey).
		Logger()

	// Cheap existence check before taking the lock. A reply for an id
	// we never knew, or one already finished, only earns the peer a
	// close signal.
	if _, err := e.store.Get(ctx, reply.CorrelationID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.metrics.RecordReplyUnknown()
			logger.Warn().Msg("reply for unknown correlation id")
		} else {
			logger.Error().Err(err).Msg("failed to look up pending request")
		}
		e.closePeer(ctx, reply, logger)
		return
	}

	e.locks.Lock(reply.CorrelationID)
	defer e.locks.Unlock(reply.CorrelationID)

	// Re-fetch under the lock: the record may have completed or timed
	// out between the check above and lock acquisition.
	req, err := e.store.Get(ctx, reply.CorrelationID)
	if err != nil || req.Status != domain.StatusOpen {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Error().Err(err).Msg("failed to re-fetch pending request")
		}
		e.closePeer(ctx, reply, logger)
		return
	}

	if !req.IsExpected(reply.WorkerKey) {
		e.metrics.RecordReplyUnexpectedKey()
		logger.Warn().Strs("expected", req.Expected).Msg("reply from unexpected worker key")
		e.closePeer(ctx, reply, logger)
		return
	}

	if _, ok := req.Received[reply.WorkerKey]; ok {
		// Last write wins. Duplicates are tolerated, not an error.
		e.metrics.RecordReplyDuplicate()
		logger.Info().Msg("duplicate reply, overwriting previous payload")
	}
	req.Received[reply.WorkerKey] = reply.Payload
	e.metrics.RecordReplyReceived(reply.WorkerKey)

	e.closePeer(ctx, reply, logger)

	if remaining := req.Remaining(); len(remaining) > 0 {
		logger.Info().Strs("remaining", remaining).Msg("merged reply, still waiting")
		if err := e.store.Update(ctx, req); err != nil {
			logger.Error().Err(err).Msg("failed to persist merged reply")
		}
		return
	}

	logger.Info().Msg("all workers replied, completing request")
	req.Status = domain.StatusCompleted
	e.finish(ctx, req, logger)
	e.metrics.RecordRequestCompleted(req.Age(e.now()).Seconds())
}

// ForceTimeout transitions one expired request to TimedOut, delivering
// whatever partial results were received. The deadline is re-checked
// under the lock, so a reply completing the request at the same instant
// wins cleanly and the sweep becomes a no-op. Returns true if the
// record was timed out by this call.
func (e *Engine) ForceTimeout(ctx context.Context, correlationID string, deadline time.Duration) (bool, error) {
	logger := e.logger.With().Str("correlation_id", correlationID).Logger()

	e.locks.Lock(correlationID)
	defer e.locks.Unlock(correlationID)

	req, err := e.store.Get(ctx, correlationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Completed elsewhere while we waited for the lock.
			return false, nil
		}
		if errors.Is(err, domain.ErrCorruptRecord) {
			// Abandon the record rather than sweeping it forever.
			logger.Error().Err(err).Msg("abandoning corrupt pending request")
			if delErr := e.store.Delete(ctx, correlationID); delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
				logger.Error().Err(delErr).Msg("failed to delete corrupt pending request")
			}
			return false, err
		}
		return false, err
	}

	if req.Status != domain.StatusOpen || !req.Expired(e.now(), deadline) {
		return false, nil
	}

	logger.Warn().
		Dur("age", req.Age(e.now())).
		Strs("missing", req.Remaining()).
		Msg("request timed out, completing with partial results")

	// Let the workers that never replied release their conversations.
	for _, key := range req.Remaining() {
		if address, ok := e.workers[key]; ok {
			e.sendClose(ctx, address, req.CorrelationID, logger)
		}
	}

	req.Status = domain.StatusTimedOut
	e.finish(ctx, req, logger)
	e.metrics.RecordRequestTimedOut(req.Age(e.now()).Seconds())
	return true, nil
}

// finish delivers the aggregated result to the originator, signals end
// of conversation, and removes the record. Callers hold the per-id lock
// and have already set the terminal status.
func (e *Engine) finish(ctx context.Context, req *domain.PendingRequest, logger zerolog.Logger) {
	output := e.aggregator.Aggregate(req.Received, req.Expected)

	env := transport.NewResultEnvelope(req.CorrelationID, combinedWorkerKey, output, "")
	if err := e.sender.Send(ctx, req.Originator, env); err != nil {
		logger.Error().Err(err).Str("originator", req.Originator).Msg("failed to deliver aggregated result")
	}
	e.sendClose(ctx, req.Originator, req.CorrelationID, logger)

	if err := e.store.Delete(ctx, req.CorrelationID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error().Err(err).Msg("failed to delete finished request")
	}
}

// closePeer signals end of conversation to the worker that sent reply.
// Best-effort: a close that cannot be delivered is only logged.
func (e *Engine) closePeer(ctx context.Context, reply domain.WorkerReply, logger zerolog.Logger) {
	address := reply.ReplyTo
	if address == "" {
		address = e.workers[reply.WorkerKey]
	}
	if address == "" {
		return
	}
	e.sendClose(ctx, address, reply.CorrelationID, logger)
}

// sendClose sends a close envelope to address. Best-effort.
func (e *Engine) sendClose(ctx context.Context, address, correlationID string, logger zerolog.Logger) {
	env := transport.NewCloseEnvelope(correlationID)
	if err := e.sender.Send(ctx, address, env); err != nil {
		logger.Debug().Err(err).Str("address", address).Msg("failed to send close signal")
	}
}

// LockCount reports the number of live per-id locks.
func (e *Engine) LockCount() int {
	return e.locks.Len()
}
