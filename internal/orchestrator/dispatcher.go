package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estateai/property-analysis-service/internal/domain"
	"github.com/estateai/property-analysis-service/internal/observability"
	"github.com/estateai/property-analysis-service/internal/selector"
	"github.com/estateai/property-analysis-service/internal/store"
	"github.com/estateai/property-analysis-service/internal/transport"
)

// Dispatcher accepts external analysis requests and fans them out to
// the selected specialist workers.
type Dispatcher struct {
	store        store.PendingStore
	sender       transport.Sender
	selector     selector.Selector
	workers      map[string]string
	replyAddress string
	logger       zerolog.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewDispatcher creates a dispatcher. workers maps worker key to
// transport address; replyAddress is where workers send their results.
func NewDispatcher(
	pending store.PendingStore,
	sender transport.Sender,
	sel selector.Selector,
	workers map[string]string,
	replyAddress string,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Dispatcher {
	return &Dispatcher{
		store:        pending,
		sender:       sender,
		selector:     sel,
		workers:      workers,
		replyAddress: replyAddress,
		logger:       logger.With().Str("component", "dispatcher").Logger(),
		metrics:      metrics,
		now:          time.Now,
	}
}

// Dispatch accepts one external request, selects workers, persists the
// pending record, and sends one sub-request per selected worker.
// Returns the assigned correlation id.
//
// Selection is fail-open: any selector error or empty selection falls
// back to the full configured worker set. Only an empty fallback set is
// fatal, and only to this request. A send failure for one worker is
// logged and does not abort dispatch to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, requestText, originator string) (string, error) {
	if requestText == "" {
		return "", domain.NewValidationError("query", "request text is required")
	}
	if originator == "" {
		return "", domain.NewValidationError("reply_to", "originator address is required")
	}

	correlationID := uuid.New().String()
	logger := observability.WithRequestContext(d.logger, correlationID, originator)

	selected := d.selectWorkers(ctx, requestText, logger)
	if len(selected) == 0 {
		d.metrics.RecordDispatchRejected()
		return "", domain.ErrNoWorkersConfigured
	}

	req := &domain.PendingRequest{
		CorrelationID: correlationID,
		Originator:    originator,
		Query:         requestText,
		Expected:      selected,
		Received:      make(map[string]string),
		Status:        domain.StatusOpen,
		CreatedAt:     d.now().UTC(),
	}
	if err := d.store.Create(ctx, req); err != nil {
		return "", fmt.Errorf("failed to persist pending request: %w", err)
	}

	d.metrics.RecordDispatch(len(selected))
	logger.Info().Strs("workers", selected).Msg("dispatching request")

	for _, key := range selected {
		address, ok := d.workers[key]
		if !ok {
			logger.Warn().Str("worker_key", key).Msg("selected worker has no configured address")
			continue
		}

		env := transport.NewRequestEnvelope(correlationID, key, requestText, d.replyAddress)
		if err := d.sender.Send(ctx, address, env); err != nil {
			// The worker never sees the sub-request and will surface as
			// missing at completion or timeout.
			d.metrics.RecordSubRequestSendFailed(key)
			logger.Error().Err(err).Str("worker_key", key).Msg("failed to send sub-request")
			continue
		}
		d.metrics.RecordSubRequestSent(key)
	}

	return correlationID, nil
}

// selectWorkers runs the selector and applies the fail-open fallback to
// the full configured set.
func (d *Dispatcher) selectWorkers(ctx context.Context, requestText string, logger zerolog.Logger) []string {
	d.metrics.RecordSelectorRequest()

	selected, err := d.selector.Select(ctx, requestText)
	if err == nil && len(selected) > 0 {
		return selected
	}

	if err != nil {
		logger.Warn().Err(err).Msg("selector failed, falling back to all workers")
	} else {
		logger.Warn().Msg("selector returned no workers, falling back to all workers")
	}
	d.metrics.RecordSelectorFallback()

	return d.allWorkerKeys()
}

// allWorkerKeys returns every configured worker key, sorted.
func (d *Dispatcher) allWorkerKeys() []string {
	keys := make([]string, 0, len(d.workers))
	for k := range d.workers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
