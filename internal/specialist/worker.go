// Package specialist implements the property specialist worker: it consumes
// analysis sub-requests, pulls listings for the requested zip code, runs the
// profile's LLM analysis, and replies to the address named in the request.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/estateai/property-analysis-service/internal/listings"
	"github.com/estateai/property-analysis-service/internal/llm"
	"github.com/estateai/property-analysis-service/internal/observability"
	"github.com/estateai/property-analysis-service/internal/transport"
)

// analysisMaxTokens bounds the specialist completion.
const analysisMaxTokens = 2048

// Worker handles sub-request envelopes for one specialist profile.
//
// Failures never go unanswered: when the listings fetch or the LLM call
// fails, the worker still replies with an error-shaped payload so the
// requester learns the outcome instead of waiting for the deadline.
type Worker struct {
	profile  Profile
	address  string
	client   llm.Client
	listings listings.Source
	sender   transport.Sender
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewWorker creates a specialist worker. address is the transport address
// the worker consumes on; it is stamped into replies as reply_to. source may
// be nil, in which case analyses run on the request text alone.
func NewWorker(
	profile Profile,
	address string,
	client llm.Client,
	source listings.Source,
	sender transport.Sender,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		profile:  profile,
		address:  address,
		client:   client,
		listings: source,
		sender:   sender,
		logger:   observability.WithWorkerContext(logger, profile.Key, address),
		metrics:  metrics,
	}
}

// HandleEnvelope processes one inbound envelope. Request envelopes are
// analyzed and answered; close envelopes end the exchange and need no reply;
// anything else is dropped.
func (w *Worker) HandleEnvelope(ctx context.Context, env transport.Envelope) {
	switch env.Kind {
	case transport.KindRequest:
		w.handleRequest(ctx, env)
	case transport.KindClose:
		w.logger.Debug().
			Str("correlation_id", env.CorrelationID).
			Msg("exchange closed by requester")
	default:
		w.logger.Debug().
			Str("correlation_id", env.CorrelationID).
			Str("kind", env.Kind).
			Msg("dropping envelope of unexpected kind")
	}
}

func (w *Worker) handleRequest(ctx context.Context, env transport.Envelope) {
	logger := w.logger.With().Str("correlation_id", env.CorrelationID).Logger()

	if env.ReplyTo == "" {
		logger.Warn().Msg("dropping sub-request with no reply address")
		return
	}

	result, err := w.Analyze(ctx, env.Payload)
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed, replying with error payload")
		result = errorPayload(err)
	}

	reply := transport.NewResultEnvelope(env.CorrelationID, w.profile.Key, result, w.address)
	if err := w.sender.Send(ctx, env.ReplyTo, reply); err != nil {
		logger.Error().Err(err).Str("reply_to", env.ReplyTo).Msg("failed to send specialist reply")
		return
	}

	logger.Info().Int("result_bytes", len(result)).Msg("specialist reply sent")
}

// Analyze runs the profile's analysis over the request text. When the text
// names a zip code and a listings source is configured, the matching
// inventory is appended to the system prompt before the LLM call.
func (w *Worker) Analyze(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty request text")
	}

	prompt := w.profile.SystemPrompt
	if zipCode, ok := listings.ExtractZipCode(text); ok && w.listings != nil {
		inventory, err := w.fetchListings(ctx, zipCode)
		if err != nil {
			return "", err
		}
		prompt += "\n\nLISTINGS:\n" + inventory
	}

	start := time.Now()
	resp, err := w.client.Complete(ctx, llm.Request{
		System:    prompt,
		User:      text,
		MaxTokens: analysisMaxTokens,
	})
	if err != nil {
		if w.metrics != nil {
			w.metrics.RecordLLMRequestFailed("specialist", w.client.Model(), "completion")
		}
		return "", fmt.Errorf("specialist completion failed: %w", err)
	}
	if w.metrics != nil {
		w.metrics.RecordLLMRequest("specialist", resp.Model, time.Since(start).Seconds())
	}

	return strings.TrimSpace(resp.Content), nil
}

func (w *Worker) fetchListings(ctx context.Context, zipCode string) (string, error) {
	inventory, err := w.listings.FetchByZip(ctx, zipCode)
	if err != nil {
		return "", fmt.Errorf("listings fetch for zip %s failed: %w", zipCode, err)
	}

	w.logger.Debug().Str("zip_code", zipCode).Int("listings", len(inventory)).Msg("fetched listings")

	encoded, err := json.Marshal(inventory)
	if err != nil {
		return "", fmt.Errorf("failed to encode listings: %w", err)
	}
	return string(encoded), nil
}

// errorPayload encodes a failure as the reply payload so the requester sees
// a terminal outcome for this worker key.
func errorPayload(err error) string {
	encoded, marshalErr := json.Marshal(map[string]string{
		"error":  "analysis_failed",
		"detail": err.Error(),
	})
	if marshalErr != nil {
		return `{"error":"analysis_failed"}`
	}
	return string(encoded)
}
