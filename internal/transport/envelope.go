// Package transport moves envelopes between the orchestrator, the
// specialist workers, and the originating peers.
//
// An address is an opaque string routed by the concrete transport; the
// Kafka implementation treats it as a topic name. Sends are
// fire-and-forget: a send error affects only the envelope being sent
// and never aborts the caller's wider operation.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/estateai/property-analysis-service/internal/domain"
)

// Envelope kinds. The kind discriminates how the remaining fields are
// interpreted.
const (
	// KindRequest is an orchestrator-to-worker sub-request. Payload
	// carries the query text.
	KindRequest = "request"

	// KindResult is a worker-to-orchestrator reply. Payload carries the
	// worker's result, which may itself be error-shaped.
	KindResult = "result"

	// KindClose tells the receiving peer the correlation id is finished
	// and no further messages for it will be accepted.
	KindClose = "close"
)

// Envelope is the wire unit exchanged over the transport.
type Envelope struct {
	// Kind is one of KindRequest, KindResult, KindClose.
	Kind string `json:"kind"`

	// CorrelationID ties the envelope to a pending request.
	CorrelationID string `json:"correlation_id"`

	// WorkerKey names the worker the envelope is for (request) or from
	// (result). Empty on close envelopes.
	WorkerKey string `json:"worker_key,omitempty"`

	// Payload is the query text on requests and the result text on
	// results. Empty on close envelopes.
	Payload string `json:"payload,omitempty"`

	// ReplyTo is the address the receiver should respond to.
	ReplyTo string `json:"reply_to,omitempty"`
}

// Validate checks the structural invariants for the envelope's kind.
func (e *Envelope) Validate() error {
	switch e.Kind {
	case KindRequest:
		if e.WorkerKey == "" {
			return domain.NewValidationError("worker_key", "request envelope requires a worker key")
		}
		if e.ReplyTo == "" {
			return domain.NewValidationError("reply_to", "request envelope requires a reply address")
		}
	case KindResult:
		if e.WorkerKey == "" {
			return domain.NewValidationError("worker_key", "result envelope requires a worker key")
		}
	case KindClose:
		// No extra fields required.
	default:
		return domain.NewValidationError("kind", fmt.Sprintf("unknown envelope kind %q", e.Kind))
	}

	if e.CorrelationID == "" {
		return domain.NewValidationError("correlation_id", "envelope requires a correlation id")
	}
	return nil
}

// Encode serializes the envelope for the wire.
func (e *Envelope) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses and validates a wire envelope. A decode error
// means the message should be logged and dropped; peers outside this
// service may publish arbitrary bytes to our topics.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// NewRequestEnvelope builds a sub-request envelope for a worker.
func NewRequestEnvelope(correlationID, workerKey, query, replyTo string) Envelope {
	return Envelope{
		Kind:          KindRequest,
		CorrelationID: correlationID,
		WorkerKey:     workerKey,
		Payload:       query,
		ReplyTo:       replyTo,
	}
}

// NewResultEnvelope builds a worker reply envelope.
func NewResultEnvelope(correlationID, workerKey, result, replyTo string) Envelope {
	return Envelope{
		Kind:          KindResult,
		CorrelationID: correlationID,
		WorkerKey:     workerKey,
		Payload:       result,
		ReplyTo:       replyTo,
	}
}

// NewCloseEnvelope builds a close signal for a finished correlation id.
func NewCloseEnvelope(correlationID string) Envelope {
	return Envelope{
		Kind:          KindClose,
		CorrelationID: correlationID,
	}
}

// Reply converts a result envelope into the domain reply the correlation
// engine consumes.
func (e *Envelope) Reply() domain.WorkerReply {
	return domain.WorkerReply{
		CorrelationID: e.CorrelationID,
		WorkerKey:     e.WorkerKey,
		Payload:       e.Payload,
		ReplyTo:       e.ReplyTo,
	}
}
