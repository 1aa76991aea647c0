// Package domain defines the core types for the property analysis
// orchestration service: the in-flight pending request, inbound worker
// replies, and the error taxonomy shared across packages.
package domain

import (
	"sort"
	"time"
)

// RequestStatus represents the lifecycle state of a pending request.
type RequestStatus string

// Pending request statuses. Open is the only non-terminal state; a request
// transitions to exactly one of the terminal states and is then removed
// from the store.
const (
	// StatusOpen indicates the request is still waiting for worker replies.
	StatusOpen RequestStatus = "open"

	// StatusCompleted indicates every expected worker replied.
	StatusCompleted RequestStatus = "completed"

	// StatusTimedOut indicates the deadline expired before full coverage.
	StatusTimedOut RequestStatus = "timed_out"
)

// IsTerminal reports whether the status permits no further mutation.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusTimedOut
}

// PendingRequest is the unit of in-flight orchestration state. One record
// exists per dispatched analysis request, keyed by CorrelationID, from
// dispatch until the terminal transition removes it.
//
// Expected is fixed at creation and never mutated afterward. Received grows
// monotonically and only ever holds keys that are members of Expected.
type PendingRequest struct {
	// CorrelationID is the opaque unique key tying sub-requests and replies
	// back to this request. Immutable.
	CorrelationID string `json:"correlation_id"`

	// Originator is the transport address to deliver the aggregated result to.
	Originator string `json:"originator"`

	// Query is the original request text forwarded to each worker.
	Query string `json:"query"`

	// Expected is the set of worker keys this request was dispatched to.
	// Non-empty at creation, immutable afterward.
	Expected []string `json:"expected"`

	// Received maps worker key to result payload. Keys are always a subset
	// of Expected. Last write wins for duplicate replies.
	Received map[string]string `json:"received"`

	// Status is the lifecycle state of the request.
	Status RequestStatus `json:"status"`

	// CreatedAt anchors the deadline computation.
	CreatedAt time.Time `json:"created_at"`
}

// IsExpected reports whether key is a member of the expected set.
func (p *PendingRequest) IsExpected(key string) bool {
	for _, k := range p.Expected {
		if k == key {
			return true
		}
	}
	return false
}

// Remaining returns the expected keys that have not yet replied, sorted.
func (p *PendingRequest) Remaining() []string {
	var remaining []string
	for _, k := range p.Expected {
		if _, ok := p.Received[k]; !ok {
			remaining = append(remaining, k)
		}
	}
	sort.Strings(remaining)
	return remaining
}

// Complete reports whether every expected worker has replied.
func (p *PendingRequest) Complete() bool {
	return len(p.Remaining()) == 0
}

// Age returns the elapsed time since the request was created.
func (p *PendingRequest) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// Expired reports whether the request has outlived the deadline.
func (p *PendingRequest) Expired(now time.Time, deadline time.Duration) bool {
	return p.Age(now) > deadline
}

// WorkerReply is an inbound message from a worker. Malformed replies are
// discarded at the transport boundary and never reach the engine.
type WorkerReply struct {
	// CorrelationID identifies the pending request this reply belongs to.
	CorrelationID string `json:"correlation_id"`

	// WorkerKey names the worker that produced the payload.
	WorkerKey string `json:"worker_key"`

	// Payload is the opaque result text. An error-shaped payload from a
	// worker whose downstream call failed is still a valid reply.
	Payload string `json:"payload"`

	// ReplyTo is the peer address to send the close signal to.
	ReplyTo string `json:"reply_to"`
}
