package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newOpenRequest() *PendingRequest {
	return &PendingRequest{
		CorrelationID: "corr-1",
		Originator:    "estate.replies.client",
		Query:         "analyze rentals in 06103",
		Expected:      []string{"single_family", "multi_family", "condo"},
		Received:      map[string]string{},
		Status:        StatusOpen,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusOpen.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusTimedOut.IsTerminal())
}

func TestIsExpected(t *testing.T) {
	req := newOpenRequest()

	assert.True(t, req.IsExpected("condo"))
	assert.False(t, req.IsExpected("townhouse"))
	assert.False(t, req.IsExpected(""))
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		name     string
		received map[string]string
		want     []string
	}{
		{
			name:     "nothing received",
			received: map[string]string{},
			want:     []string{"condo", "multi_family", "single_family"},
		},
		{
			name:     "partial coverage",
			received: map[string]string{"multi_family": "ok"},
			want:     []string{"condo", "single_family"},
		},
		{
			name: "full coverage",
			received: map[string]string{
				"single_family": "a",
				"multi_family":  "b",
				"condo":         "c",
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newOpenRequest()
			req.Received = tt.received
			assert.Equal(t, tt.want, req.Remaining())
			assert.Equal(t, len(tt.want) == 0, req.Complete())
		})
	}
}

func TestExpired(t *testing.T) {
	req := newOpenRequest()
	req.CreatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	deadline := 30 * time.Second

	assert.False(t, req.Expired(req.CreatedAt.Add(29*time.Second), deadline))
	assert.False(t, req.Expired(req.CreatedAt.Add(30*time.Second), deadline))
	assert.True(t, req.Expired(req.CreatedAt.Add(31*time.Second), deadline))
}

func TestTypedErrorsUnwrap(t *testing.T) {
	assert.True(t, errors.Is(NewNotFoundError("pending request", "x"), ErrNotFound))
	assert.True(t, errors.Is(NewAlreadyExistsError("pending request", "x"), ErrAlreadyExists))
	assert.True(t, errors.Is(NewValidationError("query", "required"), ErrInvalidInput))
	assert.True(t, errors.Is(&CorruptRecordError{CorrelationID: "x"}, ErrCorruptRecord))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "pending request not found: abc", NewNotFoundError("pending request", "abc").Error())
	assert.Equal(t, "validation error: query: required", NewValidationError("query", "required").Error())
}
