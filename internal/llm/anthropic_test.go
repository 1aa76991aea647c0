package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check that AnthropicClient implements Client.
var _ Client = (*AnthropicClient)(nil)

// newAnthropicTestClient creates an AnthropicClient pointed at the test server.
func newAnthropicTestClient(t *testing.T, serverURL string, maxRetries int) *AnthropicClient {
	t.Helper()
	cfg := AnthropicConfig{
		APIKey:  "test-api-key",
		Model:   "claude-sonnet-4-20250514",
		BaseURL: serverURL,
	}
	client := NewAnthropicClient(cfg, 0.0, 10*time.Second, maxRetries)
	client.retryDelay = time.Millisecond
	return client
}

func TestAnthropicClient_Complete(t *testing.T) {
	t.Run("successful completion returns first text block", func(t *testing.T) {
		var receivedReq messagesRequest
		var receivedAPIKey, receivedVersion string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedAPIKey = r.Header.Get("x-api-key")
			receivedVersion = r.Header.Get("anthropic-version")

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &receivedReq))

			resp := messagesResponse{
				ID:    "msg_123",
				Model: "claude-sonnet-4-20250514",
				Content: []contentBlock{
					{Type: "text", Text: "The condo market in this area favors buyers."},
				},
				Usage: anthropicUsage{InputTokens: 80, OutputTokens: 30},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		t.Cleanup(server.Close)

		client := newAnthropicTestClient(t, server.URL, 0)
		resp, err := client.Complete(context.Background(), Request{
			System: "You are a condo market specialist.",
			User:   "Evaluate this condo listing.",
		})

		require.NoError(t, err)
		assert.Equal(t, "The condo market in this area favors buyers.", resp.Content)
		assert.Equal(t, "claude-sonnet-4-20250514", resp.Model)
		assert.Equal(t, 80, resp.Usage.InputTokens)

		assert.Equal(t, "test-api-key", receivedAPIKey)
		assert.Equal(t, anthropicAPIVersion, receivedVersion)
		assert.Equal(t, "You are a condo market specialist.", receivedReq.System)
		require.Len(t, receivedReq.Messages, 1)
		assert.Equal(t, RoleUser, receivedReq.Messages[0].Role)
	})

	t.Run("skips non-text content blocks", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(messagesResponse{
				Content: []contentBlock{
					{Type: "thinking"},
					{Type: "text", Text: "answer"},
				},
			})
		}))
		t.Cleanup(server.Close)

		client := newAnthropicTestClient(t, server.URL, 0)
		resp, err := client.Complete(context.Background(), Request{User: "q"})

		require.NoError(t, err)
		assert.Equal(t, "answer", resp.Content)
	})

	t.Run("retries rate limit responses", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(anthropicErrorResponse{
					Error: anthropicAPIErrorDetail{Type: "rate_limit_error", Message: "slow down"},
				})
				return
			}
			json.NewEncoder(w).Encode(messagesResponse{
				Content: []contentBlock{{Type: "text", Text: "ok"}},
			})
		}))
		t.Cleanup(server.Close)

		client := newAnthropicTestClient(t, server.URL, 2)
		resp, err := client.Complete(context.Background(), Request{User: "q"})

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry authentication errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(anthropicErrorResponse{
				Error: anthropicAPIErrorDetail{Type: "authentication_error", Message: "bad key"},
			})
		}))
		t.Cleanup(server.Close)

		client := newAnthropicTestClient(t, server.URL, 3)
		_, err := client.Complete(context.Background(), Request{User: "q"})

		require.Error(t, err)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "authentication_error", apiErr.Type)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("fails on response without text blocks", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(messagesResponse{
				Content: []contentBlock{{Type: "thinking"}},
			})
		}))
		t.Cleanup(server.Close)

		client := newAnthropicTestClient(t, server.URL, 0)
		_, err := client.Complete(context.Background(), Request{User: "q"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no text content blocks")
	})
}

func TestAPIError_IsTransient(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{"network error", 0, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Provider: "openai", StatusCode: tt.statusCode}
			assert.Equal(t, tt.want, err.IsTransient())
		})
	}
}
