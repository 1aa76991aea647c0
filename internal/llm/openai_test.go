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

// Compile-time check that OpenAIClient implements Client.
var _ Client = (*OpenAIClient)(nil)

// newOpenAITestServer creates an httptest server that responds with the given handler.
func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// newOpenAITestClient creates an OpenAIClient configured to use the test server.
func newOpenAITestClient(t *testing.T, serverURL string, maxRetries int) *OpenAIClient {
	t.Helper()
	cfg := OpenAIConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o",
		BaseURL: serverURL,
	}
	client := NewOpenAIClient(cfg, 0.0, 10*time.Second, maxRetries)
	client.retryDelay = time.Millisecond
	return client
}

func TestOpenAIClient_Complete(t *testing.T) {
	t.Run("successful completion returns content and usage", func(t *testing.T) {
		var receivedReq chatRequest
		var receivedAuthHeader string

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			receivedAuthHeader = r.Header.Get("Authorization")

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			defer r.Body.Close()
			require.NoError(t, json.Unmarshal(body, &receivedReq))

			resp := chatResponse{
				ID: "chatcmpl-abc123",
				Choices: []chatChoice{
					{
						Index: 0,
						Message: chatMessage{
							Role:    "assistant",
							Content: `{"selected_workers": ["condo", "townhouse"]}`,
						},
						FinishReason: "stop",
					},
				},
				Usage: chatUsage{
					PromptTokens:     150,
					CompletionTokens: 20,
					TotalTokens:      170,
				},
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
		})

		client := newOpenAITestClient(t, server.URL, 0)
		resp, err := client.Complete(context.Background(), Request{
			System:       "You route property analysis queries.",
			User:         "Is a condo or townhouse better in this market?",
			JSONResponse: true,
		})

		require.NoError(t, err)
		assert.Equal(t, `{"selected_workers": ["condo", "townhouse"]}`, resp.Content)
		assert.Equal(t, 150, resp.Usage.InputTokens)
		assert.Equal(t, 20, resp.Usage.OutputTokens)

		assert.Equal(t, "Bearer test-api-key", receivedAuthHeader)
		require.Len(t, receivedReq.Messages, 2)
		assert.Equal(t, RoleSystem, receivedReq.Messages[0].Role)
		assert.Equal(t, RoleUser, receivedReq.Messages[1].Role)
		require.NotNil(t, receivedReq.ResponseFormat)
		assert.Equal(t, "json_object", receivedReq.ResponseFormat.Type)
	})

	t.Run("omits response format when JSON not requested", func(t *testing.T) {
		var receivedReq chatRequest
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &receivedReq))
			json.NewEncoder(w).Encode(chatResponse{
				Choices: []chatChoice{{Message: chatMessage{Content: "analysis text"}}},
			})
		})

		client := newOpenAITestClient(t, server.URL, 0)
		resp, err := client.Complete(context.Background(), Request{User: "analyze this"})

		require.NoError(t, err)
		assert.Equal(t, "analysis text", resp.Content)
		assert.Nil(t, receivedReq.ResponseFormat)
		require.Len(t, receivedReq.Messages, 1)
	})

	t.Run("retries transient errors then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(chatResponse{
				Choices: []chatChoice{{Message: chatMessage{Content: "ok"}}},
			})
		})

		client := newOpenAITestClient(t, server.URL, 3)
		resp, err := client.Complete(context.Background(), Request{User: "q"})

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(openAIErrorResponse{
				Error: openAIErrorDetail{Message: "invalid api key", Type: "invalid_request_error"},
			})
		})

		client := newOpenAITestClient(t, server.URL, 3)
		_, err := client.Complete(context.Background(), Request{User: "q"})

		require.Error(t, err)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid api key", apiErr.Message)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("exhausts retries on persistent server errors", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		client := newOpenAITestClient(t, server.URL, 2)
		_, err := client.Complete(context.Background(), Request{User: "q"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exhausted 2 retries")
	})

	t.Run("fails on empty choices", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatResponse{})
		})

		client := newOpenAITestClient(t, server.URL, 0)
		_, err := client.Complete(context.Background(), Request{User: "q"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty choices")
	})
}

func TestOpenAIClient_Defaults(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k"}, 0.0, 0, -1)

	assert.Equal(t, defaultOpenAIModel, client.Model())
	assert.Equal(t, defaultOpenAIBaseURL, client.baseURL)
	assert.Equal(t, 0, client.maxRetries)
	assert.Equal(t, "openai", client.Provider())
}
