package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estateai/property-analysis-service/internal/database"
	"github.com/estateai/property-analysis-service/internal/domain"
	"github.com/estateai/property-analysis-service/internal/store"
)

type fakeDispatcher struct {
	correlationID string
	err           error
	lastText      string
	lastReplyTo   string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, requestText, originator string) (string, error) {
	f.lastText = requestText
	f.lastReplyTo = originator
	if f.err != nil {
		return "", f.err
	}
	return f.correlationID, nil
}

type fakeHealth struct {
	status database.HealthStatus
}

func (f *fakeHealth) Health(context.Context) database.HealthStatus {
	return f.status
}

func newTestServer(dispatcher Dispatcher, pending store.PendingStore, health HealthChecker) *Server {
	return NewServer(Config{Address: "127.0.0.1:0", MetricsPath: "/metrics"}, dispatcher, pending, health, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *strings.Reader
	if body == "" {
		reqBody = strings.NewReader("")
	} else {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStartAnalysis(t *testing.T) {
	dispatcher := &fakeDispatcher{correlationID: "corr-1"}
	s := newTestServer(dispatcher, store.NewMemoryStore(), nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/analyses",
		`{"query":"rentals in 94107","reply_to":"peer.user.1"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp startAnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "corr-1", resp.CorrelationID)
	assert.Equal(t, "open", resp.Status)
	assert.Equal(t, "rentals in 94107", dispatcher.lastText)
	assert.Equal(t, "peer.user.1", dispatcher.lastReplyTo)
}

func TestStartAnalysis_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: `{`, want: "invalid JSON"},
		{name: "missing query", body: `{"reply_to":"peer.user.1"}`, want: "query is required"},
		{name: "blank query", body: `{"query":"   ","reply_to":"peer.user.1"}`, want: "query is required"},
		{name: "short query", body: `{"query":"ab","reply_to":"peer.user.1"}`, want: "at least 3"},
		{name: "long query", body: `{"query":"` + strings.Repeat("a", maxQueryLength+1) + `","reply_to":"peer.user.1"}`, want: "at most"},
		{name: "missing reply_to", body: `{"query":"rentals in 94107"}`, want: "reply_to is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &fakeDispatcher{correlationID: "corr-1"}
			s := newTestServer(dispatcher, store.NewMemoryStore(), nil)

			rec := doRequest(t, s, http.MethodPost, "/api/v1/analyses", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, dispatcher.lastText, "dispatcher must not be called")
		})
	}
}

func TestStartAnalysis_DomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no workers", err: domain.ErrNoWorkersConfigured, want: http.StatusServiceUnavailable},
		{name: "validation", err: domain.NewValidationError("query", "empty"), want: http.StatusBadRequest},
		{name: "internal", err: domain.ErrInternalError, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeDispatcher{err: tt.err}, store.NewMemoryStore(), nil)

			rec := doRequest(t, s, http.MethodPost, "/api/v1/analyses",
				`{"query":"rentals in 94107","reply_to":"peer.user.1"}`)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetAnalysisStatus(t *testing.T) {
	pending := store.NewMemoryStore()
	created := time.Now().UTC().Add(-10 * time.Second).Truncate(time.Millisecond)
	require.NoError(t, pending.Create(context.Background(), &domain.PendingRequest{
		CorrelationID: "corr-1",
		Originator:    "peer.user.1",
		Query:         "rentals in 94107",
		Expected:      []string{"condo", "single_family"},
		Received:      map[string]string{"condo": "analysis text"},
		Status:        domain.StatusOpen,
		CreatedAt:     created,
	}))

	s := newTestServer(&fakeDispatcher{}, pending, nil)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/analyses/corr-1", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp analysisStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "corr-1", resp.CorrelationID)
	assert.Equal(t, "open", resp.Status)
	assert.Equal(t, []string{"condo", "single_family"}, resp.Expected)
	assert.Equal(t, []string{"single_family"}, resp.Remaining)
	assert.Equal(t, map[string]string{"condo": "analysis text"}, resp.Received)
	assert.InDelta(t, 10, resp.AgeSeconds, 2)
}

func TestGetAnalysisStatus_NotFound(t *testing.T) {
	s := newTestServer(&fakeDispatcher{}, store.NewMemoryStore(), nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/analyses/no-such-id", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "resource not found")
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("healthz always ok", func(t *testing.T) {
		s := newTestServer(&fakeDispatcher{}, store.NewMemoryStore(), nil)
		rec := doRequest(t, s, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz without health checker", func(t *testing.T) {
		s := newTestServer(&fakeDispatcher{}, store.NewMemoryStore(), nil)
		rec := doRequest(t, s, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "memory")
	})

	t.Run("readyz healthy store", func(t *testing.T) {
		health := &fakeHealth{status: database.HealthStatus{Status: "healthy"}}
		s := newTestServer(&fakeDispatcher{}, store.NewMemoryStore(), health)
		rec := doRequest(t, s, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz unhealthy store", func(t *testing.T) {
		health := &fakeHealth{status: database.HealthStatus{Status: "unhealthy", Error: "connection refused"}}
		s := newTestServer(&fakeDispatcher{}, store.NewMemoryStore(), health)
		rec := doRequest(t, s, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_ready")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeDispatcher{}, store.NewMemoryStore(), nil)
	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	s := newTestServer(&fakeDispatcher{}, store.NewMemoryStore(), nil)

	t.Run("echoes provided id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Correlation-ID", "given-id")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "given-id", rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("generates id when absent", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/healthz", "")
		assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	})
}
