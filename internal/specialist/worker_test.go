package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estateai/property-analysis-service/internal/listings"
	"github.com/estateai/property-analysis-service/internal/llm"
	"github.com/estateai/property-analysis-service/internal/observability"
	"github.com/estateai/property-analysis-service/internal/transport"
)

var testMetrics = observability.NewMetrics("specialist_test")

const (
	testAddress = "estate.worker.single_family"
	testReplyTo = "estate.orchestrator.replies"
)

type stubClient struct {
	content string
	err     error
	lastReq llm.Request
}

func (s *stubClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, Model: "stub-model"}, nil
}

func (s *stubClient) Provider() string { return "stub" }
func (s *stubClient) Model() string    { return "stub-model" }

type stubSource struct {
	listings []listings.Listing
	err      error
	lastZip  string
}

func (s *stubSource) FetchByZip(_ context.Context, zipCode string) ([]listings.Listing, error) {
	s.lastZip = zipCode
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

func newTestWorker(t *testing.T, client llm.Client, source listings.Source) (*Worker, *transport.MemoryBus) {
	t.Helper()
	profile, err := ProfileFor("single_family")
	require.NoError(t, err)

	bus := transport.NewMemoryBus()
	worker := NewWorker(profile, testAddress, client, source, bus, zerolog.Nop(), testMetrics)
	return worker, bus
}

func receive(t *testing.T, bus *transport.MemoryBus, address string) transport.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env, err := bus.Receive(ctx, address)
	require.NoError(t, err)
	return env
}

func TestWorker_HandlesRequestAndReplies(t *testing.T) {
	client := &stubClient{content: "  SECTION 1: OVERALL SUMMARY\nStrong yields.  "}
	source := &stubSource{listings: []listings.Listing{{ID: "p1", Address: "12 Oak St", ListPrice: 850000}}}
	worker, bus := newTestWorker(t, client, source)

	worker.HandleEnvelope(context.Background(), transport.NewRequestEnvelope(
		"corr-1", "single_family", "analyze rentals in 94107", testReplyTo))

	env := receive(t, bus, testReplyTo)
	assert.Equal(t, transport.KindResult, env.Kind)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Equal(t, "single_family", env.WorkerKey)
	assert.Equal(t, testAddress, env.ReplyTo)
	assert.Equal(t, "SECTION 1: OVERALL SUMMARY\nStrong yields.", env.Payload)

	// Listings for the requested zip end up in the system prompt.
	assert.Equal(t, "94107", source.lastZip)
	assert.Contains(t, client.lastReq.System, "12 Oak St")
	assert.Contains(t, client.lastReq.System, "SINGLE-FAMILY")
	assert.Equal(t, "analyze rentals in 94107", client.lastReq.User)
	assert.Equal(t, analysisMaxTokens, client.lastReq.MaxTokens)
}

func TestWorker_NoZipSkipsListingsFetch(t *testing.T) {
	client := &stubClient{content: "analysis"}
	source := &stubSource{}
	worker, bus := newTestWorker(t, client, source)

	worker.HandleEnvelope(context.Background(), transport.NewRequestEnvelope(
		"corr-1", "single_family", "what makes a good rental?", testReplyTo))

	env := receive(t, bus, testReplyTo)
	assert.Equal(t, "analysis", env.Payload)
	assert.Empty(t, source.lastZip)
	assert.NotContains(t, client.lastReq.System, "LISTINGS:")
}

func TestWorker_LLMFailureRepliesWithErrorPayload(t *testing.T) {
	client := &stubClient{err: errors.New("model unavailable")}
	worker, bus := newTestWorker(t, client, nil)

	worker.HandleEnvelope(context.Background(), transport.NewRequestEnvelope(
		"corr-1", "single_family", "analyze 94107", testReplyTo))

	env := receive(t, bus, testReplyTo)
	assert.Equal(t, transport.KindResult, env.Kind)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(env.Payload), &payload))
	assert.Equal(t, "analysis_failed", payload["error"])
	assert.Contains(t, payload["detail"], "model unavailable")
}

func TestWorker_ListingsFailureRepliesWithErrorPayload(t *testing.T) {
	client := &stubClient{content: "unused"}
	source := &stubSource{err: errors.New("upstream down")}
	worker, bus := newTestWorker(t, client, source)

	worker.HandleEnvelope(context.Background(), transport.NewRequestEnvelope(
		"corr-1", "single_family", "analyze 94107", testReplyTo))

	env := receive(t, bus, testReplyTo)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(env.Payload), &payload))
	assert.Equal(t, "analysis_failed", payload["error"])
	assert.Contains(t, payload["detail"], "94107")
}

func TestWorker_EmptyTextRepliesWithErrorPayload(t *testing.T) {
	client := &stubClient{content: "unused"}
	worker, bus := newTestWorker(t, client, nil)

	worker.HandleEnvelope(context.Background(), transport.NewRequestEnvelope(
		"corr-1", "single_family", "   ", testReplyTo))

	env := receive(t, bus, testReplyTo)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(env.Payload), &payload))
	assert.Equal(t, "analysis_failed", payload["error"])
}

func TestWorker_DropsRequestWithNoReplyAddress(t *testing.T) {
	client := &stubClient{content: "unused"}
	worker, bus := newTestWorker(t, client, nil)

	env := transport.NewRequestEnvelope("corr-1", "single_family", "analyze 94107", testReplyTo)
	env.ReplyTo = ""
	worker.HandleEnvelope(context.Background(), env)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := bus.Receive(ctx, testReplyTo)
	assert.Error(t, err, "no reply should be sent")
}

func TestWorker_IgnoresCloseAndForeignKinds(t *testing.T) {
	client := &stubClient{content: "unused"}
	worker, bus := newTestWorker(t, client, nil)

	worker.HandleEnvelope(context.Background(), transport.NewCloseEnvelope("corr-1"))
	worker.HandleEnvelope(context.Background(), transport.NewResultEnvelope("corr-1", "single_family", "r", testAddress))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := bus.Receive(ctx, testReplyTo)
	assert.Error(t, err)
	assert.Empty(t, client.lastReq.User, "no completion should run")
}

func TestProfileFor(t *testing.T) {
	for _, key := range []string{"single_family", "multi_family", "condo", "townhouse"} {
		profile, err := ProfileFor(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, profile.Key)
		assert.Contains(t, profile.SystemPrompt, "TOP 5")
		assert.Contains(t, profile.SystemPrompt, "STRONG BUY")
	}

	_, err := ProfileFor("mansion")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mansion")
}

func TestProfileKeys(t *testing.T) {
	keys := ProfileKeys()
	assert.ElementsMatch(t, []string{"single_family", "multi_family", "condo", "townhouse"}, keys)
}

func TestWorker_PromptsDifferPerProfile(t *testing.T) {
	seen := map[string]bool{}
	for _, key := range ProfileKeys() {
		profile, err := ProfileFor(key)
		require.NoError(t, err)
		upper := strings.ToUpper(strings.ReplaceAll(key, "_", "-"))
		assert.Contains(t, profile.SystemPrompt, upper)
		assert.False(t, seen[profile.SystemPrompt], "prompt for %s duplicates another profile", key)
		seen[profile.SystemPrompt] = true
	}
}
