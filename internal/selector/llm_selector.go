package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/estateai/property-analysis-service/internal/llm"
)

// Compile-time interface verification.
var _ Selector = (*LLMSelector)(nil)

// selectorMaxTokens caps the routing response; a selection is a short
// JSON object, never prose.
const selectorMaxTokens = 256

// LLMSelector asks an LLM which workers a request concerns. The model
// is constrained to the configured worker keys; anything else in its
// answer is filtered out at the parsing boundary.
type LLMSelector struct {
	client llm.Client
	known  map[string]struct{}
	keys   []string
	logger zerolog.Logger
}

// NewLLMSelector creates a selector over the given worker keys. The keys
// slice fixes both the set the model may choose from and the order keys
// appear in the prompt.
func NewLLMSelector(client llm.Client, keys []string, logger zerolog.Logger) *LLMSelector {
	known := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		known[k] = struct{}{}
	}

	return &LLMSelector{
		client: client,
		known:  known,
		keys:   append([]string(nil), keys...),
		logger: logger.With().Str("component", "llm_selector").Logger(),
	}
}

// Select asks the model to route the request. Errors and unusable
// responses are returned to the caller, which applies the fail-open
// fallback; no selection failure is ever fatal here.
func (s *LLMSelector) Select(ctx context.Context, text string) ([]string, error) {
	resp, err := s.client.Complete(ctx, llm.Request{
		System:       s.systemPrompt(),
		User:         text,
		JSONResponse: true,
		MaxTokens:    selectorMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("selector completion failed: %w", err)
	}

	selected, err := s.parseSelection(resp.Content)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Strs("selected", selected).Msg("routed request")
	return selected, nil
}

// parseSelection decodes the model's answer. Two shapes are accepted:
// the canonical {"selected_workers": [...]} object and the legacy bare
// JSON array some older deployments emit. The shape is decided once,
// here, and only a clean []string leaves this function.
func (s *LLMSelector) parseSelection(content string) ([]string, error) {
	raw := strings.TrimSpace(content)

	var keys []string
	switch {
	case strings.HasPrefix(raw, "{"):
		var obj struct {
			SelectedWorkers []string `json:"selected_workers"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("selector returned invalid JSON object: %w", err)
		}
		keys = obj.SelectedWorkers
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			return nil, fmt.Errorf("selector returned invalid JSON array: %w", err)
		}
	default:
		return nil, fmt.Errorf("selector returned non-JSON response: %q", truncate(raw, 120))
	}

	var selected []string
	for _, k := range keys {
		if _, ok := s.known[k]; ok {
			selected = append(selected, k)
		} else {
			s.logger.Warn().Str("worker_key", k).Msg("selector returned unknown worker key")
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("selector returned no usable worker keys")
	}
	return selected, nil
}

// systemPrompt builds the routing instructions over the configured keys.
func (s *LLMSelector) systemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are a routing agent for a real-estate investment analysis system.\n\n")
	sb.WriteString("Your ONLY responsibility is to decide which specialized workers should ")
	sb.WriteString("analyze the user's request. You do NOT analyze properties yourself and ")
	sb.WriteString("you do NOT generate investment advice.\n\n")

	sb.WriteString("AVAILABLE WORKERS (fixed list, do not invent new ones):\n")
	for i, k := range s.keys {
		fmt.Fprintf(&sb, "%d. %q\n", i+1, k)
	}
	sb.WriteString("\n")

	sb.WriteString("ROUTING RULES:\n")
	sb.WriteString("- If the request explicitly mentions one or more property types, select ONLY those matching workers.\n")
	sb.WriteString("- If the request is general (e.g., \"analyze investment properties\", \"best rentals in 06103\"), select ALL workers.\n")
	sb.WriteString("- If ambiguous but implies rentals/investing/deals, default to ALL workers.\n\n")

	sb.WriteString("OUTPUT RULES:\n")
	sb.WriteString("- Return ONLY valid JSON (no markdown, no extra text).\n")
	sb.WriteString("- Must match EXACTLY this shape:\n")
	sb.WriteString(`{"selected_workers":["single_family","multi_family"]}`)
	sb.WriteString("\n")

	return sb.String()
}

// truncate shortens s for log and error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
