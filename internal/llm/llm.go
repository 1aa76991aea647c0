// Package llm provides chat completion clients for the property
// analysis service.
//
// Two callers depend on it: the worker selector, which asks the model
// which property specialists a query concerns and requires a JSON
// response, and the specialist workers, which produce the free-text
// analysis itself. Both go through the same Client interface so the
// provider is a configuration choice, not a code path.
package llm

import "context"

// Message roles accepted by both providers.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Request is a provider-agnostic chat completion request.
type Request struct {
	// System is the system prompt. Optional.
	System string

	// User is the user message.
	User string

	// JSONResponse asks the provider for a JSON object response where
	// the API supports enforcing it. Providers without enforcement rely
	// on the prompt alone.
	JSONResponse bool

	// MaxTokens caps the response length. Zero means the provider default.
	MaxTokens int
}

// Usage contains token usage for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a provider-agnostic chat completion response.
type Response struct {
	// Content is the model's text output.
	Content string

	// Model is the model identifier that produced the response.
	Model string

	// Usage is the token usage reported by the provider.
	Usage Usage
}

// Client is the interface for LLM chat completion providers.
//
// Implementations should handle provider-specific API calls, response
// parsing, and error handling while conforming to this unified interface.
type Client interface {
	// Complete performs one chat completion. The context should be used
	// for cancellation and deadline propagation.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
