package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Compile-time interface verification.
var _ Client = (*RateLimitedClient)(nil)

// RateLimitedClient wraps a Client with a token bucket rate limiter so a
// burst of concurrent analyses cannot exhaust the provider's quota. It is
// safe for concurrent use because the underlying rate.Limiter is
// goroutine-safe for all operations.
type RateLimitedClient struct {
	client  Client
	limiter *rate.Limiter
}

// NewRateLimitedClient creates a rate-limited wrapper around client.
// ratePerSecond is the sustained rate of requests per second, burst the
// maximum number of tokens that can be consumed at once. A non-positive
// burst defaults to 1.
func NewRateLimitedClient(client Client, ratePerSecond float64, burst int) *RateLimitedClient {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Complete blocks until the limiter admits the request, then delegates to
// the wrapped client.
func (c *RateLimitedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter wait: %w", c.client.Provider(), err)
	}
	return c.client.Complete(ctx, req)
}

// Provider returns the wrapped client's provider name.
func (c *RateLimitedClient) Provider() string {
	return c.client.Provider()
}

// Model returns the wrapped client's model identifier.
func (c *RateLimitedClient) Model() string {
	return c.client.Model()
}
