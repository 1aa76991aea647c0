package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default request timeout for listings calls.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default sustained requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default rate limiter burst.
	DefaultBurstSize = 5

	// DefaultMaxRetries is the default number of retry attempts on
	// throttling and server errors.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base delay between retries when the server
	// does not send a Retry-After header.
	DefaultRetryDelay = time.Second

	// maxResponseSize bounds listings responses to 10MB.
	maxResponseSize = 10 * 1024 * 1024
)

// Config holds configuration for the listings API client.
type Config struct {
	// BaseURL is the listings API base URL. Required.
	BaseURL string

	// APIKey is an optional API key sent in the X-API-Key header.
	APIKey string

	// Timeout is the per-request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to 5.
	RateLimit float64

	// BurstSize is the maximum burst of requests. Defaults to 5.
	BurstSize int

	// MaxRetries is the maximum retry attempts on 429 and 5xx responses.
	// Defaults to 3.
	MaxRetries int

	// RetryDelay is the base delay between retries. Defaults to 1s.
	RetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// Client fetches property listings over HTTP with rate limiting and retries.
// It is safe for concurrent use.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

var _ Source = (*Client)(nil)

// NewClient creates a listings API client.
func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("listings base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid listings base URL: %w", err)
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
	}, nil
}

// FetchByZip returns the listings for a zip code. The upstream may respond
// with either a bare array or a {"properties": [...]} envelope; both decode.
func (c *Client) FetchByZip(ctx context.Context, zipCode string) ([]Listing, error) {
	zipCode = strings.TrimSpace(zipCode)
	if len(zipCode) != 5 {
		return nil, fmt.Errorf("invalid zip code %q", zipCode)
	}

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/api/properties/zipcode/" + url.PathEscape(zipCode)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return decodeListings(body)
}

// get performs a rate-limited GET with retries on 429 and 5xx responses,
// honoring Retry-After when the server sends one.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("X-API-Key", c.config.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("listings request failed: %w", err)
			if err := c.waitForRetry(ctx, c.config.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if shouldRetry(resp.StatusCode) {
			delay := retryDelay(resp, c.config.RetryDelay)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			lastErr = fmt.Errorf("listings API returned status %d", resp.StatusCode)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(ctx, delay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("max retries exhausted after %d attempts: %w", c.config.MaxRetries+1, lastErr)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read listings response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("listings API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		return body, nil
	}

	return nil, lastErr
}

func shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// retryDelay respects the Retry-After header when present, in seconds or as
// an HTTP date, falling back to the configured base delay.
func retryDelay(resp *http.Response, fallback time.Duration) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return fallback
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return fallback
}

func (c *Client) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decodeListings(body []byte) ([]Listing, error) {
	var direct []Listing
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var envelope struct {
		Properties []Listing `json:"properties"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode listings response: %w", err)
	}
	return envelope.Properties, nil
}
