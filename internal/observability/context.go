package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	originatorKey    contextKey = "originator"
)

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext retrieves the correlation ID from context.
// Returns empty string if not present.
func CorrelationIDFromContext(ctx context.Context) string {
	if v := ctx.Value(correlationIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithOriginator adds the originator address to the context.
func WithOriginator(ctx context.Context, originator string) context.Context {
	return context.WithValue(ctx, originatorKey, originator)
}

// OriginatorFromContext retrieves the originator address from context.
// Returns empty string if not present.
func OriginatorFromContext(ctx context.Context) string {
	if v := ctx.Value(originatorKey); v != nil {
		if a, ok := v.(string); ok {
			return a
		}
	}
	return ""
}
