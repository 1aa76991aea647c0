// Package selector decides which property specialists a request should
// be dispatched to.
//
// The selector is treated as unreliable by contract: the dispatcher
// falls back to the full configured worker set whenever Select returns
// an error or an empty list. Nothing here may panic a request.
package selector

import "context"

// Selector maps request text to an ordered set of worker keys.
type Selector interface {
	// Select returns the worker keys the request should be dispatched
	// to. An error or empty result means the caller should fall back to
	// its full configured set.
	Select(ctx context.Context, text string) ([]string, error)
}

// Static is a Selector that always returns a fixed set of keys. Used in
// tests and in deployments that dispatch every request to every worker.
type Static struct {
	keys []string
}

// NewStatic creates a selector that always returns keys.
func NewStatic(keys []string) *Static {
	return &Static{keys: keys}
}

// Select returns the configured keys.
func (s *Static) Select(_ context.Context, _ string) ([]string, error) {
	return append([]string(nil), s.keys...), nil
}
