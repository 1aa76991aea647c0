// Package observability provides logging, metrics, and context helpers for
// the property analysis service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("correlation_id", id).Msg("request dispatched")
//
// Add request context to a logger:
//
//	logger = observability.WithRequestContext(logger, correlationID, originator)
//
// # Metrics
//
// Initialize and record metrics:
//
//	metrics := observability.NewMetrics("property_analysis")
//	metrics.RecordDispatch(len(workers))
//	metrics.RecordReplyReceived("condo")
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - correlation_id: pending request identifier
//   - worker_key: downstream specialist identifier (single_family, condo, ...)
//   - originator: transport address of the requesting peer
//   - address: transport address of an outbound message
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
