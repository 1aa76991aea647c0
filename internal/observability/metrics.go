package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the property analysis service.
// Metrics are organized by subsystem: dispatch, replies, completion, sweep,
// selector, and LLM operations. All counters and histograms are registered via
// promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// DispatchesStarted counts the total number of analysis requests dispatched.
	DispatchesStarted prometheus.Counter

	// DispatchesRejected counts dispatches rejected because no workers were configured.
	DispatchesRejected prometheus.Counter

	// SubRequestsSent counts sub-requests sent to workers, labeled by worker key.
	SubRequestsSent *prometheus.CounterVec

	// SubRequestSendFailures counts failed sub-request sends, labeled by worker key.
	SubRequestSendFailures *prometheus.CounterVec

	// WorkersPerDispatch observes the number of workers targeted per dispatch.
	WorkersPerDispatch prometheus.Histogram

	// RepliesReceived counts valid worker replies merged, labeled by worker key.
	RepliesReceived *prometheus.CounterVec

	// RepliesUnknown counts replies bearing a correlation id with no open record.
	RepliesUnknown prometheus.Counter

	// RepliesUnexpectedKey counts replies from worker keys outside the expected set.
	RepliesUnexpectedKey prometheus.Counter

	// RepliesDuplicate counts replies for a key already present in received.
	RepliesDuplicate prometheus.Counter

	// RequestsCompleted counts requests that reached full reply coverage.
	RequestsCompleted prometheus.Counter

	// RequestsTimedOut counts requests force-completed by the sweeper.
	RequestsTimedOut prometheus.Counter

	// RequestDuration observes time from dispatch to terminal transition in seconds.
	RequestDuration prometheus.Histogram

	// OpenRequests tracks the number of currently open pending requests.
	OpenRequests prometheus.Gauge

	// SweepErrors counts per-record failures during sweep passes.
	SweepErrors prometheus.Counter

	// SelectorRequests counts selector invocations.
	SelectorRequests prometheus.Counter

	// SelectorFallbacks counts selector invocations that fell back to the full worker set.
	SelectorFallbacks prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Dispatch
		DispatchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_started_total",
			Help:      "Total number of analysis requests dispatched",
		}),
		DispatchesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_rejected_total",
			Help:      "Total number of dispatches rejected due to missing worker configuration",
		}),
		SubRequestsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sub_requests_sent_total",
			Help:      "Total number of sub-requests sent to workers",
		}, []string{"worker_key"}),
		SubRequestSendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sub_request_send_failures_total",
			Help:      "Total number of sub-request sends that failed",
		}, []string{"worker_key"}),
		WorkersPerDispatch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workers_per_dispatch",
			Help:      "Number of workers targeted per dispatch",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),

		// Replies
		RepliesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_received_total",
			Help:      "Total number of valid worker replies merged",
		}, []string{"worker_key"}),
		RepliesUnknown: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_unknown_total",
			Help:      "Total number of replies with an unknown correlation id",
		}),
		RepliesUnexpectedKey: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_unexpected_key_total",
			Help:      "Total number of replies from worker keys outside the expected set",
		}),
		RepliesDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_duplicate_total",
			Help:      "Total number of duplicate replies for an already received key",
		}),

		// Completion
		RequestsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Total number of requests completed with full reply coverage",
		}),
		RequestsTimedOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_timed_out_total",
			Help:      "Total number of requests force-completed by the timeout sweeper",
		}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from dispatch to terminal transition in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		OpenRequests: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_requests",
			Help:      "Number of currently open pending requests",
		}),
		SweepErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Total number of per-record failures during sweep passes",
		}),

		// Selector
		SelectorRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_requests_total",
			Help:      "Total number of selector invocations",
		}),
		SelectorFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_fallbacks_total",
			Help:      "Total number of selector invocations that fell back to the full worker set",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
	}
}

// RecordDispatch records a dispatched request and its fan-out width.
func (m *Metrics) RecordDispatch(workerCount int) {
	m.DispatchesStarted.Inc()
	m.WorkersPerDispatch.Observe(float64(workerCount))
	m.OpenRequests.Inc()
}

// RecordDispatchRejected records a dispatch rejected for missing worker configuration.
func (m *Metrics) RecordDispatchRejected() {
	m.DispatchesRejected.Inc()
}

// RecordSubRequestSent records a sub-request sent to a worker.
func (m *Metrics) RecordSubRequestSent(workerKey string) {
	m.SubRequestsSent.WithLabelValues(workerKey).Inc()
}

// RecordSubRequestSendFailed records a sub-request send failure.
func (m *Metrics) RecordSubRequestSendFailed(workerKey string) {
	m.SubRequestSendFailures.WithLabelValues(workerKey).Inc()
}

// RecordReplyReceived records a valid worker reply merged into a pending request.
func (m *Metrics) RecordReplyReceived(workerKey string) {
	m.RepliesReceived.WithLabelValues(workerKey).Inc()
}

// RecordReplyUnknown records a reply with an unknown correlation id.
func (m *Metrics) RecordReplyUnknown() {
	m.RepliesUnknown.Inc()
}

// RecordReplyUnexpectedKey records a reply from a worker outside the expected set.
func (m *Metrics) RecordReplyUnexpectedKey() {
	m.RepliesUnexpectedKey.Inc()
}

// RecordReplyDuplicate records a duplicate reply for an already received key.
func (m *Metrics) RecordReplyDuplicate() {
	m.RepliesDuplicate.Inc()
}

// RecordRequestCompleted records a request that reached full coverage.
func (m *Metrics) RecordRequestCompleted(durationSeconds float64) {
	m.RequestsCompleted.Inc()
	m.RequestDuration.Observe(durationSeconds)
	m.OpenRequests.Dec()
}

// RecordRequestTimedOut records a request force-completed by the sweeper.
func (m *Metrics) RecordRequestTimedOut(durationSeconds float64) {
	m.RequestsTimedOut.Inc()
	m.RequestDuration.Observe(durationSeconds)
	m.OpenRequests.Dec()
}

// RecordSweepError records a per-record failure during a sweep pass.
func (m *Metrics) RecordSweepError() {
	m.SweepErrors.Inc()
}

// RecordSelectorRequest records a selector invocation.
func (m *Metrics) RecordSelectorRequest() {
	m.SelectorRequests.Inc()
}

// RecordSelectorFallback records a selector fallback to the full worker set.
func (m *Metrics) RecordSelectorFallback() {
	m.SelectorFallbacks.Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
