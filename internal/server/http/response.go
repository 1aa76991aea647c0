package httpserver

import "time"

// startAnalysisResponse is returned when a request has been dispatched.
type startAnalysisResponse struct {
	CorrelationID string    `json:"correlation_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	Message       string    `json:"message"`
}

// analysisStatusResponse describes a pending request's progress. Requests
// that reached a terminal state are removed after delivery, so this is only
// available while the request is open.
type analysisStatusResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Status        string            `json:"status"`
	Originator    string            `json:"originator"`
	Expected      []string          `json:"expected"`
	Remaining     []string          `json:"remaining"`
	Received      map[string]string `json:"received"`
	CreatedAt     time.Time         `json:"created_at"`
	AgeSeconds    float64           `json:"age_seconds"`
}
