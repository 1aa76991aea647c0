package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/estateai/property-analysis-service/internal/domain"
)

// Validation constants.
const (
	minQueryLength     = 3
	maxQueryLength     = 10000
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// startAnalysisRequest is the JSON request body for starting an analysis.
// reply_to is the transport address the combined result is delivered to.
type startAnalysisRequest struct {
	Query   string `json:"query" validate:"required,min=3,max=10000"`
	ReplyTo string `json:"reply_to" validate:"required"`
}

var validate = validator.New()

// validationMessage renders one field error in the API's terms.
func validationMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Query":
		switch fe.Tag() {
		case "required":
			return "query is required"
		case "min":
			return fmt.Sprintf("query must be at least %s characters", fe.Param())
		case "max":
			return fmt.Sprintf("query must be at most %s characters", fe.Param())
		}
	case "ReplyTo":
		return "reply_to is required"
	}
	return "invalid request"
}

// startAnalysis handles POST /api/v1/analyses. It validates the request,
// dispatches it to the selected specialists, and returns the correlation id
// the caller can poll and correlate the delivered result with.
func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startAnalysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	req.ReplyTo = strings.TrimSpace(req.ReplyTo)
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			writeError(w, http.StatusBadRequest, validationMessage(fieldErrs[0]))
		} else {
			writeError(w, http.StatusBadRequest, "invalid request")
		}
		return
	}

	correlationID, err := s.dispatcher.Dispatch(ctx, req.Query, req.ReplyTo)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, startAnalysisResponse{
		CorrelationID: correlationID,
		Status:        string(domain.StatusOpen),
		CreatedAt:     time.Now().UTC(),
		Message:       "analysis dispatched",
	})
}

// getAnalysisStatus handles GET /api/v1/analyses/{correlationID}. Records are
// removed once the result is delivered, so a 404 also covers requests that
// already finished.
func (s *Server) getAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	correlationID := strings.TrimSpace(chi.URLParam(r, "correlationID"))
	if correlationID == "" {
		writeError(w, http.StatusBadRequest, "correlation id is required")
		return
	}

	req, err := s.store.Get(ctx, correlationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analysisStatusResponse{
		CorrelationID: req.CorrelationID,
		Status:        string(req.Status),
		Originator:    req.Originator,
		Expected:      req.Expected,
		Remaining:     req.Remaining(),
		Received:      req.Received,
		CreatedAt:     req.CreatedAt,
		AgeSeconds:    req.Age(time.Now().UTC()).Seconds(),
	})
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrNoWorkersConfigured):
		writeError(w, http.StatusServiceUnavailable, "no workers configured")
	case errors.Is(err, domain.ErrRequestClosed):
		writeError(w, http.StatusConflict, "request already closed")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
