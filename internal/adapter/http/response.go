package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// Error codes of the API error envelope.
const (
	codeInvalidParams = "invalid_parameters"
	codeOutsideAreas  = "outside_price_areas"
	codeNotFound      = "not_found"
	codeUnavailable   = "unavailable"
	codeUpstream      = "upstream_error"
	codeTimeout       = "timeout"
	codeInternal      = "internal_error"
)

var errRouteNotFound = fmt.Errorf("%w: route", domain.ErrNotFound)

// ErrorResponse is the envelope of every API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // the client may have gone away
}

// writeError maps err onto a status code and writes the error envelope.
// Messages of unclassified errors are not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "an unexpected error occurred"
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   msg,
		RequestID: RequestIDFrom(r.Context()),
	}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidParams):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, domain.ErrOutsideAreas):
		return http.StatusNotFound, codeOutsideAreas
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, codeUnavailable
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, codeUpstream
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
