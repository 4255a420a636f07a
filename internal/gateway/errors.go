package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/credentials"
	"github.com/dokzlo13/huegate/internal/hue"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest             = "bad_request"
	ErrCodeNotFound               = "not_found"
	ErrCodeCredentialsUnavailable = "credentials_unavailable"
	ErrCodeBridgeUnreachable      = "bridge_unreachable"
	ErrCodeBridgeRejected         = "bridge_rejected"
	ErrCodeInternal               = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Debug().Err(err).Msg("Failed to write response")
		}
	}
}

// writeText writes a plain text response.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// classify maps a domain error to the response status and code
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, hue.ErrGroupNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, credentials.ErrNotFound), errors.Is(err, credentials.ErrMalformedData):
		return http.StatusServiceUnavailable, ErrCodeCredentialsUnavailable
	case errors.Is(err, hue.ErrUnreachable):
		return http.StatusServiceUnavailable, ErrCodeBridgeUnreachable
	case errors.Is(err, hue.ErrRemoteRejected):
		return http.StatusBadGateway, ErrCodeBridgeRejected
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeFailure logs err and writes the matching error response.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Str("request_id", RequestID(r.Context())).
		Int("status", status).
		Msg("Request failed")

	writeError(w, status, code, message)
}
