package hue

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is returned when the bridge cannot be reached at the network level.
	ErrUnreachable = errors.New("hue bridge unreachable")
	// ErrRemoteRejected is returned for non-2xx, malformed, or error responses from the bridge.
	ErrRemoteRejected = errors.New("hue bridge rejected request")
	// ErrGroupNotFound is returned when no group carries the requested name.
	ErrGroupNotFound = errors.New("group not found")
)

// Hue v1 API error types
const (
	ErrorTypeUnauthorizedUser     = 1
	ErrorTypeResourceNotAvailable = 3
	ErrorTypeLinkButtonNotPressed = 101
)

// APIError is an error reported by the bridge, either as a Hue error object
// or as a non-2xx HTTP status. It matches ErrRemoteRejected with errors.Is.
type APIError struct {
	StatusCode  int
	Type        int
	Address     string
	Description string
}

func (e *APIError) Error() string {
	if e.Type != 0 {
		return fmt.Sprintf("hue api error %d at %s: %s", e.Type, e.Address, e.Description)
	}
	if e.Description != "" {
		return fmt.Sprintf("hue api status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("hue api status %d", e.StatusCode)
}

// Is makes every APIError match ErrRemoteRejected.
func (e *APIError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// errorObject is the body of a v1 {"error": {...}} entry
type errorObject struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// resultEntry is one element of a v1 response array
type resultEntry struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *errorObject   `json:"error,omitempty"`
}

func (o *errorObject) toAPIError(status int) *APIError {
	return &APIError{
		StatusCode:  status,
		Type:        o.Type,
		Address:     o.Address,
		Description: o.Description,
	}
}
