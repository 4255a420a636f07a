package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huegate/internal/hue"
)

const defaultHistoryLimit = 50

type groupOp func(ctx context.Context, s *hue.Session, name string) error

// groupCommand builds the handler for one of the /{op}/{group_name} routes
func (s *Server) groupCommand(okFormat string, op groupOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := groupName(r)

		session, err := s.sessions.Session(r.Context())
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		if err := op(r.Context(), session, name); err != nil {
			s.invalidateOnAuthFailure(err)
			writeFailure(w, r, err)
			return
		}

		writeText(w, http.StatusOK, fmt.Sprintf(okFormat, name))
	}
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Session(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	groups, err := session.ListGroups(r.Context())
	if err != nil {
		s.invalidateOnAuthFailure(err)
		writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// invalidateOnAuthFailure drops the session when the bridge no longer knows
// the token, so a re-registration is picked up on the next request.
func (s *Server) invalidateOnAuthFailure(err error) {
	var apiErr *hue.APIError
	if errors.As(err, &apiErr) && apiErr.Type == hue.ErrorTypeUnauthorizedUser {
		s.sessions.Invalidate()
	}
}

// groupName returns the decoded {group_name} path parameter. chi routes on
// RawPath when the request has one and then the parameter is still escaped.
func groupName(r *http.Request) string {
	param := chi.URLParam(r, "group_name")
	if r.URL.RawPath == "" {
		return param
	}
	if name, err := url.PathUnescape(param); err == nil {
		return name
	}
	return param
}
