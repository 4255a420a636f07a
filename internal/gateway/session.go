package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/credentials"
	"github.com/dokzlo13/huegate/internal/hue"
)

// SessionSource hands out the session used for bridge calls
type SessionSource interface {
	Session(ctx context.Context) (*hue.Session, error)
	// Invalidate drops a cached session so the next call reloads credentials
	Invalidate()
}

// StoredSessions opens a session from the credential file on first use and
// keeps it. Until a load succeeds every call retries, so credentials written
// by a later registration are picked up without a restart.
type StoredSessions struct {
	store *credentials.Store
	opts  []hue.Option

	mu      sync.Mutex
	session *hue.Session
}

// NewStoredSessions creates a source backed by store
func NewStoredSessions(store *credentials.Store, opts ...hue.Option) *StoredSessions {
	return &StoredSessions{store: store, opts: opts}
}

// Session implements SessionSource
func (s *StoredSessions) Session(ctx context.Context) (*hue.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return s.session, nil
	}

	cred, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	s.session = hue.Open(cred, s.opts...)
	log.Info().
		Str("bridge", cred.IPAddress).
		Str("path", s.store.Path()).
		Msg("Bridge session opened")

	return s.session, nil
}

// Invalidate implements SessionSource
func (s *StoredSessions) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}
