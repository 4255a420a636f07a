// Package gateway exposes group control over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/hue"
	"github.com/dokzlo13/huegate/internal/ledger"
)

// GroupController changes the power state of a group by name
type GroupController interface {
	ToggleGroup(ctx context.Context, s *hue.Session, name string) error
	TurnOnGroup(ctx context.Context, s *hue.Session, name string) error
	TurnOffGroup(ctx context.Context, s *hue.Session, name string) error
}

// History returns recent ledger entries
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
}

// Deps holds the collaborators of a Server.
type Deps struct {
	Host       string
	Port       int
	Sessions   SessionSource
	Controller GroupController
	// History is optional; /history answers 404 without it
	History History
}

// Server is the HTTP gateway.
type Server struct {
	addr       string
	sessions   SessionSource
	controller GroupController
	history    History
	httpServer *http.Server
}

// NewServer creates a new gateway server.
func NewServer(deps Deps) *Server {
	return &Server{
		addr:       net.JoinHostPort(deps.Host, fmt.Sprint(deps.Port)),
		sessions:   deps.Sessions,
		controller: deps.Controller,
		history:    deps.History,
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no such route")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/groups", s.handleListGroups)
	r.Get("/history", s.handleHistory)

	r.Get("/toggle/{group_name}", s.groupCommand("Toggled group %s", s.controller.ToggleGroup))
	r.Get("/on/{group_name}", s.groupCommand("Turned on group %s", s.controller.TurnOnGroup))
	r.Get("/off/{group_name}", s.groupCommand("Turned off group %s", s.controller.TurnOffGroup))

	return r
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting HTTP gateway")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP gateway shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
