package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/config"
	"github.com/dokzlo13/huegate/internal/credentials"
	"github.com/dokzlo13/huegate/internal/db"
	"github.com/dokzlo13/huegate/internal/eventbus"
	"github.com/dokzlo13/huegate/internal/gateway"
	"github.com/dokzlo13/huegate/internal/hue"
	"github.com/dokzlo13/huegate/internal/ledger"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure; DB and Ledger are nil when no database is configured
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	Credentials *credentials.Store
	Controller  *hue.Controller

	// High-level services
	Recorder *LedgerService
	Gateway  *GatewayService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)

	if err := s.openLedger(); err != nil {
		s.Close()
		return nil, err
	}

	s.Credentials = credentials.NewStore(cfg.Credentials.Path)
	s.Controller = hue.NewController(s.Bus)

	deps := gateway.Deps{
		Sessions:   gateway.NewStoredSessions(s.Credentials, hue.WithTimeout(cfg.Hue.Timeout.Duration())),
		Controller: s.Controller,
	}
	if s.Ledger != nil {
		deps.History = s.Ledger
	}
	s.Gateway = NewGatewayService(cfg, deps)

	return s, nil
}

// openLedger opens the database and subscribes the ledger to the bus when enabled.
func (s *Services) openLedger() error {
	if !s.cfg.LedgerEnabled() {
		log.Info().Msg("No database configured, command history is disabled")
		return nil
	}

	database, err := db.Open(s.cfg.Database.Path)
	if err != nil {
		return err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)

	s.Recorder = NewLedgerService(s.cfg, s.Ledger)
	s.Recorder.Attach(s.Bus)
	return nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a service cannot keep running.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if s.Recorder != nil {
		s.Recorder.Start(ctx)
	}
	s.Gateway.Start(ctx, onFatalError)
	return nil
}

// Stop gracefully stops all services. The context driving Start must be
// cancelled first.
func (s *Services) Stop() error {
	timeout := s.cfg.ShutdownTimeout.Duration()

	if s.Gateway != nil {
		select {
		case <-s.Gateway.Done():
		case <-time.After(timeout):
			log.Warn().Dur("timeout", timeout).Msg("HTTP gateway did not stop in time")
		}
	}

	s.Close()
	return nil
}

// Close releases all resources. Pending bus events are delivered before the
// database is closed.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}
