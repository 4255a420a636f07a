package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/config"
	"github.com/dokzlo13/huegate/internal/credentials"
)

// App runs the gateway and the command history around it.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Start initializes and starts all services.
// The provided context is used for cancellation.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	// Fatal error handler - cancels the app context to trigger shutdown
	onFatalError := func(err error) {
		log.Error().Err(err).Msg("Fatal error, initiating shutdown")
		a.cancel()
	}

	paired := a.reportPairing()

	if err := a.services.Start(a.ctx, onFatalError); err != nil {
		return err
	}

	log.Info().
		Str("addr", a.services.Gateway.server.Addr()).
		Bool("paired", paired).
		Bool("history", a.cfg.LedgerEnabled()).
		Msg("huegate started")
	return nil
}

// reportPairing logs whether a bridge credential is on disk. The gateway
// starts either way and answers 503 on group routes until one appears.
func (a *App) reportPairing() bool {
	store := a.services.Credentials

	cred, err := store.Load()
	switch {
	case err == nil:
		log.Info().
			Str("bridge", cred.IPAddress).
			Str("path", store.Path()).
			Msg("Using stored bridge credentials")
		return true
	case errors.Is(err, credentials.ErrNotFound):
		log.Warn().
			Str("path", store.Path()).
			Msg("Not paired with a bridge yet, run huegate-register; group commands fail until then")
	default:
		log.Error().
			Err(err).
			Str("path", store.Path()).
			Msg("Stored bridge credentials are unusable, run huegate-register again")
	}
	return false
}

// Stop gracefully shuts down all services.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.cancel != nil {
		a.cancel()
	}

	if a.services != nil {
		return a.services.Stop()
	}

	return nil
}

// Wait blocks until the application context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
