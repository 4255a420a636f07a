package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/config"
	"github.com/dokzlo13/huegate/internal/gateway"
)

// GatewayService wraps the HTTP gateway server.
type GatewayService struct {
	cfg    *config.Config
	server *gateway.Server
	done   chan struct{}
}

// NewGatewayService creates a new GatewayService.
func NewGatewayService(cfg *config.Config, deps gateway.Deps) *GatewayService {
	deps.Host = cfg.Server.Host
	deps.Port = cfg.Server.Port
	return &GatewayService{
		cfg:    cfg,
		server: gateway.NewServer(deps),
		done:   make(chan struct{}),
	}
}

// Start runs the gateway until ctx is cancelled. A listen failure is fatal.
func (s *GatewayService) Start(ctx context.Context, onFatalError func(error)) {
	go func() {
		defer close(s.done)
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Str("addr", s.server.Addr()).Msg("HTTP gateway error")
			if onFatalError != nil {
				onFatalError(fmt.Errorf("http gateway: %w", err))
			}
		}
	}()
}

// Done is closed once the server has stopped.
func (s *GatewayService) Done() <-chan struct{} {
	return s.done
}
