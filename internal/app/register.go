package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/config"
	"github.com/dokzlo13/huegate/internal/credentials"
	"github.com/dokzlo13/huegate/internal/db"
	"github.com/dokzlo13/huegate/internal/discovery"
	"github.com/dokzlo13/huegate/internal/eventbus"
	"github.com/dokzlo13/huegate/internal/hue"
	"github.com/dokzlo13/huegate/internal/ledger"
	"github.com/dokzlo13/huegate/internal/pairing"
)

// BridgeLocator finds a bridge address
type BridgeLocator interface {
	Discover(ctx context.Context) (net.IP, error)
}

// BridgePairer obtains a credential from a bridge
type BridgePairer interface {
	RegisterUntil(ctx context.Context, bridgeIP string, interval time.Duration) (credentials.Credential, error)
}

// Registration runs the first-run flow: locate a bridge, pair with it and
// persist the credential.
type Registration struct {
	cfg     *config.Config
	Locator BridgeLocator
	Pairer  BridgePairer
	Store   *credentials.Store
}

// NewRegistration creates a Registration wired from cfg. Pairing outcomes
// are published to events when it is not nil.
func NewRegistration(cfg *config.Config, events eventbus.Publisher) *Registration {
	discoveryOpts := []discovery.Option{discovery.WithWindow(cfg.Discovery.Timeout.Duration())}
	if cfg.Discovery.DisableIPv6 {
		discoveryOpts = append(discoveryOpts, discovery.WithoutIPv6())
	}
	if cfg.Discovery.CloudFallback {
		discoveryOpts = append(discoveryOpts, discovery.WithCloudFallback(nil))
	}

	agentOpts := []pairing.Option{pairing.WithDoer(hue.NewHTTPClient(cfg.Hue.Timeout.Duration()))}
	if events != nil {
		agentOpts = append(agentOpts, pairing.WithEvents(events))
	}

	return &Registration{
		cfg:     cfg,
		Locator: discovery.New(discoveryOpts...),
		Pairer:  pairing.NewAgent(cfg.Pairing.AppName, pairing.DefaultIdentity(cfg.Pairing.IdentityPath), agentOpts...),
		Store:   credentials.NewStore(cfg.Credentials.Path),
	}
}

// Run pairs with bridge, or with the configured or discovered bridge when
// bridge is empty, and saves the resulting credential.
func (r *Registration) Run(ctx context.Context, bridge string) (credentials.Credential, error) {
	address, err := r.bridgeAddress(ctx, bridge)
	if err != nil {
		return credentials.Credential{}, err
	}

	pairCtx := ctx
	if timeout := r.cfg.Pairing.Timeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		pairCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info().Str("bridge", address).Msg("Pairing with bridge")
	cred, err := r.Pairer.RegisterUntil(pairCtx, address, r.cfg.Pairing.RetryInterval.Duration())
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("pairing with %s: %w", address, err)
	}

	if err := r.Store.Save(cred); err != nil {
		return credentials.Credential{}, fmt.Errorf("saving credentials: %w", err)
	}

	log.Info().
		Str("bridge", cred.IPAddress).
		Str("path", r.Store.Path()).
		Msg("Credentials saved")

	return cred, nil
}

func (r *Registration) bridgeAddress(ctx context.Context, bridge string) (string, error) {
	if bridge == "" {
		bridge = r.cfg.Hue.Bridge
	}
	if bridge != "" {
		log.Info().Str("bridge", bridge).Msg("Using configured bridge, skipping discovery")
		return bridge, nil
	}

	log.Info().Dur("window", r.cfg.Discovery.Timeout.Duration()).Msg("Searching for a bridge")
	ip, err := r.Locator.Discover(ctx)
	if err != nil {
		return "", fmt.Errorf("discovering bridge: %w", err)
	}
	return ip.String(), nil
}

// RunRegistration runs a Registration from cfg, recording the pairing
// outcome in the ledger when a database is configured.
func RunRegistration(ctx context.Context, cfg *config.Config, bridge string) (credentials.Credential, error) {
	var events eventbus.Publisher

	if cfg.LedgerEnabled() {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return credentials.Credential{}, err
		}
		defer database.Close()

		bus := eventbus.NewWithConfig(1, cfg.EventBus.QueueSize)
		NewLedgerService(cfg, ledger.New(database.DB)).Attach(bus)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration())
			defer cancel()
			bus.Close(closeCtx)
		}()
		events = bus
	}

	return NewRegistration(cfg, events).Run(ctx, bridge)
}
