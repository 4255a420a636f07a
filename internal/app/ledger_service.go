package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/config"
	"github.com/dokzlo13/huegate/internal/eventbus"
	"github.com/dokzlo13/huegate/internal/ledger"
)

// LedgerService records bus events in the ledger and enforces retention.
type LedgerService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(cfg *config.Config, l *ledger.Ledger) *LedgerService {
	return &LedgerService{cfg: cfg, ledger: l}
}

// Attach subscribes the ledger to command and pairing events.
func (s *LedgerService) Attach(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeGroupCommand, s.record)
	bus.Subscribe(eventbus.EventTypePairing, s.record)
}

func (s *LedgerService) record(event eventbus.Event) {
	eventType, ok := ledgerEventType(event)
	if !ok {
		return
	}

	if err := s.ledger.AppendAt(event.Timestamp, eventType, event.Source, event.Data); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to append ledger entry")
	}
}

// ledgerEventType maps a bus event to its ledger type; failed outcomes carry an "error" field
func ledgerEventType(event eventbus.Event) (ledger.EventType, bool) {
	_, failed := event.Data["error"]

	switch event.Type {
	case eventbus.EventTypeGroupCommand:
		if failed {
			return ledger.EventGroupCommandFailed, true
		}
		return ledger.EventGroupCommandSent, true
	case eventbus.EventTypePairing:
		if failed {
			return ledger.EventPairingFailed, true
		}
		return ledger.EventPairingSucceeded, true
	default:
		return "", false
	}
}

// Start begins periodic cleanup of old ledger entries.
func (s *LedgerService) Start(ctx context.Context) {
	go s.runCleanup(ctx)
}

// runCleanup periodically cleans up old ledger entries.
func (s *LedgerService) runCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.Retention()
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	if retention <= 0 || interval <= 0 {
		log.Debug().Msg("Ledger cleanup disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(retention)
		}
	}
}

func (s *LedgerService) cleanup(retention time.Duration) {
	deleted, err := s.ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}
