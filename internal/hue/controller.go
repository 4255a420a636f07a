package hue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/eventbus"
)

// Operation names recorded for group commands
const (
	OpToggle  = "toggle"
	OpTurnOn  = "turn_on"
	OpTurnOff = "turn_off"
)

// Controller issues name-addressed power commands to groups.
//
// Commands for the same group name are serialized within the process so two
// concurrent toggles cannot both act on the same observed state. Other
// clients of the bridge are not coordinated with; the last command wins.
type Controller struct {
	locks  *keyedMutex
	events eventbus.Publisher
}

// NewController creates a controller. events may be nil.
func NewController(events eventbus.Publisher) *Controller {
	return &Controller{
		locks:  newKeyedMutex(),
		events: events,
	}
}

// ToggleGroup inverts the all_on state of the first group named name.
func (c *Controller) ToggleGroup(ctx context.Context, s *Session, name string) error {
	return c.apply(ctx, s, name, OpToggle, func(g Group) bool {
		return !g.State.AllOn
	})
}

// TurnOnGroup switches the first group named name on.
func (c *Controller) TurnOnGroup(ctx context.Context, s *Session, name string) error {
	return c.apply(ctx, s, name, OpTurnOn, func(Group) bool { return true })
}

// TurnOffGroup switches the first group named name off.
func (c *Controller) TurnOffGroup(ctx context.Context, s *Session, name string) error {
	return c.apply(ctx, s, name, OpTurnOff, func(Group) bool { return false })
}

func (c *Controller) apply(ctx context.Context, s *Session, name, op string, target func(Group) bool) error {
	unlock := c.locks.Lock(name)
	defer unlock()

	groups, err := s.ListGroups(ctx)
	if err != nil {
		return err
	}

	group, ok := FindGroup(groups, name)
	if !ok {
		log.Debug().Str("group", name).Str("op", op).Msg("No group with that name")
		return fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}

	on := target(group)
	err = s.SetGroupPower(ctx, group.ID, on)
	c.publish(ctx, group, op, on, err)
	if err != nil {
		return err
	}

	log.Info().
		Str("group", group.Name).
		Str("group_id", group.ID).
		Str("op", op).
		Bool("on", on).
		Msg("Group command applied")

	return nil
}

func (c *Controller) publish(ctx context.Context, group Group, op string, on bool, err error) {
	if c.events == nil {
		return
	}

	data := map[string]any{
		"group_id":   group.ID,
		"group_name": group.Name,
		"op":         op,
		"on":         on,
	}
	if err != nil {
		data["error"] = err.Error()
	}

	c.events.Publish(eventbus.Event{
		Type:   eventbus.EventTypeGroupCommand,
		Source: SourceFromContext(ctx),
		Data:   data,
	})
}

// keyedMutex hands out one mutex per key. Keys come from requests, so an
// entry lives only while someone holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its unlock function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size returns the number of live entries
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

type sourceKey struct{}

// WithSource tags ctx with the origin of a command, e.g. an HTTP request id
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the origin set by WithSource, or ""
func SourceFromContext(ctx context.Context) string {
	source, _ := ctx.Value(sourceKey{}).(string)
	return source
}
