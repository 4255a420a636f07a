package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewWithConfig(2, 10)

	var mu sync.Mutex
	var got []Event
	var wg sync.WaitGroup
	wg.Add(2)

	bus.Subscribe(EventTypeGroupCommand, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		wg.Done()
	})
	bus.Subscribe(EventTypePairing, func(e Event) {
		t.Error("pairing handler should not receive group commands")
	})

	bus.Publish(Event{Type: EventTypeGroupCommand, Data: map[string]any{"group_id": "1"}})
	bus.Publish(Event{Type: EventTypeGroupCommand, Data: map[string]any{"group_id": "2"}})

	wg.Wait()
	bus.Close(context.Background())

	require.Len(t, got, 2)
	for _, e := range got {
		assert.False(t, e.Timestamp.IsZero(), "timestamp should be filled in")
	}
}

func TestBus_HandlerPanicDoesNotKillWorker(t *testing.T) {
	bus := NewWithConfig(1, 10)
	done := make(chan struct{})

	calls := 0
	bus.Subscribe(EventTypePairing, func(e Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		close(done)
	})

	bus.Publish(Event{Type: EventTypePairing})
	bus.Publish(Event{Type: EventTypePairing})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second event was not handled after a panic")
	}
	bus.Close(context.Background())
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	bus := New()
	bus.Subscribe(EventTypePairing, func(e Event) {
		t.Error("no events should be handled after close")
	})

	bus.Close(context.Background())
	bus.Publish(Event{Type: EventTypePairing})

	// Closing twice is safe
	bus.Close(context.Background())
}
