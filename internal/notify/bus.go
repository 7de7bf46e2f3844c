package notify

import (
	"sync"

	"github.com/shuntaka9576/agentoast/internal/store"
)

// Event is a store-mutation or side-effect signal published to in-process
// consumers. Consumers re-derive their full view from current store state on
// any signal, so a dropped event costs freshness, never correctness.
type Event interface{ event() }

// NotificationStored fires after any successful insert.
type NotificationStored struct {
	Notification store.Notification
}

// ToastRequested carries an ordered batch for the toast queue.
type ToastRequested struct {
	Batch []store.Notification
}

// MuteChanged fires after any mute-state mutation.
type MuteChanged struct {
	State store.MuteState
}

// RefreshRequested asks consumers to rebuild from the store, with no
// specific mutation attached.
type RefreshRequested struct{}

func (NotificationStored) event() {}
func (ToastRequested) event()     {}
func (MuteChanged) event()        {}
func (RefreshRequested) event()   {}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses that event.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a consumer. The returned cancel func closes the
// channel and must be called exactly once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers e to every subscriber with buffer room. A nil bus drops
// everything, so processes that consume store changes through the watcher
// can run a Service without a second event path.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
