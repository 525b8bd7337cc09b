package ssh

import (
	"sync"

	"github.com/Lvzhenqian/sshsftp/protocol"
)

// EventBus connects one client to a shared Emitter. It holds at most one
// emitter subscription and one handler per event name, and drops events
// that carry another client's identity.
type EventBus struct {
	clientID string
	emitter  *protocol.Emitter

	mu       sync.Mutex
	subs     map[string]*protocol.Subscription
	handlers map[string]Handler
}

func NewEventBus(clientID string, emitter *protocol.Emitter) *EventBus {
	if emitter == nil {
		emitter = protocol.DefaultEmitter
	}
	return &EventBus{
		clientID: clientID,
		emitter:  emitter,
		subs:     make(map[string]*protocol.Subscription),
		handlers: make(map[string]Handler),
	}
}

// On sets the handler for name, replacing any earlier one. A nil handler
// clears it.
func (b *EventBus) On(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if handler == nil {
		delete(b.handlers, name)
		return
	}
	b.handlers[name] = handler
}

// Subscribe registers with the emitter unless already registered for name.
func (b *EventBus) Subscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[name]; ok {
		return
	}
	b.subs[name] = b.emitter.Subscribe(name, b.Dispatch)
}

func (b *EventBus) Unsubscribe(name string) {
	b.mu.Lock()
	sub, ok := b.subs[name]
	delete(b.subs, name)
	b.mu.Unlock()
	if ok {
		sub.Remove()
	}
}

func (b *EventBus) UnsubscribeAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*protocol.Subscription)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Remove()
	}
}

// Dispatch hands ev to the handler for its name when ev belongs to this
// client. Anything else is dropped.
func (b *EventBus) Dispatch(ev protocol.Event) {
	if ev.ClientID != b.clientID {
		return
	}
	b.mu.Lock()
	handler := b.handlers[ev.Name]
	b.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (b *EventBus) Subscribed(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[name]
	return ok
}

// Len is the number of live emitter subscriptions.
func (b *EventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
