package protocol

import (
	"sync"
)

type Listener func(Event)

// Emitter fans events out to every listener of the event name. It does not
// look at client identities; filtering is the subscriber's job.
type Emitter struct {
	mu        sync.RWMutex
	seq       uint64
	listeners map[string]map[uint64]Listener
}

// DefaultEmitter is shared by every client that is not given its own.
var DefaultEmitter = NewEmitter()

func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[string]map[uint64]Listener),
	}
}

func (e *Emitter) Subscribe(name string, fn Listener) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	if e.listeners[name] == nil {
		e.listeners[name] = make(map[uint64]Listener)
	}
	e.listeners[name][e.seq] = fn
	return &Subscription{emitter: e, name: name, id: e.seq}
}

// Emit calls the listeners on the calling goroutine.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	fns := make([]Listener, 0, len(e.listeners[ev.Name]))
	for _, fn := range e.listeners[ev.Name] {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (e *Emitter) Listeners(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name])
}

func (e *Emitter) remove(name string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners[name], id)
	if len(e.listeners[name]) == 0 {
		delete(e.listeners, name)
	}
}

type Subscription struct {
	emitter *Emitter
	name    string
	id      uint64
	once    sync.Once
}

func (s *Subscription) Name() string {
	return s.name
}

// Remove is safe to call more than once.
func (s *Subscription) Remove() {
	s.once.Do(func() {
		s.emitter.remove(s.name, s.id)
	})
}
