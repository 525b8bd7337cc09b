package configs

import (
	"sync"
)

type Config[T any] interface {
	Reload(chan<- T)
}

type Module[T any] interface {
	Name() string
	Watch(<-chan T)
}

type ConfigManager[T any] struct {
	update chan T
	data   *T

	mux     *sync.RWMutex
	modules map[string]chan T
}

// NewManager starts cfg.Reload and fans every value it sends out to the
// registered modules. initial, when not nil, is returned by Current until
// the first reload.
func NewManager[T any](cfg Config[T], initial *T) *ConfigManager[T] {
	update := make(chan T)
	go cfg.Reload(update)

	manager := &ConfigManager[T]{
		update:  update,
		data:    initial,
		mux:     new(sync.RWMutex),
		modules: make(map[string]chan T),
	}
	go manager.startNotify()

	return manager
}

func (c *ConfigManager[T]) AddModule(m Module[T]) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if old, ok := c.modules[m.Name()]; ok {
		close(old)
	}
	// buffered so a slow module does not hold the notify loop on a single update
	ch := make(chan T, 1)
	c.modules[m.Name()] = ch
	go m.Watch(ch)
}

func (c *ConfigManager[T]) RemoveModule(name string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	channel, ok := c.modules[name]
	if ok {
		close(channel)
		delete(c.modules, name)
	}
}

// Current returns the last value seen, or nil if none yet.
func (c *ConfigManager[T]) Current() *T {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.data
}

func (c *ConfigManager[T]) startNotify() {
	for newData := range c.update {
		c.mux.Lock()
		value := newData
		c.data = &value
		c.mux.Unlock()

		c.mux.RLock()
		for _, module := range c.modules {
			module <- newData
		}
		c.mux.RUnlock()
	}

	c.mux.Lock()
	for name, module := range c.modules {
		close(module)
		delete(c.modules, name)
	}
	c.mux.Unlock()
}
