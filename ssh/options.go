package ssh

import (
	"github.com/Lvzhenqian/sshsftp/configs"
	"github.com/Lvzhenqian/sshsftp/fn"
	"github.com/Lvzhenqian/sshsftp/log"
	"github.com/Lvzhenqian/sshsftp/protocol"
)

// ProtocolFactory builds the engine of one client. Engines must tag the
// events they emit on emitter with clientID.
type ProtocolFactory func(clientID string, emitter *protocol.Emitter, settings configs.Settings, logger *log.ZeroLogger) protocol.Protocol

type Option func(*options)

type options struct {
	settings  configs.Settings
	manager   *configs.ConfigManager[configs.Settings]
	logger    *log.ZeroLogger
	emitter   *protocol.Emitter
	factory   ProtocolFactory
	callbacks []fn.Callback[*Client]
}

func newOptions(opts []Option) *options {
	o := &options{
		settings: configs.DefaultSettings(),
		logger:   log.Nop(),
		emitter:  protocol.DefaultEmitter,
		factory:  NativeProtocol,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.manager != nil {
		if current := o.manager.Current(); current != nil {
			o.settings = *current
		}
	}
	return o
}

// NativeProtocol is the default ProtocolFactory.
func NativeProtocol(clientID string, emitter *protocol.Emitter, settings configs.Settings, logger *log.ZeroLogger) protocol.Protocol {
	return protocol.NewNative(clientID, emitter,
		protocol.WithLogger(logger),
		protocol.WithSettings(settings),
	)
}

func WithProtocol(factory ProtocolFactory) Option {
	return func(o *options) {
		if factory != nil {
			o.factory = factory
		}
	}
}

func WithLogger(logger *log.ZeroLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEmitter isolates the client's events from DefaultEmitter.
func WithEmitter(emitter *protocol.Emitter) Option {
	return func(o *options) {
		if emitter != nil {
			o.emitter = emitter
		}
	}
}

func WithSettings(settings configs.Settings) Option {
	return func(o *options) {
		o.settings = settings
	}
}

// WithConfigManager takes the manager's current settings and follows later
// reloads of the log level and default pty until Disconnect.
func WithConfigManager(manager *configs.ConfigManager[configs.Settings]) Option {
	return func(o *options) {
		o.manager = manager
	}
}

// WithWorkers bounds how many operations of the client run at once.
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.settings.Workers = workers
	}
}

// WithCallback receives the outcome of Connect in addition to its future.
func WithCallback(callback fn.Callback[*Client]) Option {
	return func(o *options) {
		if callback != nil {
			o.callbacks = append(o.callbacks, callback)
		}
	}
}
