package dispatch

import (
	"log/slog"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
)

// Defaults used when no option overrides them.
const (
	DefaultRequestTimeout = 2 * time.Second
	DefaultQueueSize      = 256
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRegistry sets the handler registry. By default the dispatcher owns a fresh one.
func WithRegistry(r *registry.Registry) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithLogger configures the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTimeout sets the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithQueueSize sets the capacity of the dispatch queue.
func WithQueueSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithTransport attaches the transport used by SendMessage.
func WithTransport(t ports.Transport) Option {
	return func(d *Dispatcher) {
		d.transport = t
	}
}

// WithSenderID sets the sender ID stamped on outbound envelopes.
func WithSenderID(id string) Option {
	return func(d *Dispatcher) {
		d.senderID = id
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithIDGenerator replaces the request ID generator.
// Generated IDs must be unique for the lifetime of the process.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// RequestOption configures a single Request call.
type RequestOption func(*requestConfig)

type requestConfig struct {
	timeout time.Duration
	reject  bool
}

// WithRequestTimeout overrides the dispatcher's default timeout for one request.
func WithRequestTimeout(timeout time.Duration) RequestOption {
	return func(c *requestConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// RejectOnTimeout makes the request fail with domain.ErrRequestTimeout instead of
// resolving with a nil response.
func RejectOnTimeout() RequestOption {
	return func(c *requestConfig) {
		c.reject = true
	}
}
