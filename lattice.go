package lattice

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/lattice/pkg/dispatch"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/session"
	"github.com/aretw0/lattice/pkg/tool"
)

// Version is the release of this module. Overridden at build time with -ldflags.
var Version = "0.1.0"

// NewCodec returns a codec that knows every typed action of this module:
// the model actions, the built-in feedback and the tool actions.
func NewCodec(opts ...domain.CodecOption) *domain.Codec {
	codec := domain.NewCodec(opts...)
	feedback.RegisterKinds(codec)
	domain.Register[tool.ChangeBounds](codec)
	return codec
}

type config struct {
	id          string
	logger      *slog.Logger
	hooks       []domain.LifecycleHooks
	registerer  prometheus.Registerer
	timeout     time.Duration
	queueSize   int
	remoteKinds []string
}

// Option configures New.
type Option func(*config)

// WithID sets the session ID. Defaults to a random UUID.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithLogger sets the structured logger shared by the session components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. May be given more than once.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = append(c.hooks, hooks)
	}
}

// WithMetrics records dispatcher and replay metrics into reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// WithRequestTimeout sets the default timeout of correlated requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithQueueSize sets the capacity of the dispatch queue.
func WithQueueSize(n int) Option {
	return func(c *config) {
		c.queueSize = n
	}
}

// WithRemoteKinds sets the action kinds forwarded to the remote peer.
func WithRemoteKinds(kinds ...string) Option {
	return func(c *config) {
		c.remoteKinds = kinds
	}
}

// New creates and starts one diagram session. Connect it to a peer with
// Session.Run and release it with Session.Close.
func New(opts ...Option) (*session.Session, error) {
	cfg := config{id: uuid.NewString()}
	for _, opt := range opts {
		opt(&cfg)
	}

	hooks := cfg.hooks
	if cfg.registerer != nil {
		hooks = append(hooks, observability.NewMetrics(cfg.registerer).Hooks())
	}

	sessOpts := []session.Option{
		session.WithSessionLogger(cfg.logger),
		session.WithHooks(observability.Chain(hooks...)),
		session.WithDispatchOptions(
			dispatch.WithTimeout(cfg.timeout),
			dispatch.WithQueueSize(cfg.queueSize),
		),
	}
	if cfg.remoteKinds != nil {
		sessOpts = append(sessOpts, session.WithRemoteKinds(cfg.remoteKinds...))
	}
	return session.New(cfg.id, sessOpts...)
}
