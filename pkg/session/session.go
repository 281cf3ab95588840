package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/coordinator"
	"github.com/aretw0/lattice/pkg/dispatch"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/aretw0/lattice/pkg/selection"
	"github.com/aretw0/lattice/pkg/tool"
)

// DefaultRemoteKinds are the kinds a session forwards to its peer unless configured otherwise.
var DefaultRemoteKinds = []string{domain.KindRequestModel, tool.KindChangeBounds}

// Session is one diagram session: a dispatcher, a feedback registry, the replay
// pipeline, the coordinator and the model engine, wired together.
type Session struct {
	id     string
	logger *slog.Logger

	dispatcher  *dispatch.Dispatcher
	feedback    *feedback.Registry
	coordinator *coordinator.Coordinator
	engine      *memory.Engine
	selection   *selection.Service
	resize      *tool.Resize

	regs []*registry.Registration
}

// Option configures a Session.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	remoteKinds  []string
	dispatchOpts []dispatch.Option
}

// WithSessionLogger configures the logger shared by the session components.
func WithSessionLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHooks installs lifecycle hooks on the dispatcher and the replay pipeline.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithRemoteKinds replaces the kinds forwarded to the peer.
func WithRemoteKinds(kinds ...string) Option {
	return func(c *config) {
		c.remoteKinds = kinds
	}
}

// WithDispatchOptions passes options through to the session dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(c *config) {
		c.dispatchOpts = append(c.dispatchOpts, opts...)
	}
}

// New builds and starts a session.
func New(id string, opts ...Option) (*Session, error) {
	cfg := config{logger: logging.NewNop(), remoteKinds: DefaultRemoteKinds}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("session_id", id)

	dOpts := append([]dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithHooks(cfg.hooks),
	}, cfg.dispatchOpts...)
	d := dispatch.New(dOpts...)

	fb := feedback.NewRegistry(d, feedback.WithLogger(logger))
	pipeline := feedback.NewPipeline(fb,
		feedback.WithPipelineLogger(logger),
		feedback.WithPipelineHooks(cfg.hooks),
	)
	coord := coordinator.New(pipeline,
		coordinator.WithLogger(logger),
		coordinator.WithGenerations(fb),
	)

	s := &Session{
		id:          id,
		logger:      logger,
		dispatcher:  d,
		feedback:    fb,
		coordinator: coord,
	}
	s.engine = memory.NewEngine(
		memory.WithDecorator(coord),
		memory.WithRootListener(coord),
		memory.WithPublishHook(s.published),
		memory.WithEngineLogger(logger),
	)
	s.selection = selection.New(fb)
	s.resize = tool.NewResize(fb, d, s.engine.Published)
	coord.AddListener(s.selection)

	reg := d.Registry()
	model := coord.ModelHandler(s.engine)
	s.regs = append(s.regs,
		reg.Register(domain.KindSetModel, model),
		reg.Register(domain.KindUpdateModel, model),
		reg.Register(domain.KindRefreshFeedback, coord.RefreshHandler(s.engine)),
	)
	effects := coord.EffectHandler(s.engine)
	for _, kind := range feedback.Kinds() {
		s.regs = append(s.regs, reg.Register(kind, effects))
	}
	s.regs = append(s.regs, d.Forward(cfg.remoteKinds...)...)

	fb.OnChange(s.feedbackChanged)

	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("start dispatcher: %w", err)
	}
	return s, nil
}

// feedbackChanged schedules a replay on the dispatch loop instead of running it
// on the goroutine that changed the registry.
func (s *Session) feedbackChanged() {
	if err := s.dispatcher.Dispatch(context.Background(), domain.RefreshFeedback{}); err != nil {
		s.logger.Debug("Feedback refresh not scheduled", "err", err)
	}
}

func (s *Session) published(ctx context.Context, m domain.ModelPublished) {
	if err := s.dispatcher.Dispatch(ctx, m); err != nil {
		s.logger.Debug("Publish notification dropped", "revision", m.Revision, "err", err)
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Dispatcher returns the session dispatcher.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Feedback returns the session feedback registry.
func (s *Session) Feedback() *feedback.Registry { return s.feedback }

// Coordinator returns the model update coordinator.
func (s *Session) Coordinator() *coordinator.Coordinator { return s.coordinator }

// Engine returns the model engine.
func (s *Session) Engine() *memory.Engine { return s.engine }

// Selection returns the selection service.
func (s *Session) Selection() *selection.Service { return s.selection }

// Resize returns the resize tool.
func (s *Session) Resize() *tool.Resize { return s.resize }

// LoadModel requests the model from the peer. The SetModel reply is applied by
// the model handler. The root is nil if the peer did not answer in time.
func (s *Session) LoadModel(ctx context.Context, opts ...dispatch.RequestOption) (*domain.Element, error) {
	resp, err := dispatch.RequestAs[domain.SetModel](ctx, s.dispatcher, domain.RequestModel{}, opts...)
	if err != nil {
		return nil, err
	}
	return resp.Root, nil
}

// Run connects the session to t and pumps inbound actions until the peer
// disconnects or ctx is done. The transport is closed on return.
func (s *Session) Run(ctx context.Context, t ports.Transport) error {
	s.dispatcher.SetTransport(t)
	defer s.dispatcher.SetTransport(nil)

	g, gctx := errgroup.WithContext(ctx)
	pumped := make(chan struct{})
	g.Go(func() error {
		defer close(pumped)
		return s.dispatcher.Pump(gctx, t)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-pumped:
		}
		return t.Close()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close disposes the session handlers and stops the dispatcher.
func (s *Session) Close(ctx context.Context) error {
	for _, r := range s.regs {
		r.Dispose()
	}
	s.regs = nil
	if err := s.dispatcher.Close(ctx); err != nil && !errors.Is(err, dispatch.ErrNotRunning) {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	return nil
}
