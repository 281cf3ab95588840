package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
)

// Replayer decorates a model snapshot. *feedback.Pipeline implements it.
type Replayer interface {
	Replay(ctx context.Context, root *domain.Element) *domain.Element
}

// Generations reports how many times the feedback set has changed.
// *feedback.Registry implements it.
type Generations interface {
	Generation() uint64
}

var errSuperseded = errors.New("undo superseded by a newer feedback change")

// Coordinator is the seam between the rendering engine and the feedback pipeline.
// The engine calls Decorate before publishing a new model and RootChanged after.
type Coordinator struct {
	replayer    Replayer
	generations Generations
	logger      *slog.Logger

	mu sync.Mutex // serializes replays

	listenersMu sync.RWMutex
	listeners   []ports.RootListener
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger configures the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGenerations lets EffectHandler drop undo actions that a newer feedback
// change has already superseded. Without it every undo is applied.
func WithGenerations(g Generations) Option {
	return func(c *Coordinator) {
		c.generations = g
	}
}

// WithListener registers a root listener at construction time.
func WithListener(l ports.RootListener) Option {
	return func(c *Coordinator) {
		c.listeners = append(c.listeners, l)
	}
}

// New creates a coordinator replaying through replayer.
func New(replayer Replayer, opts ...Option) *Coordinator {
	c := &Coordinator{
		replayer: replayer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decorate returns next with all registered feedback applied.
// It runs synchronously and does not keep a reference to next.
func (c *Coordinator) Decorate(ctx context.Context, next *domain.Element) *domain.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replayer.Replay(ctx, next)
}

// AddListener registers l for root change notifications.
func (c *Coordinator) AddListener(l ports.RootListener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// RootChanged notifies listeners that root was published.
// Each listener receives its own copy.
func (c *Coordinator) RootChanged(ctx context.Context, root *domain.Element) {
	c.listenersMu.RLock()
	listeners := slices.Clone(c.listeners)
	c.listenersMu.RUnlock()

	for _, l := range listeners {
		l.RootChanged(ctx, root.Clone())
	}
}

// Refresh re-derives the overlay of the engine's current model.
// It is a no-op while the engine has no model.
func (c *Coordinator) Refresh(ctx context.Context, engine ports.ModelEngine) error {
	root := engine.Authoritative()
	if root == nil {
		return nil
	}
	if err := engine.Replace(ctx, root, 0); err != nil {
		return fmt.Errorf("refresh feedback: %w", err)
	}
	return nil
}

// RefreshHandler handles domain.KindRefreshFeedback by calling Refresh.
func (c *Coordinator) RefreshHandler(engine ports.ModelEngine) registry.Handler {
	return registry.HandlerFunc(func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
		return nil, c.Refresh(ctx, engine)
	})
}

// EffectHandler applies dispatched feedback actions to the published model right away.
// It serves undo actions passed to feedback.Registry.Deregister.
//
// An undo tagged with a registry generation older than the current one is dropped.
// The check runs inside the engine's publish step, so it cannot interleave with a
// replay: either the undo lands first and the newer replay overwrites it, or the
// replay has been triggered and the undo is skipped.
func (c *Coordinator) EffectHandler(engine ports.ModelEngine) registry.Handler {
	return registry.HandlerFunc(func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
		eff, ok := feedback.EffectFor(a)
		if !ok {
			c.logger.Warn("No effect for dispatched feedback", "kind", a.Kind())
			return nil, nil
		}
		err := engine.Overlay(ctx, func(root *domain.Element) error {
			if c.superseded(ctx) {
				return errSuperseded
			}
			return eff.Apply(root)
		})
		if errors.Is(err, errSuperseded) {
			c.logger.Debug("Dropping superseded undo", "kind", a.Kind())
			return nil, nil
		}
		return nil, err
	})
}

func (c *Coordinator) superseded(ctx context.Context) bool {
	gen, ok := feedback.GenerationFrom(ctx)
	return ok && c.generations != nil && c.generations.Generation() > gen
}

// ModelHandler handles SetModel and UpdateModel by replacing the engine's model.
func (c *Coordinator) ModelHandler(engine ports.ModelEngine) registry.Handler {
	return registry.HandlerFunc(func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
		switch v := a.(type) {
		case domain.SetModel:
			return nil, engine.Replace(ctx, v.Root, 0)
		case domain.UpdateModel:
			return nil, engine.Replace(ctx, v.Root, v.Revision)
		}
		return nil, fmt.Errorf("%w: %s does not carry a model", domain.ErrInvalidPayload, a.Kind())
	})
}
