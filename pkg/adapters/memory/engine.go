package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Decorator prepares a model before it is published. *coordinator.Coordinator implements it.
type Decorator interface {
	Decorate(ctx context.Context, next *domain.Element) *domain.Element
}

// PublishFunc observes every published model.
type PublishFunc func(ctx context.Context, published domain.ModelPublished)

// Engine is an in-memory model engine.
// It keeps the authoritative model and the decorated model it last published.
type Engine struct {
	publishMu sync.Mutex // serializes decorate, publish and notify

	mu            sync.RWMutex
	authoritative *domain.Element
	published     *domain.Element
	revision      int64

	decorator Decorator
	listener  ports.RootListener
	onPublish PublishFunc
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDecorator sets the decorator run before each publish.
func WithDecorator(d Decorator) EngineOption {
	return func(e *Engine) {
		e.decorator = d
	}
}

// WithRootListener sets the listener notified after a new root is published.
func WithRootListener(l ports.RootListener) EngineOption {
	return func(e *Engine) {
		e.listener = l
	}
}

// WithPublishHook sets a callback invoked with every published model.
func WithPublishHook(fn PublishFunc) EngineOption {
	return func(e *Engine) {
		e.onPublish = fn
	}
}

// WithEngineLogger configures the engine logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine with no model.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authoritative returns a copy of the undecorated model.
func (e *Engine) Authoritative() *domain.Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.authoritative.Clone()
}

// Published returns a copy of the decorated model currently visible.
func (e *Engine) Published() *domain.Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published.Clone()
}

// Revision returns the revision of the current model.
func (e *Engine) Revision() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision
}

// Replace decorates root and publishes it. Revisions not newer than the current one are
// ignored; a zero revision keeps the current revision and is always accepted.
func (e *Engine) Replace(ctx context.Context, root *domain.Element, revision int64) error {
	if root == nil {
		return fmt.Errorf("%w: nil model root", domain.ErrInvalidPayload)
	}
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.RLock()
	current := e.revision
	e.mu.RUnlock()
	if revision != 0 && revision <= current {
		e.logger.Debug("Ignoring stale model", "revision", revision, "current", current)
		return nil
	}

	authoritative := root.Clone()
	decorated := authoritative.Clone()
	if e.decorator != nil {
		decorated = e.decorator.Decorate(ctx, decorated)
	}

	e.mu.Lock()
	e.authoritative = authoritative
	e.published = decorated
	if revision != 0 {
		e.revision = revision
	}
	rev := e.revision
	e.mu.Unlock()

	e.publish(ctx, decorated, rev)
	if e.listener != nil {
		e.listener.RootChanged(ctx, decorated.Clone())
	}
	return nil
}

// Overlay applies fn to a copy of the published model and publishes the result
// without touching the authoritative model or notifying root listeners.
func (e *Engine) Overlay(ctx context.Context, fn func(root *domain.Element) error) error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	next := e.Published()
	if next == nil {
		return nil
	}
	if err := fn(next); err != nil {
		return fmt.Errorf("apply overlay: %w", err)
	}

	e.mu.Lock()
	e.published = next
	rev := e.revision
	e.mu.Unlock()

	e.publish(ctx, next, rev)
	return nil
}

func (e *Engine) publish(ctx context.Context, root *domain.Element, rev int64) {
	if e.onPublish != nil {
		e.onPublish(ctx, domain.ModelPublished{Root: root.Clone(), Revision: rev})
	}
}
