package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Registry tracks, per emitter, the feedback actions to re-apply on every model replacement.
//
// Emitters are any comparable value, typically the pointer of the tool or service
// that owns the feedback. Re-registering replaces the emitter's list and keeps its
// position; deregistering and registering again moves it to the end.
type Registry struct {
	mu       sync.RWMutex
	order    []any
	entries  map[any][]domain.Action
	onChange []func()
	gen      uint64 // bumped on every Register and effective Deregister

	dispatcher ports.ActionDispatcher
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger configures the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry. Undo actions passed to Deregister are
// delivered through dispatcher, which may be nil if no caller uses undo actions.
func NewRegistry(dispatcher ports.ActionDispatcher, opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:    make(map[any][]domain.Action),
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func validEmitter(emitter any) error {
	if emitter == nil {
		return fmt.Errorf("%w: nil", domain.ErrInvalidEmitter)
	}
	// A comparable struct type may still hold a slice or map in an interface field.
	if !reflect.TypeOf(emitter).Comparable() || !reflect.ValueOf(emitter).Comparable() {
		return fmt.Errorf("%w: %T is not comparable", domain.ErrInvalidEmitter, emitter)
	}
	return nil
}

// OnChange registers fn to run after every Register or effective Deregister.
// fn runs on the caller's goroutine, outside the registry lock.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

func (r *Registry) changed() {
	r.mu.RLock()
	listeners := slices.Clone(r.onChange)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Register replaces the emitter's feedback with actions.
// Registering no actions is valid and keeps the emitter known to the registry.
func (r *Registry) Register(emitter any, actions ...domain.Action) error {
	if err := validEmitter(emitter); err != nil {
		return err
	}
	r.mu.Lock()
	if _, ok := r.entries[emitter]; !ok {
		r.order = append(r.order, emitter)
	}
	r.entries[emitter] = slices.Clone(actions)
	r.gen++
	r.mu.Unlock()

	r.logger.Debug("Feedback registered", "emitter", fmt.Sprintf("%T", emitter), "actions", len(actions))
	r.changed()
	return nil
}

// Deregister removes the emitter's feedback and dispatches undo immediately,
// so visible overlay is cleaned up without waiting for the next replay.
// Undo actions are dispatched even if the emitter was not registered.
//
// The undo context carries the registry generation reached by this call (see
// GenerationFrom). A handler that observes a newer generation must drop the undo:
// the newer change is followed by its own replay.
func (r *Registry) Deregister(ctx context.Context, emitter any, undo ...domain.Action) error {
	if err := validEmitter(emitter); err != nil {
		return err
	}
	r.mu.Lock()
	_, removed := r.entries[emitter]
	if removed {
		delete(r.entries, emitter)
		r.order = slices.DeleteFunc(r.order, func(e any) bool { return e == emitter })
		r.gen++
	}
	gen := r.gen
	r.mu.Unlock()

	var errs []error
	if len(undo) > 0 {
		if r.dispatcher == nil {
			errs = append(errs, fmt.Errorf("undo %d actions: %w", len(undo), domain.ErrNotConnected))
		} else if err := r.dispatcher.DispatchAll(WithGeneration(ctx, gen), undo); err != nil {
			errs = append(errs, fmt.Errorf("undo %d actions: %w", len(undo), err))
		}
	}
	if removed {
		r.logger.Debug("Feedback deregistered", "emitter", fmt.Sprintf("%T", emitter), "undo", len(undo))
		r.changed()
	}
	return errors.Join(errs...)
}

// Registered returns a copy of the emitter's feedback.
func (r *Registry) Registered(emitter any) ([]domain.Action, bool) {
	if validEmitter(emitter) != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions, ok := r.entries[emitter]
	return slices.Clone(actions), ok
}

// All returns the concatenated feedback of every emitter, in emitter registration order.
// The result is a snapshot and is not affected by later changes.
func (r *Registry) All() []domain.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Action
	for _, e := range r.order {
		out = append(out, r.entries[e]...)
	}
	return out
}

// Generation returns the number of changes made to the registry so far.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// Emitters returns the number of registered emitters.
func (r *Registry) Emitters() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
