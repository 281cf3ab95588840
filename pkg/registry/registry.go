package registry

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Handler reacts to an action. Returned actions are dispatched after it completes.
type Handler interface {
	Handle(ctx context.Context, action domain.Action) ([]domain.Action, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, action domain.Action) ([]domain.Action, error)

func (f HandlerFunc) Handle(ctx context.Context, action domain.Action) ([]domain.Action, error) {
	return f(ctx, action)
}

type entry struct {
	id      uint64
	handler Handler
}

// Registry maps action kinds to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	nextID   uint64
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string][]entry),
	}
}

// Registration removes one handler from the registry when disposed.
type Registration struct {
	registry *Registry
	kind     string
	id       uint64
	once     sync.Once
}

// Dispose unregisters the handler. Calling it more than once is a no-op.
func (r *Registration) Dispose() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.registry.remove(r.kind, r.id)
	})
}

// Register adds a handler for kind.
// The same handler may be registered several times; each registration is delivered separately.
func (r *Registry) Register(kind string, h Handler) *Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.handlers[kind] = append(r.handlers[kind], entry{id: id, handler: h})
	return &Registration{registry: r, kind: kind, id: id}
}

// RegisterFunc is a shorthand for Register(kind, HandlerFunc(fn)).
func (r *Registry) RegisterFunc(kind string, fn func(ctx context.Context, action domain.Action) ([]domain.Action, error)) *Registration {
	return r.Register(kind, HandlerFunc(fn))
}

func (r *Registry) remove(kind string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := slices.DeleteFunc(r.handlers[kind], func(e entry) bool { return e.id == id })
	if len(list) == 0 {
		delete(r.handlers, kind)
		return
	}
	r.handlers[kind] = list
}

// Handlers returns the handlers registered for kind in registration order.
// The returned slice is a copy and may be used after the registry changes.
func (r *Registry) Handlers(kind string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.handlers[kind]
	if len(list) == 0 {
		return nil
	}
	out := make([]Handler, len(list))
	for i, e := range list {
		out[i] = e.handler
	}
	return out
}

// Kinds returns the kinds that have at least one handler, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Count returns the total number of registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.handlers {
		n += len(list)
	}
	return n
}
