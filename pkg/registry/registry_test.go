package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string, calls *[]string) HandlerFunc {
	return func(ctx context.Context, action domain.Action) ([]domain.Action, error) {
		*calls = append(*calls, name)
		return nil, nil
	}
}

func TestRegistry_RegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var calls []string
	r.Register("ping", named("a", &calls))
	r.Register("ping", named("b", &calls))
	r.Register("pong", named("c", &calls))

	handlers := r.Handlers("ping")
	require.Len(t, handlers, 2)
	for _, h := range handlers {
		_, err := h.Handle(context.Background(), domain.Message{Type: "ping"})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, []string{"ping", "pong"}, r.Kinds())
	assert.Equal(t, 3, r.Count())
	assert.Nil(t, r.Handlers("unknown"))
}

func TestRegistry_DisposeRemovesOnlyThatRegistration(t *testing.T) {
	r := NewRegistry()
	var calls []string
	h := named("same", &calls)
	first := r.Register("ping", h)
	r.Register("ping", h)

	first.Dispose()
	first.Dispose()
	assert.Len(t, r.Handlers("ping"), 1)

	var nilReg *Registration
	assert.NotPanics(t, nilReg.Dispose)
}

func TestRegistry_DisposeLastRemovesKind(t *testing.T) {
	r := NewRegistry()
	reg := r.RegisterFunc("ping", func(ctx context.Context, a domain.Action) ([]domain.Action, error) { return nil, nil })
	reg.Dispose()

	assert.Empty(t, r.Kinds())
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_HandlersIsSnapshot(t *testing.T) {
	r := NewRegistry()
	var calls []string
	r.Register("ping", named("a", &calls))
	snapshot := r.Handlers("ping")
	r.Register("ping", named("b", &calls))

	assert.Len(t, snapshot, 1)
	assert.Len(t, r.Handlers("ping"), 2)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg := r.RegisterFunc("ping", func(ctx context.Context, a domain.Action) ([]domain.Action, error) { return nil, nil })
			_ = r.Handlers("ping")
			reg.Dispose()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count())
}
