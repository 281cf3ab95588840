package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStarted(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d := New(opts...)
	require.NoError(t, d.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d
}

func TestDispatcher_Lifecycle(t *testing.T) {
	d := New()
	ctx := context.Background()

	assert.ErrorIs(t, d.Dispatch(ctx, domain.Message{Type: "ping"}), ErrNotRunning)
	require.NoError(t, d.Start())
	assert.ErrorIs(t, d.Start(), ErrAlreadyRunning)

	require.NoError(t, d.Close(ctx))
	assert.ErrorIs(t, d.Close(ctx), ErrNotRunning)
	assert.ErrorIs(t, d.Dispatch(ctx, domain.Message{Type: "ping"}), domain.ErrDispatcherClosed)
	assert.ErrorIs(t, d.Start(), domain.ErrDispatcherClosed)
}

func TestDispatcher_RejectsKindless(t *testing.T) {
	d := newStarted(t)
	err := d.Dispatch(context.Background(), domain.Message{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestDispatcher_DeliversToEveryHandler(t *testing.T) {
	d := newStarted(t)
	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		d.Registry().RegisterFunc("ping", func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
			calls.Add(1)
			wg.Done()
			return nil, nil
		})
	}

	require.NoError(t, d.Dispatch(context.Background(), domain.Message{Type: "ping"}))
	wg.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcher_FollowUpActionsAreDispatched(t *testing.T) {
	d := newStarted(t)
	got := make(chan domain.Action, 1)
	d.Registry().RegisterFunc("first", func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
		return []domain.Action{domain.Message{Type: "second"}}, nil
	})
	d.Registry().RegisterFunc("second", func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
		got <- a
		return nil, nil
	})

	require.NoError(t, d.Dispatch(context.Background(), domain.Message{Type: "first"}))
	select {
	case a := <-got:
		assert.Equal(t, "second", a.Kind())
	case <-time.After(time.Second):
		t.Fatal("follow-up action was not delivered")
	}
}

func TestDispatcher_HandlerPanicIsRecovered(t *testing.T) {
	var failures atomic.Int32
	d := newStarted(t, WithHooks(domain.LifecycleHooks{
		OnHandlerDone: func(ctx context.Context, e *domain.HandlerEvent) {
			if e.Err != nil {
				failures.Add(1)
			}
		},
	}))
	done := make(chan struct{})
	d.Registry().RegisterFunc("boom", func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
		panic("handler exploded")
	})
	d.Registry().RegisterFunc("boom", func(ctx context.Context, a domain.Action) ([]domain.Action, error) {
		close(done)
		return nil, nil
	})

	require.NoError(t, d.Dispatch(context.Background(), domain.Message{Type: "boom"}))
	<-done
	assert.Eventually(t, func() bool { return failures.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The loop survives.
	resp, err := d.Request(context.Background(), domain.Request{Type: "nobody"}, WithRequestTimeout(10*time.Millisecond))
	assert.NoError(t, err)
	assert.Nil(t, resp)
}

func TestDispatchAll_BatchesStayOrderedAndContiguous(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	d := newStarted(t, WithHooks(domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			mu.Lock()
			seen = append(seen, e.Kind)
			mu.Unlock()
		},
	}))

	batch := func(prefix string) []domain.Action {
		out := make([]domain.Action, 5)
		for i := range out {
			out[i] = domain.Message{Type: fmt.Sprintf("%s%d", prefix, i)}
		}
		return out
	}

	var wg sync.WaitGroup
	for _, p := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			assert.NoError(t, d.DispatchAll(context.Background(), batch(p)))
		}(p)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 15
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for start := 0; start < 15; start += 5 {
		prefix := seen[start][:1]
		for i := 0; i < 5; i++ {
			assert.Equal(t, fmt.Sprintf("%s%d", prefix, i), seen[start+i], "batch %s interleaved: %v", prefix, seen)
		}
	}
}
