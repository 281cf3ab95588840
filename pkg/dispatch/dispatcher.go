package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/google/uuid"
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateClosed
)

type queued struct {
	ctx    context.Context
	action domain.Action
}

// Dispatcher delivers actions to the handlers registered for their kind and
// correlates responses with pending requests.
//
// A single loop goroutine drains the queue in submission order. Each handler
// invocation runs in its own goroutine, so a slow handler never blocks the loop.
type Dispatcher struct {
	registry  *registry.Registry
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	timeout   time.Duration
	queueSize int
	senderID  string
	newID     func() string

	transportMu sync.RWMutex
	transport   ports.Transport

	mu       sync.Mutex // protects state transitions
	state    state
	queue    chan queued
	done     chan struct{}
	loopDone chan struct{}
	baseCtx  context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	// enqueueMu keeps a DispatchAll batch contiguous in the queue.
	enqueueMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest
}

// New creates a dispatcher. Call Start before submitting actions.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry.NewRegistry(),
		logger:    logging.NewNop(),
		timeout:   DefaultRequestTimeout,
		queueSize: DefaultQueueSize,
		senderID:  uuid.NewString(),
		newID:     uuid.NewString,
		pending:   make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the handler registry the dispatcher delivers to.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// SenderID returns the ID stamped on outbound envelopes.
func (d *Dispatcher) SenderID() string {
	return d.senderID
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateRunning:
		return ErrAlreadyRunning
	case stateClosed:
		return domain.ErrDispatcherClosed
	}

	d.queue = make(chan queued, d.queueSize)
	d.done = make(chan struct{})
	d.loopDone = make(chan struct{})
	d.baseCtx, d.cancel = context.WithCancel(context.Background())
	d.state = stateRunning

	go d.loop()
	return nil
}

// Close stops the loop, fails every pending request with domain.ErrDispatcherClosed
// and waits for in-flight handlers until ctx is done.
// Actions still queued are dropped. A closed dispatcher cannot be restarted.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.state != stateRunning {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.state = stateClosed
	close(d.done)
	d.mu.Unlock()

	defer d.cancel()
	<-d.loopDone
	d.failPending(domain.ErrDispatcherClosed)

	waited := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) current() state {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dispatch submits one action. It blocks while the queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, action domain.Action) error {
	d.enqueueMu.Lock()
	defer d.enqueueMu.Unlock()
	return d.enqueue(ctx, action)
}

// DispatchAll submits a batch. Actions of one batch are delivered in submission
// order and no other action is interleaved between them.
// It returns once every action is queued, not handled.
func (d *Dispatcher) DispatchAll(ctx context.Context, actions []domain.Action) error {
	d.enqueueMu.Lock()
	defer d.enqueueMu.Unlock()
	for i, a := range actions {
		if err := d.enqueue(ctx, a); err != nil {
			return fmt.Errorf("dispatch batch item %d: %w", i, err)
		}
	}
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, action domain.Action) error {
	if action == nil || action.Kind() == "" {
		return fmt.Errorf("%w: action without kind", domain.ErrInvalidPayload)
	}
	switch d.current() {
	case stateIdle:
		return ErrNotRunning
	case stateClosed:
		return domain.ErrDispatcherClosed
	}

	select {
	case d.queue <- queued{ctx: ctx, action: action}:
		return nil
	case <-d.done:
		return domain.ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer close(d.loopDone)
	for {
		select {
		case <-d.done:
			return
		case item := <-d.queue:
			d.deliver(item)
		}
	}
}

func (d *Dispatcher) deliver(item queued) {
	action := item.action
	if resp, ok := action.(domain.ResponseAction); ok {
		d.correlate(item.ctx, resp)
	}

	handlers := d.registry.Handlers(action.Kind())
	if d.hooks.OnDispatch != nil {
		d.hooks.OnDispatch(item.ctx, &domain.DispatchEvent{Kind: action.Kind(), Handlers: len(handlers)})
	}
	if len(handlers) == 0 {
		d.logger.Debug("No handler registered", "kind", action.Kind())
		return
	}

	for _, h := range handlers {
		d.inflight.Add(1)
		go d.invoke(item.ctx, h, action)
	}
}

// handlerContext keeps the caller's values but ties cancellation to the dispatcher lifetime,
// since Dispatch returns before the handler runs.
func (d *Dispatcher) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(d.baseCtx, cancel)
	return hctx, func() {
		stop()
		cancel()
	}
}

func (d *Dispatcher) invoke(parent context.Context, h registry.Handler, action domain.Action) {
	defer d.inflight.Done()
	ctx, release := d.handlerContext(parent)
	defer release()
	start := time.Now()

	var (
		follow []domain.Action
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
				d.logger.Error("Handler panicked",
					"kind", action.Kind(),
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		follow, err = h.Handle(ctx, action)
	}()

	if d.hooks.OnHandlerDone != nil {
		d.hooks.OnHandlerDone(ctx, &domain.HandlerEvent{Kind: action.Kind(), Duration: time.Since(start), Err: err})
	}
	if err != nil {
		d.logger.Error("Handler failed", "kind", action.Kind(), "err", err)
	}
	if len(follow) == 0 {
		return
	}
	if err := d.DispatchAll(ctx, follow); err != nil {
		d.logger.Debug("Dropped follow-up actions", "kind", action.Kind(), "err", err)
	}
}
