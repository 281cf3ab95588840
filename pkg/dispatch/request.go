package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

type result struct {
	resp domain.ResponseAction
	err  error
}

// pendingRequest is owned by the pending table. Whoever removes it from the
// table is the only one allowed to complete it.
type pendingRequest struct {
	kind  string
	start time.Time
	ch    chan result // buffered, receives exactly once
}

// PendingCount returns the number of requests awaiting a response.
func (d *Dispatcher) PendingCount() int {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return len(d.pending)
}

// take removes a pending entry. It reports false when the entry was already
// completed by someone else.
func (d *Dispatcher) take(id string) (*pendingRequest, bool) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	p, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	return p, ok
}

func (d *Dispatcher) correlate(ctx context.Context, resp domain.ResponseAction) {
	id := resp.ResponseID()
	if id == "" {
		d.unsolicited(ctx, resp)
		return
	}
	p, ok := d.take(id)
	if !ok {
		d.unsolicited(ctx, resp)
		return
	}
	p.ch <- result{resp: resp}
}

func (d *Dispatcher) unsolicited(ctx context.Context, resp domain.ResponseAction) {
	d.logger.Info("Dropping unsolicited response",
		"kind", resp.Kind(),
		"response_id", resp.ResponseID(),
	)
	if d.hooks.OnUnsolicited != nil {
		d.hooks.OnUnsolicited(ctx, resp)
	}
}

func (d *Dispatcher) failPending(err error) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	for id, p := range d.pending {
		delete(d.pending, id)
		p.ch <- result{err: err}
	}
}

// Request dispatches req and waits for the response whose ResponseID equals its RequestID.
//
// An empty RequestID is replaced by a generated one. When no response arrives in time
// the request resolves with a nil response and a nil error, unless RejectOnTimeout is set.
// Cancelling ctx abandons the request and returns ctx.Err().
func (d *Dispatcher) Request(ctx context.Context, req domain.RequestAction, opts ...RequestOption) (domain.ResponseAction, error) {
	cfg := requestConfig{timeout: d.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", domain.ErrInvalidPayload)
	}

	id := req.RequestID()
	if id == "" {
		req = req.WithRequestID(d.newID())
		id = req.RequestID()
	}

	p := &pendingRequest{kind: req.Kind(), start: time.Now(), ch: make(chan result, 1)}
	d.pendingMu.Lock()
	if _, dup := d.pending[id]; dup {
		d.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
	}
	d.pending[id] = p
	d.pendingMu.Unlock()

	timer := time.NewTimer(cfg.timeout)
	defer timer.Stop()

	if err := d.Dispatch(ctx, req); err != nil {
		d.take(id)
		return nil, err
	}

	select {
	case r := <-p.ch:
		return d.finish(ctx, id, p, r)
	case <-timer.C:
		if _, ok := d.take(id); !ok {
			// The response won the race after the timer fired.
			return d.finish(ctx, id, p, <-p.ch)
		}
		d.report(ctx, id, p, domain.OutcomeTimeout)
		if cfg.reject {
			return nil, fmt.Errorf("%w: %s %s after %s", domain.ErrRequestTimeout, p.kind, id, cfg.timeout)
		}
		d.logger.Info("Request timed out", "kind", p.kind, "request_id", id, "timeout", cfg.timeout)
		return nil, nil
	case <-ctx.Done():
		if _, ok := d.take(id); !ok {
			return d.finish(ctx, id, p, <-p.ch)
		}
		d.report(ctx, id, p, domain.OutcomeCancelled)
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) finish(ctx context.Context, id string, p *pendingRequest, r result) (domain.ResponseAction, error) {
	if r.err != nil {
		d.report(ctx, id, p, domain.OutcomeCancelled)
		return nil, r.err
	}
	d.report(ctx, id, p, domain.OutcomeResolved)
	return r.resp, nil
}

func (d *Dispatcher) report(ctx context.Context, id string, p *pendingRequest, outcome domain.RequestOutcome) {
	if d.hooks.OnRequestDone == nil {
		return
	}
	d.hooks.OnRequestDone(ctx, &domain.RequestEvent{
		Kind:      p.kind,
		RequestID: id,
		Outcome:   outcome,
		Duration:  time.Since(p.start),
	})
}

// RequestAs is Request with the response narrowed to R.
// A lenient timeout yields the zero R and a nil error.
func RequestAs[R domain.ResponseAction](ctx context.Context, d *Dispatcher, req domain.RequestAction, opts ...RequestOption) (R, error) {
	var zero R
	resp, err := d.Request(ctx, req, opts...)
	if err != nil || resp == nil {
		return zero, err
	}
	typed, ok := resp.(R)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", domain.ErrUnexpectedResponse, zero, resp)
	}
	return typed, nil
}
