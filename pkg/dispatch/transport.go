package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
)

// SetTransport attaches or replaces the transport used by SendMessage.
// Passing nil detaches it.
func (d *Dispatcher) SetTransport(t ports.Transport) {
	d.transportMu.Lock()
	defer d.transportMu.Unlock()
	d.transport = t
}

// SendMessage wraps action in an envelope and hands it to the transport.
// It fails with domain.ErrNotConnected when no transport is attached or the
// transport has been closed.
func (d *Dispatcher) SendMessage(ctx context.Context, action domain.Action) error {
	d.transportMu.RLock()
	t := d.transport
	d.transportMu.RUnlock()
	if t == nil {
		return fmt.Errorf("send %s: %w", action.Kind(), domain.ErrNotConnected)
	}
	if err := t.Send(ctx, domain.Envelope{SenderID: d.senderID, Action: action}); err != nil {
		return fmt.Errorf("send %s: %w", action.Kind(), err)
	}
	return nil
}

// ForwardHandler returns a handler that sends every action it receives to the remote peer.
func (d *Dispatcher) ForwardHandler() registry.Handler {
	return registry.HandlerFunc(func(ctx context.Context, action domain.Action) ([]domain.Action, error) {
		return nil, d.SendMessage(ctx, action)
	})
}

// Forward registers the forward handler for each kind.
func (d *Dispatcher) Forward(kinds ...string) []*registry.Registration {
	h := d.ForwardHandler()
	regs := make([]*registry.Registration, 0, len(kinds))
	for _, k := range kinds {
		regs = append(regs, d.registry.Register(k, h))
	}
	return regs
}

// Pump reads envelopes from t and dispatches their actions until the transport
// reaches EOF or ctx is done. Envelopes rejected by the codec are logged and skipped.
func (d *Dispatcher) Pump(ctx context.Context, t ports.Transport) error {
	for {
		env, err := t.Receive(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, domain.ErrMalformedEnvelope),
			errors.Is(err, domain.ErrEnvelopeTooLarge),
			errors.Is(err, domain.ErrInvalidPayload):
			d.logger.Warn("Rejected inbound envelope", "err", err)
			continue
		default:
			return err
		}

		d.logger.Debug("Inbound action", "kind", env.Action.Kind(), "sender_id", env.SenderID)
		if err := d.Dispatch(ctx, env.Action); err != nil {
			return fmt.Errorf("dispatch inbound %s: %w", env.Action.Kind(), err)
		}
	}
}
