package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Transport is one end of an in-process connection.
// Safe for concurrent use.
type Transport struct {
	in         <-chan domain.Envelope
	out        chan<- domain.Envelope
	closed     chan struct{}
	peerClosed <-chan struct{}
	once       sync.Once
	codec      *domain.Codec
}

// PairOption configures both ends of a pair.
type PairOption func(*pairConfig)

type pairConfig struct {
	buffer int
	codec  *domain.Codec
}

// WithBuffer sets how many envelopes may be in flight per direction.
func WithBuffer(n int) PairOption {
	return func(c *pairConfig) {
		if n >= 0 {
			c.buffer = n
		}
	}
}

// WithCodec makes every Send go through Encode and Decode, as a network transport would.
func WithCodec(codec *domain.Codec) PairOption {
	return func(c *pairConfig) {
		c.codec = codec
	}
}

// NewPair returns two connected transports.
func NewPair(opts ...PairOption) (*Transport, *Transport) {
	cfg := pairConfig{buffer: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	ab := make(chan domain.Envelope, cfg.buffer)
	ba := make(chan domain.Envelope, cfg.buffer)
	aClosed := make(chan struct{})
	bClosed := make(chan struct{})

	a := &Transport{in: ba, out: ab, closed: aClosed, peerClosed: bClosed, codec: cfg.codec}
	b := &Transport{in: ab, out: ba, closed: bClosed, peerClosed: aClosed, codec: cfg.codec}
	return a, b
}

func (t *Transport) isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Send delivers env to the peer.
func (t *Transport) Send(ctx context.Context, env domain.Envelope) error {
	if t.isClosed(t.closed) || t.isClosed(t.peerClosed) {
		return domain.ErrNotConnected
	}
	if t.codec != nil {
		data, err := t.codec.Encode(env)
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
		if env, err = t.codec.Decode(data); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
	}

	select {
	case t.out <- env:
		return nil
	case <-t.closed:
		return domain.ErrNotConnected
	case <-t.peerClosed:
		return domain.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next envelope from the peer.
// Envelopes already in flight are still delivered after the peer closes.
func (t *Transport) Receive(ctx context.Context) (domain.Envelope, error) {
	if t.isClosed(t.closed) {
		return domain.Envelope{}, io.EOF
	}
	select {
	case env := <-t.in:
		return env, nil
	case <-t.closed:
		return domain.Envelope{}, io.EOF
	case <-t.peerClosed:
		select {
		case env := <-t.in:
			return env, nil
		default:
			return domain.Envelope{}, io.EOF
		}
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	}
}

// Close disconnects this end. The peer observes EOF once its inbound queue is drained.
func (t *Transport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}
