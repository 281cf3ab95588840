package redis

import (
	"context"
	"fmt"
	"io"
	"sync"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lattice/pkg/domain"
)

// Channels returns the Pub/Sub channel names of a session: the channel the
// server side publishes to and the one the client side publishes to.
func Channels(prefix, sessionID string) (toClient, toServer string) {
	base := prefix + "session:" + sessionID
	return base + ":client", base + ":server"
}

// Transport carries envelopes over Redis Pub/Sub.
// It publishes on one channel and receives from another.
type Transport struct {
	client  *backend.Client
	pubsub  *backend.PubSub
	msgs    <-chan *backend.Message
	publish string
	codec   *domain.Codec

	closed chan struct{}
	once   sync.Once
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithCodec sets the codec used for messages. Defaults to domain.NewCodec().
func WithCodec(codec *domain.Codec) TransportOption {
	return func(t *Transport) {
		if codec != nil {
			t.codec = codec
		}
	}
}

// NewTransport subscribes to subscribe and returns a transport publishing to publish.
// It returns once the subscription is confirmed, so no message published afterwards is missed.
func NewTransport(ctx context.Context, client *backend.Client, publish, subscribe string, opts ...TransportOption) (*Transport, error) {
	t := &Transport{
		client:  client,
		publish: publish,
		codec:   domain.NewCodec(),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.pubsub = client.Subscribe(ctx, subscribe)
	if _, err := t.pubsub.Receive(ctx); err != nil {
		_ = t.pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subscribe, err)
	}
	t.msgs = t.pubsub.Channel()
	return t, nil
}

// NewServerTransport is NewTransport for the server side of session sessionID.
func NewServerTransport(ctx context.Context, client *backend.Client, prefix, sessionID string, opts ...TransportOption) (*Transport, error) {
	toClient, toServer := Channels(prefix, sessionID)
	return NewTransport(ctx, client, toClient, toServer, opts...)
}

// NewClientTransport is NewTransport for the client side of session sessionID.
func NewClientTransport(ctx context.Context, client *backend.Client, prefix, sessionID string, opts ...TransportOption) (*Transport, error) {
	toClient, toServer := Channels(prefix, sessionID)
	return NewTransport(ctx, client, toServer, toClient, opts...)
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Send publishes env. Pub/Sub does not buffer: envelopes sent while the peer is
// not subscribed are lost.
func (t *Transport) Send(ctx context.Context, env domain.Envelope) error {
	if t.isClosed() {
		return domain.ErrNotConnected
	}
	data, err := t.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := t.client.Publish(ctx, t.publish, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", t.publish, err)
	}
	return nil
}

// Receive returns the next envelope published by the peer.
func (t *Transport) Receive(ctx context.Context) (domain.Envelope, error) {
	if t.isClosed() {
		return domain.Envelope{}, io.EOF
	}
	select {
	case msg, ok := <-t.msgs:
		if !ok {
			return domain.Envelope{}, io.EOF
		}
		return t.codec.Decode([]byte(msg.Payload))
	case <-t.closed:
		return domain.Envelope{}, io.EOF
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	}
}

// Close unsubscribes. The shared client stays open.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		err = t.pubsub.Close()
	})
	return err
}
