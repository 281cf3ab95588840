package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// Transport carries envelopes between the local dispatcher and a remote peer.
type Transport interface {
	// Send hands the envelope to the peer.
	// It returns domain.ErrNotConnected if the transport is closed or was never connected.
	Send(ctx context.Context, env domain.Envelope) error

	// Receive blocks until the next inbound envelope arrives.
	// Malformed envelopes are reported as errors wrapping domain.ErrMalformedEnvelope
	// and do not end the stream. io.EOF signals a closed transport.
	Receive(ctx context.Context) (domain.Envelope, error)

	// Close releases the transport. Subsequent Send calls fail with domain.ErrNotConnected.
	Close() error
}
