package ports

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TransportPair creates two connected transports. Envelopes sent on one are received by the other.
type TransportPair func(t *testing.T) (local, remote Transport)

// RunTransportContract runs a suite of tests to verify that a Transport implementation
// adheres to the defined interface contract.
func RunTransportContract(t *testing.T, newPair TransportPair) {
	t.Run("Send and Receive", func(t *testing.T) {
		local, remote := newPair(t)
		defer local.Close()
		defer remote.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := local.Send(ctx, domain.Envelope{
			SenderID: "client-1",
			Action:   domain.Request{Type: "ping", ID: "r-1"},
		})
		require.NoError(t, err, "Send should not return error")

		env, err := remote.Receive(ctx)
		require.NoError(t, err, "Receive should not return error")
		assert.Equal(t, "client-1", env.SenderID)
		req, ok := env.Action.(domain.RequestAction)
		require.True(t, ok, "expected a request action, got %T", env.Action)
		assert.Equal(t, "ping", req.Kind())
		assert.Equal(t, "r-1", req.RequestID())
	})

	t.Run("Both Directions Preserve Order", func(t *testing.T) {
		local, remote := newPair(t)
		defer local.Close()
		defer remote.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		kinds := []string{"a", "b", "c", "d"}
		for _, k := range kinds {
			require.NoError(t, remote.Send(ctx, domain.Envelope{SenderID: "srv", Action: domain.Message{Type: k}}))
		}
		for _, want := range kinds {
			env, err := local.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, env.Action.Kind())
		}
	})

	t.Run("Send After Close", func(t *testing.T) {
		local, remote := newPair(t)
		defer remote.Close()

		require.NoError(t, local.Close())
		err := local.Send(context.Background(), domain.Envelope{Action: domain.Message{Type: "late"}})
		assert.ErrorIs(t, err, domain.ErrNotConnected, "Send on a closed transport must fail loudly")
	})

	t.Run("Receive After Close", func(t *testing.T) {
		local, remote := newPair(t)
		defer remote.Close()

		require.NoError(t, local.Close())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := local.Receive(ctx)
		assert.True(t, errors.Is(err, io.EOF) || errors.Is(err, domain.ErrNotConnected),
			"Receive on a closed transport should report EOF, got %v", err)
	})

	t.Run("Receive Honors Context", func(t *testing.T) {
		local, remote := newPair(t)
		defer local.Close()
		defer remote.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := local.Receive(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
