package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pair connects a client transport to a server transport through httptest.
func pair(t *testing.T, opts ...Option) (client, server *Transport) {
	t.Helper()
	accepted := make(chan *Transport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := Upgrade(w, r, opts...)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- tr
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), opts...)
	require.NoError(t, err)

	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("server side never accepted")
	}
	return client, server
}

func TestTransport_Contract(t *testing.T) {
	ports.RunTransportContract(t, func(t *testing.T) (ports.Transport, ports.Transport) {
		client, server := pair(t)
		return client, server
	})
}

func TestTransport_PeerCloseIsEOF(t *testing.T) {
	client, server := pair(t)
	defer server.Close()

	require.NoError(t, client.Close())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := server.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTransport_MalformedFrameDoesNotEndStream(t *testing.T) {
	accepted := make(chan *Transport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := Upgrade(w, r)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- tr
	}))
	defer srv.Close()

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	server := <-accepted
	defer server.Close()

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"senderId":"x","action":{}}`)))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"senderId":"x","action":{"kind":"ping"}}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = server.Receive(ctx)
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)

	env, err := server.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Action.Kind())
}

func TestTransport_OversizedFrame(t *testing.T) {
	client, server := pair(t, WithCodec(domain.NewCodec(domain.WithMaxEnvelopeBytes(256))))
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	big := domain.Message{Type: "blob", Payload: map[string]any{"data": strings.Repeat("x", 1024)}}
	_ = client.Send(ctx, domain.Envelope{Action: big})

	_, err := server.Receive(ctx)
	assert.ErrorIs(t, err, domain.ErrEnvelopeTooLarge)
}
