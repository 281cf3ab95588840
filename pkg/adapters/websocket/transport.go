package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/aretw0/lattice/pkg/domain"
)

const (
	writeWait      = 10 * time.Second
	defaultPong    = 60 * time.Second
	inboundBacklog = 64
)

type inbound struct {
	env domain.Envelope
	err error
}

// Transport carries envelopes as JSON text frames over a websocket connection.
// A background goroutine reads frames so that Receive can honor its context.
type Transport struct {
	conn  *ws.Conn
	codec *domain.Codec

	writeMu sync.Mutex

	in       chan inbound
	closed   chan struct{}
	readDone chan struct{}
	pingDone chan struct{}
	once     sync.Once

	pongWait time.Duration
}

// Option configures a Transport.
type Option func(*Transport)

// WithCodec sets the codec used for frames. Defaults to domain.NewCodec().
func WithCodec(codec *domain.Codec) Option {
	return func(t *Transport) {
		if codec != nil {
			t.codec = codec
		}
	}
}

// WithPongWait sets how long the peer may stay silent before the connection is dropped.
// Pings are sent at 9/10 of this interval.
func WithPongWait(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.pongWait = d
		}
	}
}

// New wraps an established connection and starts its read and ping loops.
func New(conn *ws.Conn, opts ...Option) *Transport {
	t := &Transport{
		conn:     conn,
		codec:    domain.NewCodec(),
		in:       make(chan inbound, inboundBacklog),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
		pingDone: make(chan struct{}),
		pongWait: defaultPong,
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.readLoop()
	go t.pingLoop()
	return t
}

// Dial connects to a websocket endpoint.
func Dial(ctx context.Context, url string, opts ...Option) (*Transport, error) {
	conn, resp, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return New(conn, opts...), nil
}

var upgrader = ws.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// Upgrade upgrades an HTTP request to a websocket transport.
// On failure the upgrader has already replied to the client.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...Option) (*Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	return New(conn, opts...), nil
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *Transport) push(item inbound) bool {
	select {
	case t.in <- item:
		return true
	case <-t.closed:
		return false
	}
}

func (t *Transport) readLoop() {
	defer close(t.readDone)
	defer close(t.in)

	t.conn.SetReadLimit(int64(t.codec.MaxEnvelopeBytes()))
	_ = t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
	})

	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, ws.ErrReadLimit) {
				err = fmt.Errorf("%w: %v", domain.ErrEnvelopeTooLarge, err)
			} else if t.isClosed() || ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseAbnormalClosure) {
				err = io.EOF
			} else {
				err = fmt.Errorf("read frame: %w", err)
			}
			t.push(inbound{err: err})
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
		if messageType != ws.TextMessage {
			continue
		}
		env, err := t.codec.Decode(data)
		if !t.push(inbound{env: env, err: err}) {
			return
		}
	}
}

func (t *Transport) pingLoop() {
	defer close(t.pingDone)
	ticker := time.NewTicker(t.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait))
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send encodes env and writes it as one text frame.
func (t *Transport) Send(ctx context.Context, env domain.Envelope) error {
	if t.isClosed() {
		return domain.ErrNotConnected
	}
	data, err := t.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(ws.TextMessage, data); err != nil {
		if t.isClosed() || errors.Is(err, ws.ErrCloseSent) {
			return domain.ErrNotConnected
		}
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Receive returns the next decoded envelope. Frames that fail to decode are
// returned as errors without ending the stream.
func (t *Transport) Receive(ctx context.Context) (domain.Envelope, error) {
	if t.isClosed() {
		return domain.Envelope{}, io.EOF
	}
	select {
	case item, ok := <-t.in:
		if !ok {
			return domain.Envelope{}, io.EOF
		}
		return item.env, item.err
	case <-t.closed:
		return domain.Envelope{}, io.EOF
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	}
}

// Close sends a close frame, closes the connection and waits for the loops to exit.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		t.writeMu.Unlock()
		err = t.conn.Close()
		<-t.readDone
		<-t.pingDone
	})
	return err
}
