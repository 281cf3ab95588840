package stdio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

type line struct {
	env domain.Envelope
	err error
}

// Transport exchanges envelopes as JSON lines, one envelope per line.
// A background goroutine reads lines so that Receive can honor its context.
type Transport struct {
	reader io.Reader
	writer io.Writer
	codec  *domain.Codec

	writeMu sync.Mutex

	lines    chan line
	closed   chan struct{}
	readDone chan struct{}
	once     sync.Once
}

// Option configures a Transport.
type Option func(*Transport)

// WithCodec sets the codec used for lines. Defaults to domain.NewCodec().
func WithCodec(codec *domain.Codec) Option {
	return func(t *Transport) {
		if codec != nil {
			t.codec = codec
		}
	}
}

// New creates a transport reading from r and writing to w.
// Nil arguments default to os.Stdin and os.Stdout.
func New(r io.Reader, w io.Writer, opts ...Option) *Transport {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	t := &Transport{
		reader:   r,
		writer:   w,
		codec:    domain.NewCodec(),
		lines:    make(chan line, 64),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.readLoop()
	return t
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *Transport) readLoop() {
	defer close(t.readDone)
	defer close(t.lines)

	br := bufio.NewReader(t.reader)
	for {
		raw, err := br.ReadBytes('\n')
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 {
			env, decErr := t.codec.Decode(raw)
			select {
			case t.lines <- line{env: env, err: decErr}:
			case <-t.closed:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !t.isClosed() {
				select {
				case t.lines <- line{err: fmt.Errorf("read line: %w", err)}:
				case <-t.closed:
				}
			}
			return
		}
	}
}

// Send writes env as one line.
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
	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		if t.isClosed() || errors.Is(err, io.ErrClosedPipe) {
			return domain.ErrNotConnected
		}
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// Receive returns the next decoded line. Lines that fail to decode are
// returned as errors without ending the stream.
func (t *Transport) Receive(ctx context.Context) (domain.Envelope, error) {
	if t.isClosed() {
		return domain.Envelope{}, io.EOF
	}
	select {
	case l, ok := <-t.lines:
		if !ok {
			return domain.Envelope{}, io.EOF
		}
		return l.env, l.err
	case <-t.closed:
		return domain.Envelope{}, io.EOF
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	}
}

// Close stops the transport and closes the reader and writer when they are closers.
// It waits for the read loop only when the reader could be closed.
func (t *Transport) Close() error {
	var errs []error
	t.once.Do(func() {
		close(t.closed)
		rc, readerCloses := t.reader.(io.Closer)
		if readerCloses {
			errs = append(errs, rc.Close())
		}
		if wc, ok := t.writer.(io.Closer); ok {
			errs = append(errs, wc.Close())
		}
		if readerCloses {
			<-t.readDone
		}
	})
	return errors.Join(errs...)
}
