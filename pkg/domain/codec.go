package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Wire field names shared by every action.
const (
	FieldKind       = "kind"
	FieldRequestID  = "requestId"
	FieldResponseID = "responseId"
)

// DefaultMaxEnvelopeBytes bounds the size of one inbound envelope (1 MiB).
const DefaultMaxEnvelopeBytes = 1 << 20

// Envelope is the unit exchanged with a remote peer.
type Envelope struct {
	SenderID string
	Action   Action
}

type wireEnvelope struct {
	SenderID string         `json:"senderId"`
	Action   map[string]any `json:"action"`
}

type decodeFunc func(map[string]any) (Action, error)

// Codec converts actions to and from their wire form.
// Kinds with a typed representation are registered explicitly; all other kinds
// decode into the generic Message, Request or Response.
type Codec struct {
	mu       sync.RWMutex
	kinds    map[string]decodeFunc
	maxBytes int
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithMaxEnvelopeBytes sets the inbound size limit. Non-positive values keep the default.
func WithMaxEnvelopeBytes(n int) CodecOption {
	return func(c *Codec) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// NewCodec creates a codec that knows the standard model actions.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		kinds:    make(map[string]decodeFunc),
		maxBytes: DefaultMaxEnvelopeBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	Register[RequestModel](c)
	Register[SetModel](c)
	Register[UpdateModel](c)
	Register[ModelPublished](c)
	Register[RefreshFeedback](c)
	return c
}

// MaxEnvelopeBytes returns the inbound size limit.
func (c *Codec) MaxEnvelopeBytes() int {
	return c.maxBytes
}

// Register adds a typed action to the codec's kind table.
// The kind is taken from the zero value of T, so Kind must not depend on T's fields.
func Register[T Action](c *Codec) {
	var zero T
	kind := zero.Kind()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[kind] = func(m map[string]any) (Action, error) {
		var out T
		if err := decodeMap(m, &out); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
		}
		return out, nil
	}
}

// Known reports whether the kind has a typed representation.
func (c *Codec) Known(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.kinds[kind]
	return ok
}

func decodeMap(m map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		TagName:    "mapstructure",
		ZeroFields: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}

// FromMap decodes a single action from its flattened map form.
func (c *Codec) FromMap(m map[string]any) (Action, error) {
	kind, _ := m[FieldKind].(string)
	if kind == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedEnvelope, FieldKind)
	}

	c.mu.RLock()
	decode, ok := c.kinds[kind]
	c.mu.RUnlock()
	if ok {
		return decode(m)
	}

	payload := make(map[string]any, len(m))
	for k, v := range m {
		if k == FieldKind || k == FieldRequestID || k == FieldResponseID {
			continue
		}
		payload[k] = v
	}
	if id, ok := m[FieldRequestID].(string); ok {
		return Request{Type: kind, ID: id, Payload: payload}, nil
	}
	if id, ok := m[FieldResponseID].(string); ok {
		return Response{Type: kind, ID: id, Payload: payload}, nil
	}
	return Message{Type: kind, Payload: payload}, nil
}

// ToMap flattens an action into its wire map form, including the kind.
func (c *Codec) ToMap(a Action) (map[string]any, error) {
	if a == nil || a.Kind() == "" {
		return nil, fmt.Errorf("%w: action without kind", ErrInvalidPayload)
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action %s: %w", a.Kind(), err)
	}
	m := make(map[string]any)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to flatten action %s: %w", a.Kind(), err)
	}

	var payload map[string]any
	switch v := a.(type) {
	case Message:
		payload = v.Payload
	case Request:
		payload = v.Payload
	case Response:
		payload = v.Payload
	}
	for k, v := range payload {
		if _, reserved := m[k]; !reserved {
			m[k] = v
		}
	}
	m[FieldKind] = a.Kind()
	return m, nil
}

// Encode serializes an envelope.
func (c *Codec) Encode(env Envelope) ([]byte, error) {
	m, err := c.ToMap(env.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{SenderID: env.SenderID, Action: m})
}

// Decode parses an inbound envelope.
// Oversized payloads and envelopes without an action kind are rejected here,
// before they can reach the dispatcher.
func (c *Codec) Decode(data []byte) (Envelope, error) {
	if len(data) > c.maxBytes {
		return Envelope{}, fmt.Errorf("%w: size=%d limit=%d", ErrEnvelopeTooLarge, len(data), c.maxBytes)
	}

	var wire wireEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if wire.Action == nil {
		return Envelope{}, fmt.Errorf("%w: missing action", ErrMalformedEnvelope)
	}

	action, err := c.FromMap(wire.Action)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{SenderID: wire.SenderID, Action: action}, nil
}
