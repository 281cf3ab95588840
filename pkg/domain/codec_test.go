package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Decode(t *testing.T) {
	codec := NewCodec()

	tests := []struct {
		name    string
		raw     string
		wantErr error
		check   func(t *testing.T, env Envelope)
	}{
		{
			name: "Typed Request",
			raw:  `{"senderId":"peer-1","action":{"kind":"requestModel","requestId":"r-1","options":{"diagramType":"flow"}}}`,
			check: func(t *testing.T, env Envelope) {
				assert.Equal(t, "peer-1", env.SenderID)
				req, ok := env.Action.(RequestModel)
				require.True(t, ok, "expected RequestModel, got %T", env.Action)
				assert.Equal(t, "r-1", req.RequestID())
				assert.Equal(t, "flow", req.Options["diagramType"])
			},
		},
		{
			name: "Typed Response With Model",
			raw:  `{"senderId":"srv","action":{"kind":"setModel","responseId":"r-1","newRoot":{"id":"g","type":"graph","children":[{"id":"n1","type":"node"}]}}}`,
			check: func(t *testing.T, env Envelope) {
				set, ok := env.Action.(SetModel)
				require.True(t, ok)
				assert.Equal(t, "r-1", set.ResponseID())
				require.NotNil(t, set.Root)
				assert.NotNil(t, set.Root.Find("n1"))
			},
		},
		{
			name: "Generic Response",
			raw:  `{"senderId":"srv","action":{"kind":"pong","responseId":"r-9","latency":3}}`,
			check: func(t *testing.T, env Envelope) {
				resp, ok := env.Action.(Response)
				require.True(t, ok)
				assert.Equal(t, "pong", resp.Kind())
				assert.Equal(t, "r-9", resp.ResponseID())
				assert.Equal(t, json.Number("3"), resp.Payload["latency"])
				_, leaked := resp.Payload[FieldResponseID]
				assert.False(t, leaked, "reserved fields must not leak into the payload")
			},
		},
		{
			name: "Generic Message",
			raw:  `{"action":{"kind":"centerElements","elementIds":["a","b"]}}`,
			check: func(t *testing.T, env Envelope) {
				msg, ok := env.Action.(Message)
				require.True(t, ok)
				assert.Equal(t, "centerElements", msg.Kind())
				assert.Len(t, msg.Payload["elementIds"], 2)
			},
		},
		{
			name:    "Missing Kind",
			raw:     `{"senderId":"x","action":{"elementIds":["a"]}}`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:    "Missing Action",
			raw:     `{"senderId":"x"}`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:    "Invalid JSON",
			raw:     `{"senderId":`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:    "Wrong Field Type",
			raw:     `{"action":{"kind":"updateModel","newRoot":"not-an-element"}}`,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := codec.Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, env)
		})
	}
}

func TestCodec_SizeLimit(t *testing.T) {
	codec := NewCodec(WithMaxEnvelopeBytes(64))
	raw := `{"action":{"kind":"big","data":"` + strings.Repeat("x", 100) + `"}}`

	_, err := codec.Decode([]byte(raw))
	assert.True(t, errors.Is(err, ErrEnvelopeTooLarge), "got %v", err)
}

func TestCodec_EncodeFlattensAction(t *testing.T) {
	codec := NewCodec()

	data, err := codec.Encode(Envelope{
		SenderID: "client-1",
		Action:   Request{Type: "ping", ID: "r-1", Payload: map[string]any{"n": 1}},
	})
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "client-1", wire["senderId"])

	action := wire["action"].(map[string]any)
	assert.Equal(t, "ping", action[FieldKind])
	assert.Equal(t, "r-1", action[FieldRequestID])
	assert.Equal(t, float64(1), action["n"])
}

func TestCodec_EncodeRejectsKindless(t *testing.T) {
	codec := NewCodec()
	_, err := codec.Encode(Envelope{Action: Message{}})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestCodec_RoundTripTypedKind(t *testing.T) {
	codec := NewCodec()
	root := NewElement("g", "graph", NewElement("n1", "node"))

	data, err := codec.Encode(Envelope{SenderID: "srv", Action: UpdateModel{Root: root, Revision: 7}})
	require.NoError(t, err)

	env, err := codec.Decode(data)
	require.NoError(t, err)
	update, ok := env.Action.(UpdateModel)
	require.True(t, ok)
	assert.Equal(t, int64(7), update.Revision)
	assert.Equal(t, "n1", update.Root.Children[0].ID)
}

type pluginAction struct {
	Target string `json:"target" mapstructure:"target"`
}

func (pluginAction) Kind() string { return "plugin.poke" }

func TestCodec_RegisterPluginKind(t *testing.T) {
	codec := NewCodec()
	assert.False(t, codec.Known("plugin.poke"))

	Register[pluginAction](codec)
	assert.True(t, codec.Known("plugin.poke"))

	action, err := codec.FromMap(map[string]any{"kind": "plugin.poke", "target": "n1"})
	require.NoError(t, err)
	assert.Equal(t, pluginAction{Target: "n1"}, action)
}
