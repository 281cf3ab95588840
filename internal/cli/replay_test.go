package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
)

const modelJSON = `{
  "id": "g", "type": "graph",
  "children": [
    {"id": "n1", "type": "node", "attributes": {"x": 0, "y": 0, "width": 40, "height": 20}},
    {"id": "n2", "type": "node", "features": {"connectable": true}}
  ]
}`

const feedbackYAML = `
emitters:
  - name: styles
    actions:
      - kind: applyCssClass
        elementIds: [n1]
        class: highlight
      - kind: highlightCapable
        feature: connectable
        class: target
  - name: resize-tool
    actions:
      - kind: showHandles
        elementIds: [n1]
        positions: [se]
      - kind: setCursor
        elementId: n1
        cursor: move
  - name: plugin
    actions:
      - kind: sparkle
        elementIds: [n2]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newCodec() *domain.Codec {
	c := domain.NewCodec()
	feedback.RegisterKinds(c)
	return c
}

func TestLoadModel(t *testing.T) {
	root, err := LoadModel(writeFile(t, "model.json", modelJSON))
	require.NoError(t, err)
	assert.Equal(t, "g", root.ID)
	require.NotNil(t, root.Find("n1"))
	assert.True(t, root.Find("n2").HasFeature("connectable"))

	t.Run("YAML", func(t *testing.T) {
		root, err := LoadModel(writeFile(t, "model.yaml", "id: g\ntype: graph\nchildren:\n  - id: n1\n    type: node\n"))
		require.NoError(t, err)
		assert.NotNil(t, root.Find("n1"))
	})

	t.Run("No root id", func(t *testing.T) {
		_, err := LoadModel(writeFile(t, "model.json", `{"type": "graph"}`))
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadModel(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadFeedback(t *testing.T) {
	file, actions, err := LoadFeedback(writeFile(t, "feedback.yaml", feedbackYAML), newCodec())
	require.NoError(t, err)
	require.Len(t, file.Emitters, 3)
	require.Len(t, actions, 3)

	assert.Equal(t, feedback.ApplyCSSClass{ElementIDs: []string{"n1"}, Class: "highlight"}, actions[0][0])
	assert.Equal(t, feedback.ShowHandles{ElementIDs: []string{"n1"}, Positions: []string{"se"}}, actions[1][0])
	assert.Equal(t, "sparkle", actions[2][0].Kind())
	assert.IsType(t, domain.Message{}, actions[2][0])

	t.Run("Unnamed emitter", func(t *testing.T) {
		_, _, err := LoadFeedback(writeFile(t, "f.yaml", "emitters:\n  - actions: []\n"), newCodec())
		assert.ErrorIs(t, err, domain.ErrInvalidEmitter)
	})

	t.Run("Action without kind", func(t *testing.T) {
		_, _, err := LoadFeedback(writeFile(t, "f.json", `{"emitters":[{"name":"a","actions":[{"class":"x"}]}]}`), newCodec())
		assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)
	})
}

func TestReplay(t *testing.T) {
	root, err := LoadModel(writeFile(t, "model.json", modelJSON))
	require.NoError(t, err)
	file, actions, err := LoadFeedback(writeFile(t, "feedback.yaml", feedbackYAML), newCodec())
	require.NoError(t, err)

	out, report, err := Replay(context.Background(), root, file, actions, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Emitters)
	assert.Equal(t, 5, report.Actions)
	assert.Equal(t, 4, report.Event.Effects)
	assert.Equal(t, 1, report.Event.Skipped)
	assert.Zero(t, report.Event.Failed)

	n1 := out.Find("n1")
	assert.True(t, n1.HasClass("highlight"))
	assert.Equal(t, "move", n1.Overlay["cursor"])
	assert.NotNil(t, out.Find(feedback.HandleID("n1", "se")))
	assert.True(t, out.Find("n2").HasClass("target"))

	assert.Nil(t, root.Find(feedback.HandleID("n1", "se")), "input model untouched")

	again, _, err := Replay(context.Background(), root, file, actions, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(out, again); diff != "" {
		t.Errorf("replay not deterministic (-first +second):\n%s", diff)
	}
}

func TestWriteModel(t *testing.T) {
	root := domain.NewElement("g", "graph", domain.NewElement("n1", "node"))
	dir := t.TempDir()

	for _, name := range []string{"out.json", "out.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteModel(io.Discard, path, root))
		back, err := LoadModel(path)
		require.NoError(t, err)
		assert.Equal(t, root, back, name)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteModel(&buf, "", root))
	assert.JSONEq(t, `{"id":"g","type":"graph","children":[{"id":"n1","type":"node"}]}`, buf.String())
}
