package feedback

import (
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diagram() *domain.Element {
	return domain.NewElement("g", "graph",
		domain.NewElement("n1", "node", domain.NewElement("n1-label", "label")),
		domain.NewElement("n2", "node"),
		domain.NewElement("e1", "edge"),
	)
}

func apply(t *testing.T, a domain.Action, root *domain.Element) {
	t.Helper()
	eff, ok := EffectFor(a)
	require.True(t, ok, "no effect for %s", a.Kind())
	require.NoError(t, eff.Apply(root))
}

func TestEffectFor_DefaultPriorities(t *testing.T) {
	tests := []struct {
		action domain.Action
		want   int
	}{
		{SetCapability{Feature: "connectable"}, PriorityCapability},
		{ShowHandles{}, PriorityHandles},
		{HideHandles{}, PriorityHandles},
		{ApplyCSSClass{Class: "x"}, PriorityPresentation},
		{RemoveCSSClass{Class: "x"}, PriorityPresentation},
		{HighlightCapable{}, PriorityPresentation},
		{SetCursor{}, PriorityPresentation},
	}
	for _, tt := range tests {
		t.Run(tt.action.Kind(), func(t *testing.T) {
			eff, ok := EffectFor(tt.action)
			require.True(t, ok)
			assert.Equal(t, tt.want, eff.Priority)
			assert.Equal(t, tt.action.Kind(), eff.Kind)
		})
	}
}

func TestEffectFor_PriorityOverride(t *testing.T) {
	eff, ok := EffectFor(ApplyCSSClass{Class: "x", Priority: WithPriority(42)})
	require.True(t, ok)
	assert.Equal(t, 42, eff.Priority)
}

func TestEffectFor_UnknownKind(t *testing.T) {
	_, ok := EffectFor(domain.Message{Type: "showHandles"})
	assert.False(t, ok, "generic actions are outside the closed table")
}

func TestShowHandles_IsIdempotent(t *testing.T) {
	root := diagram()
	a := NewShowHandles("n1", "missing")

	apply(t, a, root)
	apply(t, a, root)

	n1 := root.Find("n1")
	handles := 0
	for _, c := range n1.Children {
		if c.Type == HandleType {
			handles++
		}
	}
	assert.Equal(t, len(DefaultHandlePositions), handles)
	assert.NotNil(t, root.Find(HandleID("n1", "nw")))
	assert.Equal(t, "nw", root.Find(HandleID("n1", "nw")).Attributes["position"])
	assert.NotNil(t, root.Find("n1-label"), "existing children are kept")
}

func TestHideHandles(t *testing.T) {
	root := diagram()
	apply(t, NewShowHandles("n1", "n2"), root)

	apply(t, NewHideHandles("n1"), root)
	assert.Nil(t, root.Find(HandleID("n1", "se")))
	assert.NotNil(t, root.Find(HandleID("n2", "se")))
	assert.NotNil(t, root.Find("n1-label"))

	apply(t, NewHideHandles(), root)
	assert.Nil(t, root.Find(HandleID("n2", "se")))
	assert.Nil(t, root.Find("n2").Children)
}

func TestSetCapability_Targets(t *testing.T) {
	root := diagram()
	apply(t, SetCapability{Feature: "connectable", Enabled: true, ElementTypes: []string{"node"}}, root)
	assert.True(t, root.Find("n1").HasFeature("connectable"))
	assert.True(t, root.Find("n2").HasFeature("connectable"))
	assert.False(t, root.Find("e1").HasFeature("connectable"))

	apply(t, NewSetCapability("deletable", true), root)
	assert.True(t, root.Find("e1").HasFeature("deletable"))
	assert.True(t, root.HasFeature("deletable"))

	apply(t, NewSetCapability("connectable", false, "n2"), root)
	assert.False(t, root.Find("n2").HasFeature("connectable"))
	assert.True(t, root.Find("n1").HasFeature("connectable"))
}

func TestCSSClassEffects(t *testing.T) {
	root := diagram()
	apply(t, NewApplyCSSClass("selected", "n1", "n2"), root)
	apply(t, NewApplyCSSClass("selected", "n1"), root)
	assert.Equal(t, []string{"selected"}, root.Find("n1").CSSClasses)

	apply(t, NewRemoveCSSClass("selected", "n1"), root)
	assert.False(t, root.Find("n1").HasClass("selected"))
	assert.True(t, root.Find("n2").HasClass("selected"))

	apply(t, NewRemoveCSSClass("selected"), root)
	assert.False(t, root.Find("n2").HasClass("selected"))
}

func TestHighlightCapable(t *testing.T) {
	root := diagram()
	root.Find("n2").SetFeature("connectable", true)

	apply(t, NewHighlightCapable("connectable", "highlight"), root)
	assert.True(t, root.Find("n2").HasClass("highlight"))
	assert.False(t, root.Find("n1").HasClass("highlight"))
}

func TestSetCursor(t *testing.T) {
	root := diagram()
	apply(t, NewSetCursor("", "move"), root)
	apply(t, NewSetCursor("n1", "nwse-resize"), root)
	apply(t, NewSetCursor("missing", "crosshair"), root)
	assert.Equal(t, "move", root.Overlay["cursor"])
	assert.Equal(t, "nwse-resize", root.Find("n1").Overlay["cursor"])

	apply(t, NewSetCursor("", ""), root)
	assert.Nil(t, root.Overlay)
}

func TestEffects_RejectInvalidPayload(t *testing.T) {
	for _, a := range []domain.Action{
		SetCapability{},
		ApplyCSSClass{ElementIDs: []string{"n1"}},
		RemoveCSSClass{},
		HighlightCapable{Feature: "connectable"},
	} {
		t.Run(a.Kind(), func(t *testing.T) {
			eff, ok := EffectFor(a)
			require.True(t, ok)
			assert.ErrorIs(t, eff.Apply(diagram()), domain.ErrInvalidPayload)
		})
	}
}

func TestRegisterKinds_DecodesTypedFeedback(t *testing.T) {
	codec := domain.NewCodec()
	RegisterKinds(codec)
	for _, k := range Kinds() {
		assert.True(t, codec.Known(k), k)
	}

	a, err := codec.FromMap(map[string]any{
		"kind":       KindShowHandles,
		"elementIds": []any{"n1"},
		"priority":   5,
	})
	require.NoError(t, err)
	show, ok := a.(ShowHandles)
	require.True(t, ok)
	assert.Equal(t, []string{"n1"}, show.ElementIDs)
	eff, _ := EffectFor(show)
	assert.Equal(t, 5, eff.Priority)

	a, err = codec.FromMap(map[string]any{"kind": KindApplyCSSClass, "class": "selected", "elementIds": []any{"n1"}})
	require.NoError(t, err)
	eff, _ = EffectFor(a)
	assert.Equal(t, PriorityPresentation, eff.Priority)
}

func TestParseHandleID(t *testing.T) {
	owner, pos, ok := ParseHandleID(HandleID("n1", "se"))
	require.True(t, ok)
	assert.Equal(t, "n1", owner)
	assert.Equal(t, "se", pos)

	for _, id := range []string{"n1", "__handle_se", "n1__handle_"} {
		_, _, ok := ParseHandleID(id)
		assert.False(t, ok, id)
	}
}
