package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classDecorator struct{ class string }

func (d classDecorator) Decorate(ctx context.Context, next *domain.Element) *domain.Element {
	next.AddClass(d.class)
	return next
}

func TestEngine_ReplaceDecoratesAndNotifies(t *testing.T) {
	var published []domain.ModelPublished
	var roots []*domain.Element
	e := memory.NewEngine(
		memory.WithDecorator(classDecorator{"decorated"}),
		memory.WithPublishHook(func(ctx context.Context, p domain.ModelPublished) { published = append(published, p) }),
		memory.WithRootListener(ports.RootListenerFunc(func(ctx context.Context, root *domain.Element) {
			roots = append(roots, root)
		})),
	)

	in := domain.NewElement("g", "graph")
	require.NoError(t, e.Replace(context.Background(), in, 3))

	assert.False(t, e.Authoritative().HasClass("decorated"), "authoritative model stays undecorated")
	assert.True(t, e.Published().HasClass("decorated"))
	assert.False(t, in.HasClass("decorated"), "caller's tree is not modified")
	assert.Equal(t, int64(3), e.Revision())

	require.Len(t, published, 1)
	assert.Equal(t, int64(3), published[0].Revision)
	require.Len(t, roots, 1)
	assert.True(t, roots[0].HasClass("decorated"))
}

func TestEngine_IgnoresStaleRevisions(t *testing.T) {
	e := memory.NewEngine()
	ctx := context.Background()

	require.NoError(t, e.Replace(ctx, domain.NewElement("v5", "graph"), 5))
	require.NoError(t, e.Replace(ctx, domain.NewElement("v4", "graph"), 4))
	assert.Equal(t, "v5", e.Authoritative().ID)

	require.NoError(t, e.Replace(ctx, domain.NewElement("unversioned", "graph"), 0))
	assert.Equal(t, "unversioned", e.Authoritative().ID)
	assert.Equal(t, int64(5), e.Revision())
}

func TestEngine_RejectsNilRoot(t *testing.T) {
	e := memory.NewEngine()
	assert.ErrorIs(t, e.Replace(context.Background(), nil, 0), domain.ErrInvalidPayload)
}

func TestEngine_Overlay(t *testing.T) {
	var publishes int
	e := memory.NewEngine(memory.WithPublishHook(func(ctx context.Context, p domain.ModelPublished) { publishes++ }))
	ctx := context.Background()

	// No model yet.
	require.NoError(t, e.Overlay(ctx, func(root *domain.Element) error { return nil }))
	assert.Equal(t, 0, publishes)

	require.NoError(t, e.Replace(ctx, domain.NewElement("g", "graph"), 0))
	require.NoError(t, e.Overlay(ctx, func(root *domain.Element) error {
		root.SetOverlay("cursor", "move")
		return nil
	}))
	assert.Equal(t, "move", e.Published().Overlay["cursor"])
	assert.Nil(t, e.Authoritative().Overlay)
	assert.Equal(t, 2, publishes)

	boom := errors.New("boom")
	err := e.Overlay(ctx, func(root *domain.Element) error {
		root.SetOverlay("cursor", "wait")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "move", e.Published().Overlay["cursor"], "failed overlays are not published")
}
