package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/dispatch"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
	"github.com/aretw0/lattice/pkg/selection"
	"github.com/aretw0/lattice/pkg/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func diagram() *domain.Element {
	n1 := domain.NewElement("n1", "node")
	n1.Attributes = map[string]any{"x": 0.0, "y": 0.0, "width": 40.0, "height": 20.0}
	return domain.NewElement("g", "graph", n1, domain.NewElement("n2", "node"))
}

// connect runs s against one end of an in-memory pair and returns the other end.
func connect(t *testing.T, s *Session) *memory.Transport {
	t.Helper()
	local, remote := memory.NewPair()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, local) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		_ = remote.Close()
		require.NoError(t, s.Close(context.Background()))
	})
	return remote
}

func receive(t *testing.T, remote *memory.Transport) domain.Action {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env, err := remote.Receive(ctx)
	require.NoError(t, err)
	return env.Action
}

func TestSession_LoadModelFromPeer(t *testing.T) {
	s, err := New("s1")
	require.NoError(t, err)
	remote := connect(t, s)

	loaded := make(chan *domain.Element, 1)
	go func() {
		root, err := s.LoadModel(context.Background())
		assert.NoError(t, err)
		loaded <- root
	}()

	req, ok := receive(t, remote).(domain.RequestModel)
	require.True(t, ok)
	require.NotEmpty(t, req.ID)
	require.NoError(t, remote.Send(context.Background(), domain.Envelope{
		SenderID: "server",
		Action:   domain.SetModel{ID: req.ID, Root: diagram()},
	}))

	root := <-loaded
	require.NotNil(t, root)
	assert.Equal(t, "g", root.ID)
	assert.Eventually(t, func() bool {
		return s.Engine().Published() != nil
	}, time.Second, 5*time.Millisecond, "the SetModel reply is also applied by the model handler")
}

func TestSession_LoadModelTimesOutLeniently(t *testing.T) {
	s, err := New("s1", WithDispatchOptions(dispatch.WithTimeout(50*time.Millisecond)))
	require.NoError(t, err)
	_ = connect(t, s)

	root, err := s.LoadModel(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, root)
	assert.Zero(t, s.Dispatcher().PendingCount())
}

func TestSession_SelectionSurvivesModelUpdates(t *testing.T) {
	s, err := New("s1")
	require.NoError(t, err)
	remote := connect(t, s)
	ctx := context.Background()

	require.NoError(t, remote.Send(ctx, domain.Envelope{Action: domain.UpdateModel{Root: diagram(), Revision: 1}}))
	require.Eventually(t, func() bool { return s.Engine().Revision() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Selection().Select("n1"))
	require.Eventually(t, func() bool {
		return s.Engine().Published().Find("n1").HasClass(selection.SelectedClass)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, remote.Send(ctx, domain.Envelope{Action: domain.UpdateModel{Root: diagram(), Revision: 2}}))
	require.Eventually(t, func() bool { return s.Engine().Revision() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Engine().Published().Find("n1").HasClass(selection.SelectedClass))
	assert.False(t, s.Engine().Authoritative().Find("n1").HasClass(selection.SelectedClass))

	// n1 disappears: the selection is pruned and its overlay goes with it.
	require.NoError(t, remote.Send(ctx, domain.Envelope{Action: domain.UpdateModel{
		Root:     domain.NewElement("g", "graph", domain.NewElement("n2", "node")),
		Revision: 3,
	}}))
	require.Eventually(t, func() bool { return len(s.Selection().Selected()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestSession_ResizeForwardsChangeBounds(t *testing.T) {
	s, err := New("s1")
	require.NoError(t, err)
	remote := connect(t, s)
	ctx := context.Background()

	require.NoError(t, s.Engine().Replace(ctx, diagram(), 0))
	r := s.Resize()
	require.NoError(t, r.Handle(ctx, tool.MouseDown{ElementID: "n1"}))
	require.Eventually(t, func() bool {
		return s.Engine().Published().Find(feedback.HandleID("n1", "se")) != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Handle(ctx, tool.MouseDown{ElementID: feedback.HandleID("n1", "se"), At: tool.Point{X: 40, Y: 20}}))
	require.NoError(t, r.Handle(ctx, tool.MouseUp{At: tool.Point{X: 50, Y: 30}}))

	change, ok := receive(t, remote).(tool.ChangeBounds)
	require.True(t, ok)
	assert.Equal(t, tool.Bounds{Width: 50, Height: 30}, change.Bounds)

	// Deselecting removes the handles at once through the undo actions.
	require.NoError(t, r.Handle(ctx, tool.Escape{}))
	require.Eventually(t, func() bool {
		return s.Engine().Published().Find(feedback.HandleID("n1", "se")) == nil
	}, time.Second, 5*time.Millisecond)
}

// replayed reports whether the published model is exactly the authoritative
// model decorated with the feedback registered right now.
func replayed(ctx context.Context, s *Session) bool {
	want := s.Coordinator().Decorate(ctx, s.Engine().Authoritative())
	return cmp.Diff(want, s.Engine().Published(), cmpopts.EquateEmpty()) == ""
}

func TestSession_ReselectAfterEscapeKeepsOverlay(t *testing.T) {
	s, err := New("s1")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close(context.Background())) })
	ctx := context.Background()

	require.NoError(t, s.Engine().Replace(ctx, diagram(), 0))
	r := s.Resize()
	handle := feedback.HandleID("n1", "se")

	for i := 0; i < 25; i++ {
		require.NoError(t, r.Handle(ctx, tool.MouseDown{ElementID: "n1"}))
		require.NoError(t, r.Handle(ctx, tool.Escape{}))
		require.NoError(t, r.Handle(ctx, tool.MouseDown{ElementID: "n1"}))

		require.Eventually(t, func() bool {
			return s.Engine().Published().Find(handle) != nil && replayed(ctx, s)
		}, time.Second, time.Millisecond)
		// The undo of the Escape may still be in flight; it must not land.
		assert.Never(t, func() bool {
			return s.Engine().Published().Find(handle) == nil
		}, 20*time.Millisecond, time.Millisecond)
	}

	require.NoError(t, r.Handle(ctx, tool.Escape{}))
	require.Eventually(t, func() bool {
		return s.Engine().Published().Find(handle) == nil && replayed(ctx, s)
	}, time.Second, time.Millisecond)
}

func TestSession_DeregisterThenRegisterMatchesReplay(t *testing.T) {
	s, err := New("s1")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close(context.Background())) })
	ctx := context.Background()
	require.NoError(t, s.Engine().Replace(ctx, diagram(), 0))

	owner := &struct{ name string }{"marker"}
	fb := s.Feedback()
	require.NoError(t, fb.Register(owner, feedback.NewApplyCSSClass("marked", "n2")))
	require.NoError(t, fb.Deregister(ctx, owner, feedback.NewRemoveCSSClass("marked", "n2")))
	require.NoError(t, fb.Register(owner, feedback.NewApplyCSSClass("marked", "n2")))

	require.Eventually(t, func() bool {
		return s.Engine().Published().Find("n2").HasClass("marked") && replayed(ctx, s)
	}, time.Second, time.Millisecond)
	assert.Never(t, func() bool {
		return !s.Engine().Published().Find("n2").HasClass("marked")
	}, 50*time.Millisecond, time.Millisecond)
}

func TestSession_PeerDisconnectEndsRun(t *testing.T) {
	s, err := New("s1")
	require.NoError(t, err)
	defer s.Close(context.Background())

	local, remote := memory.NewPair()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), local) }()

	require.NoError(t, remote.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the peer closed")
	}
	assert.ErrorIs(t, s.Dispatcher().SendMessage(context.Background(), domain.RequestModel{}), domain.ErrNotConnected)
}
