package canvas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/rigweave/internal/graph"
)

type fakeActions struct {
	g          *graph.Graph
	persisted  [][]graph.NodeID
	persistErr error
	deleted    []graph.NodeID
	severed    []string
}

func (f *fakeActions) Graph() *graph.Graph { return f.g }

func (f *fakeActions) Connect(a, b graph.SocketRef) (*graph.Connection, error) {
	return f.g.Connect(a, b)
}

func (f *fakeActions) Disconnect(id string) error {
	_, err := f.g.Disconnect(id)
	if err == nil {
		f.severed = append(f.severed, id)
	}
	return err
}

func (f *fakeActions) PersistNodes(ids []graph.NodeID) error {
	f.persisted = append(f.persisted, ids)
	return f.persistErr
}

func (f *fakeActions) Delete(nodes []graph.NodeID, conns []string) error {
	for _, id := range conns {
		if err := f.Disconnect(id); err != nil {
			return err
		}
	}
	for _, id := range nodes {
		if _, err := f.g.RemoveNode(id); err != nil {
			return err
		}
		f.deleted = append(f.deleted, id)
	}
	return nil
}

// setupRig places a Control at the origin and a TwoBoneIK to its right.
//
//	ctrl.control_out  (250,150)
//	arm.shoulderIK_in (400,120)
func setupRig(t *testing.T) (*fakeActions, *graph.Node, *graph.Node) {
	t.Helper()
	g := graph.New(nil)
	ctrl, err := g.AddNode(graph.KindControl, "ctrl", Point{X: 0, Y: 0})
	require.NoError(t, err)
	arm, err := g.AddNode(graph.KindTwoBoneIK, "arm", Point{X: 400, Y: 0})
	require.NoError(t, err)
	return &fakeActions{g: g}, ctrl, arm
}

func press(x, y float64) PointerEvent {
	return PointerEvent{Action: ActionPress, Button: ButtonPrimary, Pos: Point{X: x, Y: y}}
}

func release(x, y float64) PointerEvent {
	return PointerEvent{Action: ActionRelease, Button: ButtonPrimary, Pos: Point{X: x, Y: y}}
}

func move(x, y float64) PointerEvent {
	return PointerEvent{Action: ActionMove, Pos: Point{X: x, Y: y}}
}

func connect(t *testing.T, c *Canvas) {
	t.Helper()
	c.HandlePointer(press(250, 150))
	c.HandlePointer(press(401, 121))
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, 1, c.actions.Graph().ConnectionCount())
}

func TestStyle_SocketCenter(t *testing.T) {
	t.Parallel()

	_, ctrl, arm := setupRig(t)
	s := DefaultStyle()

	p, ok := s.SocketCenter(arm, graph.DirectionInput, "scale_in")
	require.True(t, ok)
	assert.Equal(t, Point{X: 400, Y: 60}, p)

	p, ok = s.SocketCenter(arm, graph.DirectionOutput, "wrist_out")
	require.True(t, ok)
	assert.Equal(t, Point{X: 650, Y: 150}, p)

	p, ok = s.SocketCenter(ctrl, graph.DirectionInput, "controlFK_in")
	require.True(t, ok)
	assert.Equal(t, Point{X: 0, Y: 200}, p)

	_, ok = s.SocketCenter(ctrl, graph.DirectionOutput, "missing")
	assert.False(t, ok)
}

func TestCanvas_DrawConnection(t *testing.T) {
	t.Parallel()

	t.Run("Connects", func(t *testing.T) {
		t.Parallel()
		a, _, _ := setupRig(t)
		c := New(a)

		c.HandlePointer(press(250, 150))
		require.Equal(t, StateDrawingConnection, c.State())

		c.HandlePointer(move(300, 130))
		line, ok := c.TempLine()
		require.True(t, ok)
		assert.Equal(t, seg(250, 150, 300, 130), line)

		c.HandlePointer(press(401, 121))
		assert.Equal(t, StateIdle, c.State())
		assert.Equal(t, 1, a.g.ConnectionCount())
		assert.Equal(t, "connected ctrl.control_out to arm.shoulderIK_in", c.Status())

		_, ok = c.TempLine()
		assert.False(t, ok)
	})

	t.Run("PressOffSocketCancels", func(t *testing.T) {
		t.Parallel()
		a, _, _ := setupRig(t)
		c := New(a)

		c.HandlePointer(press(250, 150))
		c.HandlePointer(press(1000, 1000))
		assert.Equal(t, StateIdle, c.State())
		assert.Zero(t, a.g.ConnectionCount())
		assert.Empty(t, c.Status())
	})

	t.Run("RejectedLeavesGraphUnchanged", func(t *testing.T) {
		t.Parallel()
		a, _, _ := setupRig(t)
		c := New(a)
		connect(t, c)

		c.HandlePointer(press(401, 121))
		c.HandlePointer(press(250, 150))
		assert.Equal(t, StateIdle, c.State())
		assert.Equal(t, 1, a.g.ConnectionCount())
		assert.Equal(t, "sockets are already connected", c.Status())

		// both inputs
		c.HandlePointer(press(0, 100))
		c.HandlePointer(press(400, 60))
		assert.Equal(t, "cannot connect: both sockets face the same way", c.Status())
	})
}

func TestCanvas_CutLine(t *testing.T) {
	t.Parallel()

	a, _, _ := setupRig(t)
	c := New(a)
	connect(t, c)
	id := a.g.Connections()[0].ID

	ctrl := Modifiers{Ctrl: true}
	c.HandlePointer(PointerEvent{Action: ActionPress, Button: ButtonPrimary, Pos: Point{X: 325, Y: 0}, Mods: ctrl})
	require.Equal(t, StateDrawingCutLine, c.State())

	c.HandlePointer(move(325, 200))
	line, ok := c.TempLine()
	require.True(t, ok)
	assert.Equal(t, seg(325, 0, 325, 200), line)

	c.HandlePointer(release(325, 300))
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, a.g.ConnectionCount())
	assert.Equal(t, []string{id}, a.severed)
	assert.Equal(t, "cut 1 connection(s)", c.Status())

	t.Run("MissLeavesConnections", func(t *testing.T) {
		a, _, _ := setupRig(t)
		c := New(a)
		connect(t, c)

		c.HandlePointer(PointerEvent{Action: ActionPress, Button: ButtonPrimary, Pos: Point{X: 300, Y: 400}, Mods: ctrl})
		c.HandlePointer(release(380, 400))
		assert.Equal(t, 1, a.g.ConnectionCount())
	})
}

func TestCanvas_RubberBand(t *testing.T) {
	t.Parallel()

	a, ctrl, arm := setupRig(t)
	c := New(a)

	c.HandlePointer(press(300, 400))
	require.Equal(t, StateRubberBandSelecting, c.State())
	c.HandlePointer(move(250, 300))
	band, ok := c.RubberBand()
	require.True(t, ok)
	assert.Equal(t, RectFromPoints(Point{X: 300, Y: 400}, Point{X: 250, Y: 300}), band)

	c.HandlePointer(release(200, 250))
	assert.Equal(t, StateIdle, c.State())
	nodes, _ := c.Selection()
	assert.Equal(t, []graph.NodeID{ctrl.ID}, nodes)

	t.Run("ShiftIsAdditive", func(t *testing.T) {
		c.HandlePointer(press(700, 400))
		c.HandlePointer(PointerEvent{Action: ActionRelease, Button: ButtonPrimary, Pos: Point{X: 600, Y: 250}, Mods: Modifiers{Shift: true}})
		nodes, _ := c.Selection()
		assert.Equal(t, []graph.NodeID{ctrl.ID, arm.ID}, nodes)
	})

	t.Run("WithoutShiftReplaces", func(t *testing.T) {
		c.HandlePointer(press(700, 400))
		c.HandlePointer(release(600, 250))
		nodes, _ := c.Selection()
		assert.Equal(t, []graph.NodeID{arm.ID}, nodes)
	})

	t.Run("EmptyBandClears", func(t *testing.T) {
		c.HandlePointer(press(2000, 2000))
		c.HandlePointer(release(2100, 2100))
		nodes, conns := c.Selection()
		assert.Empty(t, nodes)
		assert.Empty(t, conns)
	})
}

func TestCanvas_DragNodes(t *testing.T) {
	t.Parallel()

	t.Run("MovesAndPersistsOnRelease", func(t *testing.T) {
		t.Parallel()
		a, ctrl, _ := setupRig(t)
		c := New(a)
		connect(t, c)

		c.HandlePointer(press(100, 50))
		require.Equal(t, StateDraggingNodes, c.State())
		assert.True(t, c.IsSelected(ctrl.ID))

		c.HandlePointer(move(150, 80))
		assert.Empty(t, a.persisted)
		assert.Equal(t, Point{X: 50, Y: 30}, a.g.Node(ctrl.ID).Position)

		c.HandlePointer(release(160, 90))
		assert.Equal(t, StateIdle, c.State())
		assert.Equal(t, Point{X: 60, Y: 40}, a.g.Node(ctrl.ID).Position)
		assert.Equal(t, [][]graph.NodeID{{ctrl.ID}}, a.persisted)

		lines := c.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, Point{X: 310, Y: 190}, lines[0].Segment.A)
	})

	t.Run("GroupDragKeepsSelection", func(t *testing.T) {
		t.Parallel()
		a, ctrl, arm := setupRig(t)
		c := New(a)
		c.SelectNode(ctrl.ID, false)
		c.SelectNode(arm.ID, true)

		c.HandlePointer(press(500, 50))
		c.HandlePointer(release(500, 100))
		assert.Equal(t, Point{X: 0, Y: 50}, a.g.Node(ctrl.ID).Position)
		assert.Equal(t, Point{X: 400, Y: 50}, a.g.Node(arm.ID).Position)
		assert.Equal(t, [][]graph.NodeID{{ctrl.ID, arm.ID}}, a.persisted)
	})

	t.Run("ClickWithoutMoveDoesNotPersist", func(t *testing.T) {
		t.Parallel()
		a, _, _ := setupRig(t)
		c := New(a)
		c.HandlePointer(press(100, 50))
		c.HandlePointer(release(100, 50))
		assert.Empty(t, a.persisted)
	})

	t.Run("PersistFailureIsReported", func(t *testing.T) {
		t.Parallel()
		a, _, _ := setupRig(t)
		a.persistErr = errors.New("disk full")
		c := New(a)
		c.HandlePointer(press(100, 50))
		c.HandlePointer(release(120, 50))
		assert.Equal(t, "move not saved: disk full", c.Status())
	})

	t.Run("ScaledByZoom", func(t *testing.T) {
		t.Parallel()
		a, ctrl, _ := setupRig(t)
		c := New(a)
		c.view.Zoom = 2

		c.HandlePointer(press(100, 50))
		c.HandlePointer(release(140, 50))
		assert.Equal(t, Point{X: 20, Y: 0}, a.g.Node(ctrl.ID).Position)
	})
}

func TestCanvas_SelectConnection(t *testing.T) {
	t.Parallel()

	a, ctrl, _ := setupRig(t)
	c := New(a)
	connect(t, c)
	id := a.g.Connections()[0].ID

	c.SelectNode(ctrl.ID, false)
	c.HandlePointer(press(325, 135))
	assert.Equal(t, StateIdle, c.State())
	nodes, conns := c.Selection()
	assert.Empty(t, nodes)
	assert.Equal(t, []string{id}, conns)
	assert.True(t, c.Lines()[0].Selected)
}

func TestCanvas_PanAndZoom(t *testing.T) {
	t.Parallel()

	a, _, _ := setupRig(t)
	c := New(a)

	c.HandlePointer(PointerEvent{Action: ActionPress, Button: ButtonMiddle, Pos: Point{}})
	require.Equal(t, StatePanning, c.State())
	c.HandlePointer(move(30, 10))
	c.HandlePointer(move(50, 20))
	c.HandlePointer(PointerEvent{Action: ActionRelease, Button: ButtonMiddle, Pos: Point{X: 50, Y: 20}})
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, Point{X: -50, Y: -20}, c.Viewport().Offset)

	before := c.Viewport().ToWorld(Point{X: 100, Y: 100})
	c.HandlePointer(PointerEvent{Action: ActionWheel, Button: ButtonWheelUp, Pos: Point{X: 100, Y: 100}})
	assert.InDelta(t, 1.1, c.Viewport().Zoom, 1e-9)
	after := c.Viewport().ToWorld(Point{X: 100, Y: 100})
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestCanvas_DeleteSelection(t *testing.T) {
	t.Parallel()

	a, ctrl, arm := setupRig(t)
	c := New(a)
	connect(t, c)

	require.NoError(t, c.DeleteSelection())
	assert.Empty(t, a.deleted)

	c.SelectNode(ctrl.ID, false)
	require.NoError(t, c.DeleteSelection())
	assert.Equal(t, []graph.NodeID{ctrl.ID}, a.deleted)
	assert.Nil(t, a.g.Node(ctrl.ID))
	assert.Zero(t, a.g.ConnectionCount())
	assert.NotNil(t, a.g.Node(arm.ID))

	nodes, conns := c.Selection()
	assert.Empty(t, nodes)
	assert.Empty(t, conns)
	assert.Equal(t, "deleted 1 node(s), 0 connection(s)", c.Status())
}

func TestCanvas_Cancel(t *testing.T) {
	t.Parallel()

	a, _, _ := setupRig(t)
	c := New(a)

	c.HandlePointer(press(100, 50))
	c.HandlePointer(move(110, 50))
	c.Cancel()
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, a.persisted, 1)

	c.HandlePointer(press(250, 150))
	c.Cancel()
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, a.g.ConnectionCount())
}
