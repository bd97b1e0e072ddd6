package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, g *Graph, kind NodeKind, name string) *Node {
	t.Helper()
	n, err := g.AddNode(kind, name, Point{})
	require.NoError(t, err)
	return n
}

func TestNew(t *testing.T) {
	t.Parallel()

	g := New(nil)

	assert.NotNil(t, g.Types())
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.ConnectionCount())
}

func TestGraph_AddNode(t *testing.T) {
	t.Parallel()

	t.Run("DefaultName", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		n := mustAdd(t, g, KindControl, "")
		assert.Equal(t, "Control", n.Name)
		assert.NotEmpty(t, n.ID)
	})

	t.Run("UniqueSuffixes", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		a := mustAdd(t, g, KindFKChain, "spine")
		b := mustAdd(t, g, KindFKChain, "spine")
		c := mustAdd(t, g, KindFKChain, "spine")

		assert.Equal(t, "spine", a.Name)
		assert.Equal(t, "spine1", b.Name)
		assert.Equal(t, "spine2", c.Name)
		assert.Equal(t, b, g.NodeByName("spine1"))
	})

	t.Run("UnknownKind", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		_, err := g.AddNode("Wing", "w", Point{})
		assert.ErrorIs(t, err, ErrUnknownKind)
		assert.Equal(t, 0, g.NodeCount())
	})

	t.Run("CreationOrder", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		a := mustAdd(t, g, KindFoot, "a")
		b := mustAdd(t, g, KindFoot, "b")
		assert.Equal(t, []*Node{a, b}, g.Nodes())
	})
}

func TestGraph_RenameNode(t *testing.T) {
	t.Parallel()

	t.Run("TakenNameGetsSuffix", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		mustAdd(t, g, KindControl, "hand")
		other := mustAdd(t, g, KindTwoBoneIK, "arm")
		before := other.Inputs

		final, err := g.RenameNode(other.ID, "hand")
		require.NoError(t, err)

		assert.Equal(t, "hand1", final)
		assert.Equal(t, other, g.NodeByName("hand1"))
		assert.Nil(t, g.NodeByName("arm"))
		assert.Equal(t, before, other.Inputs)
		assert.Len(t, other.Inputs, 4)
	})

	t.Run("Deterministic", func(t *testing.T) {
		t.Parallel()
		g1 := New(nil)
		g2 := New(nil)
		for _, g := range []*Graph{g1, g2} {
			mustAdd(t, g, KindControl, "x")
			mustAdd(t, g, KindControl, "x1")
		}
		n1 := mustAdd(t, g1, KindControl, "y")
		n2 := mustAdd(t, g2, KindControl, "y")

		f1, err := g1.RenameNode(n1.ID, "x")
		require.NoError(t, err)
		f2, err := g2.RenameNode(n2.ID, "x")
		require.NoError(t, err)

		assert.Equal(t, "x2", f1)
		assert.Equal(t, f1, f2)
	})

	t.Run("OwnNameIsNoop", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		n := mustAdd(t, g, KindControl, "hand")
		final, err := g.RenameNode(n.ID, "hand")
		require.NoError(t, err)
		assert.Equal(t, "hand", final)
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		n := mustAdd(t, g, KindControl, "hand")
		_, err := g.RenameNode(n.ID, "")
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		_, err := g.RenameNode("nope", "x")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestGraph_Connect(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*Graph, *Node, *Node) {
		t.Helper()
		g := New(nil)
		return g, mustAdd(t, g, KindControl, "a"), mustAdd(t, g, KindSquashAndStretch, "b")
	}

	t.Run("ValidPairIsSymmetric", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		out := a.Ref(DirectionOutput, "control_out")
		in := b.Ref(DirectionInput, "temp_in")

		c, err := g.Connect(out, in)
		require.NoError(t, err)

		assert.Equal(t, out, c.Source)
		assert.Equal(t, in, c.Target)

		outPeers, err := g.Peers(out)
		require.NoError(t, err)
		inPeers, err := g.Peers(in)
		require.NoError(t, err)
		assert.Equal(t, []SocketRef{in}, outPeers)
		assert.Equal(t, []SocketRef{out}, inPeers)
	})

	t.Run("ReversedOrderIsNormalised", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		out := a.Ref(DirectionOutput, "control_out")
		in := b.Ref(DirectionInput, "temp_in")

		c, err := g.Connect(in, out)
		require.NoError(t, err)
		assert.Equal(t, out, c.Source)
		assert.Equal(t, in, c.Target)
	})

	t.Run("TwoInputs", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		_, err := g.Connect(a.Ref(DirectionInput, "scale_in"), b.Ref(DirectionInput, "temp_in"))
		assert.ErrorIs(t, err, ErrSameDirection)
		assert.Equal(t, 0, g.ConnectionCount())
	})

	t.Run("TwoOutputs", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		_, err := g.Connect(a.Ref(DirectionOutput, "control_out"), b.Ref(DirectionOutput, "squash_and_stretch_out"))
		assert.ErrorIs(t, err, ErrSameDirection)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "connect", verr.Op)
	})

	t.Run("SelfLoop", func(t *testing.T) {
		t.Parallel()
		g, a, _ := setup(t)
		ref := a.Ref(DirectionInput, "scale_in")
		_, err := g.Connect(ref, ref)
		assert.ErrorIs(t, err, ErrSelfLoop)
	})

	t.Run("IncompatibleTypes", func(t *testing.T) {
		t.Parallel()
		g := New(NewTypeRegistry(DefaultHierarchy()))
		spine := mustAdd(t, g, KindSplineSpineIK, "spine")
		fk := mustAdd(t, g, KindFKChain, "fk")

		// Retype an input so that vector -> int is attempted.
		fk.Socket(DirectionInput, "FKChain_in").Type = TypeInt

		_, err := g.Connect(spine.Ref(DirectionOutput, "pelvis_out"), fk.Ref(DirectionInput, "FKChain_in"))
		assert.ErrorIs(t, err, ErrIncompatibleTypes)
		assert.Equal(t, 0, g.ConnectionCount())
	})

	t.Run("Duplicate", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		out := a.Ref(DirectionOutput, "control_out")
		in := b.Ref(DirectionInput, "temp_in")
		_, err := g.Connect(out, in)
		require.NoError(t, err)

		_, err = g.Connect(in, out)
		assert.ErrorIs(t, err, ErrAlreadyConnected)
		assert.Equal(t, 1, g.ConnectionCount())
	})

	t.Run("MultiConnect", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		c := mustAdd(t, g, KindSquashAndStretch, "c")
		out := a.Ref(DirectionOutput, "control_out")

		_, err := g.Connect(out, b.Ref(DirectionInput, "temp_in"))
		require.NoError(t, err)
		_, err = g.Connect(out, c.Ref(DirectionInput, "temp_in"))
		require.NoError(t, err)

		peers, err := g.Peers(out)
		require.NoError(t, err)
		assert.Len(t, peers, 2)
	})

	t.Run("MissingSocket", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		_, err := g.Connect(a.Ref(DirectionOutput, "nope"), b.Ref(DirectionInput, "temp_in"))
		assert.ErrorIs(t, err, ErrSocketNotFound)

		var lerr *LookupError
		assert.ErrorAs(t, err, &lerr)
	})

	t.Run("CanConnect", func(t *testing.T) {
		t.Parallel()
		g, a, b := setup(t)
		assert.NoError(t, g.CanConnect(a.Ref(DirectionOutput, "control_out"), b.Ref(DirectionInput, "temp_in")))
		assert.Error(t, g.CanConnect(a.Ref(DirectionOutput, "control_out"), b.Ref(DirectionOutput, "squash_and_stretch_out")))
		assert.Equal(t, 0, g.ConnectionCount())
	})
}

func TestGraph_Disconnect(t *testing.T) {
	t.Parallel()

	g := New(nil)
	a := mustAdd(t, g, KindControl, "a")
	b := mustAdd(t, g, KindSquashAndStretch, "b")
	out := a.Ref(DirectionOutput, "control_out")
	in := b.Ref(DirectionInput, "temp_in")

	c, err := g.Connect(out, in)
	require.NoError(t, err)
	assert.Equal(t, c, g.FindConnection(in, out))

	removed, err := g.Disconnect(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, removed)

	outPeers, _ := g.Peers(out)
	inPeers, _ := g.Peers(in)
	assert.Empty(t, outPeers)
	assert.Empty(t, inPeers)
	assert.Nil(t, g.FindConnection(out, in))

	_, err = g.Disconnect(c.ID)
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestGraph_RemoveNode(t *testing.T) {
	t.Parallel()

	t.Run("CascadesConnections", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		a := mustAdd(t, g, KindControl, "a")
		b := mustAdd(t, g, KindSquashAndStretch, "b")
		c := mustAdd(t, g, KindControl, "c")

		_, err := g.Connect(a.Ref(DirectionOutput, "control_out"), b.Ref(DirectionInput, "temp_in"))
		require.NoError(t, err)
		_, err = g.Connect(b.Ref(DirectionOutput, "squash_and_stretch_out"), c.Ref(DirectionInput, "scale_in"))
		require.NoError(t, err)

		removed, err := g.RemoveNode(b.ID)
		require.NoError(t, err)

		assert.Len(t, removed, 2)
		assert.Equal(t, 0, g.ConnectionCount())
		assert.Nil(t, g.Node(b.ID))
		assert.Nil(t, g.NodeByName("b"))
		assert.False(t, a.Socket(DirectionOutput, "control_out").Connected())
		assert.False(t, c.Socket(DirectionInput, "scale_in").Connected())
		assert.Equal(t, []*Node{a, c}, g.Nodes())
	})

	t.Run("NameIsFreed", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		a := mustAdd(t, g, KindControl, "a")
		_, err := g.RemoveNode(a.ID)
		require.NoError(t, err)

		again := mustAdd(t, g, KindControl, "a")
		assert.Equal(t, "a", again.Name)
	})

	t.Run("SelfWiredNode", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		a := mustAdd(t, g, KindControl, "a")
		_, err := g.Connect(a.Ref(DirectionOutput, "control_out"), a.Ref(DirectionInput, "scale_in"))
		require.NoError(t, err)

		removed, err := g.RemoveNode(a.ID)
		require.NoError(t, err)
		assert.Len(t, removed, 1)
		assert.Equal(t, 0, g.ConnectionCount())
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		g := New(nil)
		_, err := g.RemoveNode("ghost")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestGraph_SetParam(t *testing.T) {
	t.Parallel()

	g := New(nil)
	n := mustAdd(t, g, KindSplineSpineIK, "spine")

	require.NoError(t, g.SetParam(n.ID, "numJoints", "12"))
	assert.Equal(t, 12, n.Params.Int("numJoints"))

	err := g.SetParam(n.ID, "numControlJoints", 9)
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.Equal(t, 3, n.Params.Int("numControlJoints"))

	err = g.SetParam(n.ID, "colour", "red")
	assert.ErrorIs(t, err, ErrUnknownParam)

	require.NoError(t, g.SetParam(n.ID, "notes", "lower back"))
	assert.Equal(t, "lower back", n.Params.String("notes"))
}

func TestGraph_RestoreNode(t *testing.T) {
	t.Parallel()

	g := New(nil)
	n, rejected, err := g.RestoreNode("fixed-id", KindFKChain, "tail", Point{X: 5, Y: 6}, map[string]any{
		"numJoints":    4.0,
		"controlShape": "hexagon",
		"bogus":        1,
	})
	require.NoError(t, err)

	assert.Equal(t, NodeID("fixed-id"), n.ID)
	assert.Equal(t, Point{X: 5, Y: 6}, n.Position)
	assert.Equal(t, 4, n.Params.Int("numJoints"))
	assert.Equal(t, "circle", n.Params.String("controlShape"))
	assert.Len(t, rejected, 2)

	_, _, err = g.RestoreNode("fixed-id", KindFKChain, "tail", Point{}, nil)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGraph_Attachments(t *testing.T) {
	t.Parallel()

	g := New(nil)
	a := mustAdd(t, g, KindControl, "a")
	b := mustAdd(t, g, KindSquashAndStretch, "b")
	c, err := g.Connect(a.Ref(DirectionOutput, "control_out"), b.Ref(DirectionInput, "temp_in"))
	require.NoError(t, err)

	require.NoError(t, g.SetAttachment(c.Source, "ctrl_GRP"))
	assert.Equal(t, "ctrl_GRP", a.Socket(DirectionOutput, "control_out").Attachment)

	require.NoError(t, g.SetConnectionAttachments(c.ID, "ctrl_GRP", "temp_LOC"))
	assert.Equal(t, "temp_LOC", g.Connection(c.ID).TargetAttachment)

	assert.ErrorIs(t, g.SetConnectionAttachments("missing", "", ""), ErrConnectionNotFound)
	assert.ErrorIs(t, g.SetAttachment(SocketRef{Node: a.ID, Direction: DirectionInput, Name: "x"}, "h"), ErrSocketNotFound)
}

func TestGraph_ConnectionsOf(t *testing.T) {
	t.Parallel()

	g := New(nil)
	a := mustAdd(t, g, KindControl, "a")
	b := mustAdd(t, g, KindControl, "b")
	c := mustAdd(t, g, KindControl, "c")

	c1, err := g.Connect(a.Ref(DirectionOutput, "control_out"), b.Ref(DirectionInput, "scale_in"))
	require.NoError(t, err)
	c2, err := g.Connect(c.Ref(DirectionOutput, "control_out"), b.Ref(DirectionInput, "controlFK_in"))
	require.NoError(t, err)
	c3, err := g.Connect(b.Ref(DirectionOutput, "control_out"), c.Ref(DirectionInput, "scale_in"))
	require.NoError(t, err)

	assert.Equal(t, []*Connection{c1, c2, c3}, g.ConnectionsOf(b.ID))
	assert.Equal(t, []*Connection{c2, c3}, g.ConnectionsOf(c.ID))
	assert.Equal(t, []*Connection{c1, c2, c3}, g.Connections())
}
