package document

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/rigweave/internal/graph"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()

	g := graph.New(nil)
	ctrl, err := g.AddNode(graph.KindControl, "hand_ctrl", graph.Point{X: 10, Y: 20})
	require.NoError(t, err)
	arm, err := g.AddNode(graph.KindTwoBoneIK, "arm", graph.Point{X: 300, Y: 40})
	require.NoError(t, err)
	spine, err := g.AddNode(graph.KindSplineSpineIK, "spine", graph.Point{X: -50, Y: 400})
	require.NoError(t, err)

	require.NoError(t, g.SetParam(ctrl.ID, "controlShape", "cube"))
	require.NoError(t, g.SetParam(arm.ID, "twistJoints", 2))
	require.NoError(t, g.SetParam(spine.ID, "numJoints", 12))
	require.NoError(t, g.SetParam(spine.ID, "notes", "check pelvis pivot"))
	require.NoError(t, g.SetAttachment(arm.Ref(graph.DirectionOutput, "wrist_out"), "wrist_JNT"))

	c, err := g.Connect(arm.Ref(graph.DirectionOutput, "wrist_out"), ctrl.Ref(graph.DirectionInput, "controlFK_in"))
	require.NoError(t, err)
	require.NoError(t, g.SetConnectionAttachments(c.ID, "wrist_JNT", "ctrl_GRP"))
	_, err = g.Connect(spine.Ref(graph.DirectionOutput, "spineTop_out"), arm.Ref(graph.DirectionInput, "scale_in"))
	require.NoError(t, err)
	return g
}

func TestRebuild_RoundTrip(t *testing.T) {
	t.Parallel()

	g := sampleGraph(t)
	original := Snapshot(g)

	data, err := Save(original)
	require.NoError(t, err)
	loaded, err := Load(data)
	require.NoError(t, err)

	rebuilt, report := Rebuild(loaded, nil)
	assert.True(t, report.Clean(), report.Problems())

	assert.Equal(t, original, Snapshot(rebuilt))

	arm := rebuilt.NodeByName("arm")
	require.NotNil(t, arm)
	assert.Equal(t, "wrist_JNT", arm.Socket(graph.DirectionOutput, "wrist_out").Attachment)
	assert.Equal(t, []string{"scale_in", "shoulderIK_in", "poleVectorIK_in", "shoulderFK_in"},
		socketNames(arm.Inputs))
}

func socketNames(sockets []*graph.Socket) []string {
	out := make([]string, len(sockets))
	for i, s := range sockets {
		out[i] = s.Name
	}
	return out
}

func TestRebuild_UnknownKind(t *testing.T) {
	t.Parallel()

	doc := New()
	doc.Nodes = append(doc.Nodes,
		NodeRecord{ID: "w", Name: "wing", Kind: "Wing", Parameters: map[string]any{"notes": "later", "span": 3.0}},
		NodeRecord{ID: "c", Name: "ctrl", Kind: "Control"},
	)

	g, report := Rebuild(doc, nil)

	require.Equal(t, 2, g.NodeCount())
	wing := g.Node("w")
	require.NotNil(t, wing)
	assert.Equal(t, graph.KindGeneric, wing.Kind)
	assert.Empty(t, wing.Inputs)
	assert.Empty(t, wing.Outputs)
	assert.Equal(t, "later", wing.Params.String("notes"))

	require.Len(t, report.Substituted, 1)
	assert.Equal(t, "Wing", report.Substituted[0].Kind)
	assert.False(t, report.Clean())
}

func TestRebuild_MissingTargetNode(t *testing.T) {
	t.Parallel()

	doc := Snapshot(sampleGraph(t))
	doc.Connections = append(doc.Connections, ConnectionRecord{
		SourceNode:   doc.Nodes[0].ID,
		SourceSocket: "control_out",
		TargetNode:   "ghost",
		TargetSocket: "scale_in",
	})

	g, report := Rebuild(doc, nil)

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.ConnectionCount())
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, graph.ErrNodeNotFound)
	assert.Equal(t, "ghost", report.Skipped[0].Record.TargetNode)
}

func TestRebuild_ConnectionResolution(t *testing.T) {
	t.Parallel()

	base := func() *Document {
		doc := New()
		doc.Nodes = append(doc.Nodes,
			NodeRecord{ID: "a", Name: "ctrl", Kind: "Control"},
			NodeRecord{ID: "b", Name: "squash", Kind: "SquashAndStretch"},
		)
		return doc
	}

	t.Run("SwappedRoles", func(t *testing.T) {
		t.Parallel()
		doc := base()
		doc.Connections = append(doc.Connections, ConnectionRecord{
			SourceNode: "b", SourceSocket: "temp_in",
			TargetNode: "a", TargetSocket: "control_out",
			SourceAttachment: "temp_LOC", TargetAttachment: "ctrl_GRP",
		})

		g, report := Rebuild(doc, nil)
		require.Empty(t, report.Skipped)

		conns := g.Connections()
		require.Len(t, conns, 1)
		assert.Equal(t, graph.SocketRef{Node: "a", Direction: graph.DirectionOutput, Name: "control_out"}, conns[0].Source)
		assert.Equal(t, graph.SocketRef{Node: "b", Direction: graph.DirectionInput, Name: "temp_in"}, conns[0].Target)
		assert.Equal(t, "ctrl_GRP", conns[0].SourceAttachment)
		assert.Equal(t, "temp_LOC", conns[0].TargetAttachment)
	})

	t.Run("ByName", func(t *testing.T) {
		t.Parallel()
		doc := base()
		doc.Connections = append(doc.Connections, ConnectionRecord{
			SourceNode: "ctrl", SourceSocket: "control_out",
			TargetNode: "squash", TargetSocket: "temp_in",
		})

		g, report := Rebuild(doc, nil)
		assert.Empty(t, report.Skipped)
		assert.Equal(t, 1, g.ConnectionCount())
	})

	t.Run("MissingSocket", func(t *testing.T) {
		t.Parallel()
		doc := base()
		doc.Connections = append(doc.Connections, ConnectionRecord{
			SourceNode: "a", SourceSocket: "tentacle_out",
			TargetNode: "b", TargetSocket: "temp_in",
		})

		g, report := Rebuild(doc, nil)
		assert.Equal(t, 0, g.ConnectionCount())
		require.Len(t, report.Skipped, 1)
		assert.ErrorIs(t, report.Skipped[0].Err, graph.ErrSocketNotFound)
	})

	t.Run("InvalidPairIsSkipped", func(t *testing.T) {
		t.Parallel()
		doc := base()
		doc.Connections = append(doc.Connections, ConnectionRecord{
			SourceNode: "a", SourceSocket: "scale_in",
			TargetNode: "b", TargetSocket: "temp_in",
		})

		_, report := Rebuild(doc, nil)
		require.Len(t, report.Skipped, 1)
		assert.ErrorIs(t, report.Skipped[0].Err, graph.ErrSameDirection)
	})
}

func TestRebuild_Collisions(t *testing.T) {
	t.Parallel()

	doc := New()
	doc.Nodes = append(doc.Nodes,
		NodeRecord{ID: "x", Name: "leg", Kind: "foot"},
		NodeRecord{ID: "x", Name: "leg", Kind: "foot"},
	)

	g, report := Rebuild(doc, nil)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, []string{"x"}, report.Reassigned)
	assert.Equal(t, "leg1", report.Renamed["leg"])
	assert.NotNil(t, g.NodeByName("leg1"))
}

func TestRebuild_InvalidParamsReset(t *testing.T) {
	t.Parallel()

	doc := New()
	doc.Nodes = append(doc.Nodes, NodeRecord{
		ID: "f", Name: "fk", Kind: "FKChain",
		Parameters: map[string]any{"numJoints": 42.0, "controlColour": "green"},
	})

	g, report := Rebuild(doc, nil)

	n := g.Node("f")
	require.NotNil(t, n)
	assert.Equal(t, 3, n.Params.Int("numJoints"))
	assert.Equal(t, "green", n.Params.String("controlColour"))
	assert.Len(t, report.Params, 1)
}

func TestRebuild_ReplacesGraph(t *testing.T) {
	t.Parallel()

	first, _ := Rebuild(Snapshot(sampleGraph(t)), nil)

	doc := New()
	doc.Nodes = append(doc.Nodes, NodeRecord{ID: "only", Name: "only", Kind: "foot"})
	second, _ := Rebuild(doc, nil)

	assert.Equal(t, 3, first.NodeCount())
	assert.Equal(t, 1, second.NodeCount())
	assert.Equal(t, 0, second.ConnectionCount())
}

func TestRebuild_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	kinds := make([]any, 0)
	for _, k := range graph.PaletteKinds() {
		kinds = append(kinds, k.Kind)
	}

	properties.Property("snapshot survives save, load and rebuild", prop.ForAll(
		func(picks []graph.NodeKind, wires []int, x, y int) bool {
			g := graph.New(nil)
			var outs, ins []graph.SocketRef
			for i, k := range picks {
				n, err := g.AddNode(k, fmt.Sprintf("n%d", i%3), graph.Point{X: float64(x + i), Y: float64(y - i)})
				if err != nil {
					return false
				}
				for _, s := range n.Outputs {
					outs = append(outs, n.Ref(graph.DirectionOutput, s.Name))
				}
				for _, s := range n.Inputs {
					ins = append(ins, n.Ref(graph.DirectionInput, s.Name))
				}
			}
			if len(outs) > 0 && len(ins) > 0 {
				for _, w := range wires {
					_, _ = g.Connect(outs[w%len(outs)], ins[(w/7)%len(ins)])
				}
			}

			before := Snapshot(g)
			data, err := Save(before)
			if err != nil {
				return false
			}
			loaded, err := Load(data)
			if err != nil {
				return false
			}
			rebuilt, report := Rebuild(loaded, nil)
			return report.Clean() && assert.ObjectsAreEqual(before, Snapshot(rebuilt))
		},
		gen.SliceOfN(6, gen.OneConstOf(kinds...)),
		gen.SliceOfN(8, gen.IntRange(0, 1000)),
		gen.IntRange(-500, 500),
		gen.IntRange(-500, 500),
	))

	properties.TestingRun(t)
}
