package canvas

import (
	"github.com/Benny93/rigweave/internal/graph"
)

// Style holds the node geometry in world units.
type Style struct {
	NodeWidth  float64
	NodeHeight float64

	// SocketRadius and LineTolerance are hit-test distances in screen
	// units.
	SocketRadius  float64
	LineTolerance float64

	GridSize       float64
	GridMajorEvery int
}

// DefaultStyle returns the standard node size and grid.
func DefaultStyle() Style {
	return Style{
		NodeWidth:      250,
		NodeHeight:     300,
		SocketRadius:   12,
		LineTolerance:  8,
		GridSize:       50,
		GridMajorEvery: 5,
	}
}

// NodeRect returns the node's bounds.
func (s Style) NodeRect(n *graph.Node) Rect {
	return Rect{
		Min: n.Position,
		Max: Point{X: n.Position.X + s.NodeWidth, Y: n.Position.Y + s.NodeHeight},
	}
}

// SocketCenter places inputs on the left edge and outputs on the right,
// spaced evenly down the node: socket i of n sits at height*(i+1)/(n+1).
func (s Style) SocketCenter(n *graph.Node, dir graph.Direction, name string) (Point, bool) {
	sockets := n.Sockets(dir)
	for i, sock := range sockets {
		if sock.Name != name {
			continue
		}
		x := n.Position.X
		if dir == graph.DirectionOutput {
			x += s.NodeWidth
		}
		y := n.Position.Y + s.NodeHeight*float64(i+1)/float64(len(sockets)+1)
		return Point{X: x, Y: y}, true
	}
	return Point{}, false
}

// SocketAt returns the socket whose centre is within radius of p. Later
// nodes are drawn on top and win.
func (s Style) SocketAt(g *graph.Graph, p Point, radius float64) (graph.SocketRef, bool) {
	nodes := g.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		for _, dir := range []graph.Direction{graph.DirectionInput, graph.DirectionOutput} {
			for _, sock := range n.Sockets(dir) {
				c, _ := s.SocketCenter(n, dir, sock.Name)
				if distance(c, p) <= radius {
					return n.Ref(dir, sock.Name), true
				}
			}
		}
	}
	return graph.SocketRef{}, false
}

// NodeAt returns the topmost node whose bounds contain p.
func (s Style) NodeAt(g *graph.Graph, p Point) *graph.Node {
	nodes := g.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		if s.NodeRect(nodes[i]).Contains(p) {
			return nodes[i]
		}
	}
	return nil
}

// ConnectionSegment returns the line between a connection's socket
// centres, computed from the current node positions.
func (s Style) ConnectionSegment(g *graph.Graph, c *graph.Connection) (Segment, bool) {
	src := g.Node(c.Source.Node)
	tgt := g.Node(c.Target.Node)
	if src == nil || tgt == nil {
		return Segment{}, false
	}
	a, ok := s.SocketCenter(src, c.Source.Direction, c.Source.Name)
	if !ok {
		return Segment{}, false
	}
	b, ok := s.SocketCenter(tgt, c.Target.Direction, c.Target.Name)
	if !ok {
		return Segment{}, false
	}
	return Segment{A: a, B: b}, true
}

// ConnectionAt returns the id of the connection line nearest p within
// tolerance.
func (s Style) ConnectionAt(g *graph.Graph, p Point, tolerance float64) (string, bool) {
	best, bestDist := "", tolerance
	for _, c := range g.Connections() {
		seg, ok := s.ConnectionSegment(g, c)
		if !ok {
			continue
		}
		if d := seg.DistanceTo(p); d <= bestDist {
			best, bestDist = c.ID, d
		}
	}
	return best, best != ""
}
