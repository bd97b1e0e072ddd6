// Package graph provides the rig graph data model.
//
// It defines the node kinds, their typed directional sockets and the
// connections between them. Nodes live in an arena keyed by NodeID; sockets
// and connections refer to their owners through SocketRef values rather than
// pointers.
package graph

import "fmt"

// NodeID is the stable arena key of a node. It never changes, even when the
// node is renamed.
type NodeID string

// Direction is the side of a node a socket sits on.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionInput {
		return DirectionOutput
	}
	return DirectionInput
}

// Point is a position in scene coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SocketRef addresses a socket by owner, side and name.
type SocketRef struct {
	Node      NodeID
	Direction Direction
	Name      string
}

func (r SocketRef) String() string {
	return fmt.Sprintf("%s.%s.%s", r.Node, r.Direction, r.Name)
}

// Socket is a typed, directional port on a node.
type Socket struct {
	// Name is unique among the sockets on the same side of a node.
	Name string

	// Type is checked against the peer's type when connecting.
	Type SocketType

	// Direction is input or output.
	Direction Direction

	// HandleIndex selects the build tuple element for Attachment.
	HandleIndex int

	// Attachment is the host handle written by the last build, or "".
	Attachment string

	peers []SocketRef
}

// Peers returns the sockets this socket is connected to, oldest first.
func (s *Socket) Peers() []SocketRef {
	out := make([]SocketRef, len(s.peers))
	copy(out, s.peers)
	return out
}

// Connected reports whether the socket has at least one connection.
func (s *Socket) Connected() bool {
	return len(s.peers) > 0
}

func (s *Socket) addPeer(ref SocketRef) {
	s.peers = append(s.peers, ref)
}

func (s *Socket) removePeer(ref SocketRef) {
	for i, p := range s.peers {
		if p == ref {
			s.peers = append(s.peers[:i], s.peers[i+1:]...)
			return
		}
	}
}

// Node is one rig module placed in the graph.
type Node struct {
	// ID is the arena key.
	ID NodeID

	// Name is unique within the graph and doubles as the builder identifier.
	Name string

	// Kind selects the socket schema and dispatch record.
	Kind NodeKind

	// Position is the top-left corner on the canvas.
	Position Point

	// Params holds the user-editable values.
	Params Params

	// Inputs and Outputs keep declaration order.
	Inputs  []*Socket
	Outputs []*Socket
}

func newNode(id NodeID, name string, spec *KindSpec, pos Point) *Node {
	n := &Node{
		ID:       id,
		Name:     name,
		Kind:     spec.Kind,
		Position: pos,
		Params:   spec.Defaults(),
	}
	for _, s := range spec.Inputs {
		n.Inputs = append(n.Inputs, &Socket{Name: s.Name, Type: s.Type, Direction: DirectionInput, HandleIndex: s.HandleIndex})
	}
	for _, s := range spec.Outputs {
		n.Outputs = append(n.Outputs, &Socket{Name: s.Name, Type: s.Type, Direction: DirectionOutput, HandleIndex: s.HandleIndex})
	}
	return n
}

// Sockets returns the sockets on one side.
func (n *Node) Sockets(dir Direction) []*Socket {
	if dir == DirectionInput {
		return n.Inputs
	}
	return n.Outputs
}

// Socket returns the named socket on one side, or nil.
func (n *Node) Socket(dir Direction, name string) *Socket {
	for _, s := range n.Sockets(dir) {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Ref builds a reference to one of the node's sockets.
func (n *Node) Ref(dir Direction, name string) SocketRef {
	return SocketRef{Node: n.ID, Direction: dir, Name: name}
}

// Connection links one output socket to one input socket.
type Connection struct {
	// ID is the arena key.
	ID string

	// Source is always an output socket.
	Source SocketRef

	// Target is always an input socket.
	Target SocketRef

	// SourceAttachment and TargetAttachment cache the handles that were
	// linked the last time the connection was realised in the host.
	SourceAttachment string
	TargetAttachment string
}

// Touches reports whether either end belongs to the node.
func (c *Connection) Touches(id NodeID) bool {
	return c.Source.Node == id || c.Target.Node == id
}
