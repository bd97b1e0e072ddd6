// Package document defines the persisted graph snapshot and converts between
// it and the in-memory graph.
//
// The same schema is used for user files and for the crash-recovery mirror.
package document

import (
	"github.com/Benny93/rigweave/internal/graph"
)

// Version is the schema version written by Save.
const Version = 1

// Document is a full snapshot of a graph.
type Document struct {
	Version     int                `json:"version"`
	Nodes       []NodeRecord       `json:"nodes"`
	Connections []ConnectionRecord `json:"connections"`
}

// NodeRecord is the persisted form of one node.
type NodeRecord struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Position   graph.Point    `json:"position"`
	Sockets    SocketSet      `json:"sockets"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// SocketSet holds a node's sockets in declaration order.
type SocketSet struct {
	Input  []SocketRecord `json:"input"`
	Output []SocketRecord `json:"output"`
}

// SocketRecord is the persisted form of one socket.
type SocketRecord struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Attachment string `json:"attachment,omitempty"`
}

// ConnectionRecord is the persisted form of one connection. Node fields hold
// node ids; loading also accepts node names there.
type ConnectionRecord struct {
	ID               string `json:"id,omitempty"`
	SourceNode       string `json:"source_node"`
	SourceSocket     string `json:"source_socket"`
	TargetNode       string `json:"target_node"`
	TargetSocket     string `json:"target_socket"`
	SourceAttachment string `json:"source_attachment,omitempty"`
	TargetAttachment string `json:"target_attachment,omitempty"`
}

// Touches reports whether either end names the node id.
func (c ConnectionRecord) Touches(nodeID string) bool {
	return c.SourceNode == nodeID || c.TargetNode == nodeID
}

// SameEnds reports whether two records join the same sockets.
func (c ConnectionRecord) SameEnds(o ConnectionRecord) bool {
	return c.SourceNode == o.SourceNode && c.SourceSocket == o.SourceSocket &&
		c.TargetNode == o.TargetNode && c.TargetSocket == o.TargetSocket
}

// New returns an empty document at the current version.
func New() *Document {
	return &Document{Version: Version, Nodes: []NodeRecord{}, Connections: []ConnectionRecord{}}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := &Document{
		Version:     d.Version,
		Nodes:       make([]NodeRecord, len(d.Nodes)),
		Connections: make([]ConnectionRecord, len(d.Connections)),
	}
	for i, n := range d.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Connections, d.Connections)
	return out
}

// Clone returns a deep copy.
func (n NodeRecord) Clone() NodeRecord {
	out := n
	out.Sockets = SocketSet{
		Input:  append([]SocketRecord(nil), n.Sockets.Input...),
		Output: append([]SocketRecord(nil), n.Sockets.Output...),
	}
	if n.Parameters != nil {
		out.Parameters = make(map[string]any, len(n.Parameters))
		for k, v := range n.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

// NodeRecordOf captures a node.
func NodeRecordOf(n *graph.Node) NodeRecord {
	rec := NodeRecord{
		ID:         string(n.ID),
		Name:       n.Name,
		Kind:       string(n.Kind),
		Position:   n.Position,
		Parameters: n.Params.Clone(),
		Sockets: SocketSet{
			Input:  make([]SocketRecord, 0, len(n.Inputs)),
			Output: make([]SocketRecord, 0, len(n.Outputs)),
		},
	}
	for _, s := range n.Inputs {
		rec.Sockets.Input = append(rec.Sockets.Input, SocketRecord{Name: s.Name, Type: string(s.Type), Attachment: s.Attachment})
	}
	for _, s := range n.Outputs {
		rec.Sockets.Output = append(rec.Sockets.Output, SocketRecord{Name: s.Name, Type: string(s.Type), Attachment: s.Attachment})
	}
	return rec
}

// ConnectionRecordOf captures a connection.
func ConnectionRecordOf(c *graph.Connection) ConnectionRecord {
	return ConnectionRecord{
		ID:               c.ID,
		SourceNode:       string(c.Source.Node),
		SourceSocket:     c.Source.Name,
		TargetNode:       string(c.Target.Node),
		TargetSocket:     c.Target.Name,
		SourceAttachment: c.SourceAttachment,
		TargetAttachment: c.TargetAttachment,
	}
}

// Snapshot captures the whole graph.
func Snapshot(g *graph.Graph) *Document {
	doc := New()
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, NodeRecordOf(n))
	}
	for _, c := range g.Connections() {
		doc.Connections = append(doc.Connections, ConnectionRecordOf(c))
	}
	return doc
}
