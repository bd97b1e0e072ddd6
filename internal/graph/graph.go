package graph

import (
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Graph is the in-memory arena of nodes and connections for one editing
// session.
//
// Nodes are keyed by NodeID and connections by their ID. Removing a node
// cascades to every connection that touches one of its sockets, and both
// sockets of a connection always list each other as peers.
type Graph struct {
	mu    sync.RWMutex
	types *TypeRegistry

	nodes  map[NodeID]*Node
	byName map[string]NodeID
	order  []NodeID

	connections map[string]*Connection
	connSeq     map[string]uint64
	nextSeq     uint64

	// Adjacency indexes, kept in sync by connect/disconnect.
	outgoing map[NodeID]map[string]*Connection
	incoming map[NodeID]map[string]*Connection
}

// New creates an empty graph. A nil registry selects DefaultTypeRegistry.
func New(types *TypeRegistry) *Graph {
	if types == nil {
		types = DefaultTypeRegistry()
	}
	return &Graph{
		types:       types,
		nodes:       make(map[NodeID]*Node),
		byName:      make(map[string]NodeID),
		connections: make(map[string]*Connection),
		connSeq:     make(map[string]uint64),
		outgoing:    make(map[NodeID]map[string]*Connection),
		incoming:    make(map[NodeID]map[string]*Connection),
	}
}

// Types returns the registry used to validate connections.
func (g *Graph) Types() *TypeRegistry {
	return g.types
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// ConnectionCount returns the number of connections.
func (g *Graph) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// AddNode creates a node of the given kind. An empty name defaults to the
// kind tag; a taken name is suffixed with a counter.
func (g *Graph) AddNode(kind NodeKind, name string, pos Point) (*Node, error) {
	spec, err := LookupKind(kind)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = string(kind)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := newNode(NodeID(uuid.NewString()), g.uniqueName(name, ""), spec, pos)
	g.insert(n)
	return n, nil
}

// RestoreNode recreates a node with a known id, as when loading a document.
// Parameters are applied over the kind defaults; values that fail
// validation are dropped in favour of the default and returned as errors.
func (g *Graph) RestoreNode(id NodeID, kind NodeKind, name string, pos Point, params map[string]any) (*Node, []error, error) {
	spec, err := LookupKind(kind)
	if err != nil {
		return nil, nil, err
	}
	if name == "" {
		name = string(kind)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		id = NodeID(uuid.NewString())
	}
	if _, exists := g.nodes[id]; exists {
		return nil, nil, invalid("restore node", ErrDuplicateID, "%s", id)
	}

	n := newNode(id, g.uniqueName(name, ""), spec, pos)
	var rejected []error
	for key, value := range params {
		p, ok := spec.Param(key)
		if !ok {
			rejected = append(rejected, invalid("restore node", ErrUnknownParam, "%s.%s", name, key))
			continue
		}
		v, err := p.Normalize(value)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		n.Params[key] = v
	}
	g.insert(n)
	return n, rejected, nil
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	g.byName[n.Name] = n.ID
	g.order = append(g.order, n.ID)
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// NodeByName returns the node with the given name, or nil.
func (g *Graph) NodeByName(name string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id, ok := g.byName[name]; ok {
		return g.nodes[id]
	}
	return nil
}

// Nodes returns every node in creation order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// RenameNode changes a node's name and returns the name actually given,
// which carries a numeric suffix when the requested name is taken. Sockets
// and connections are untouched.
func (g *Graph) RenameNode(id NodeID, name string) (string, error) {
	if name == "" {
		return "", invalid("rename", ErrEmptyName, "%s", id)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return "", notFound(ErrNodeNotFound, string(id))
	}
	final := g.uniqueName(name, id)
	delete(g.byName, n.Name)
	n.Name = final
	g.byName[final] = id
	return final, nil
}

// MoveNode sets a node's canvas position.
func (g *Graph) MoveNode(id NodeID, pos Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return notFound(ErrNodeNotFound, string(id))
	}
	n.Position = pos
	return nil
}

// SetParam validates and stores one parameter value.
func (g *Graph) SetParam(id NodeID, name string, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return notFound(ErrNodeNotFound, string(id))
	}
	spec, err := LookupKind(n.Kind)
	if err != nil {
		return err
	}
	p, ok := spec.Param(name)
	if !ok {
		return invalid("set param", ErrUnknownParam, "%s.%s", n.Name, name)
	}
	v, err := p.Normalize(value)
	if err != nil {
		return err
	}
	n.Params[name] = v
	return nil
}

// RemoveNode deletes a node and every connection touching its sockets. The
// removed connections are returned so callers can drop their records.
func (g *Graph) RemoveNode(id NodeID) ([]*Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, notFound(ErrNodeNotFound, string(id))
	}

	removed := g.connectionsOf(id)
	for _, c := range removed {
		g.disconnect(c)
	}

	delete(g.nodes, id)
	delete(g.byName, n.Name)
	for i, nid := range g.order {
		if nid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return removed, nil
}

// Socket resolves a reference.
func (g *Graph) Socket(ref SocketRef) (*Socket, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.socket(ref)
}

func (g *Graph) socket(ref SocketRef) (*Socket, error) {
	n, ok := g.nodes[ref.Node]
	if !ok {
		return nil, notFound(ErrNodeNotFound, string(ref.Node))
	}
	s := n.Socket(ref.Direction, ref.Name)
	if s == nil {
		return nil, notFound(ErrSocketNotFound, n.Name+"."+string(ref.Direction)+"."+ref.Name)
	}
	return s, nil
}

// Peers returns the sockets connected to ref.
func (g *Graph) Peers(ref SocketRef) ([]SocketRef, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.socket(ref)
	if err != nil {
		return nil, err
	}
	return s.Peers(), nil
}

// CanConnect reports why a and b cannot be connected, or nil.
func (g *Graph) CanConnect(a, b SocketRef) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, _, err := g.validate(a, b)
	return err
}

// validate orders the pair as (output, input) and checks every invariant.
func (g *Graph) validate(a, b SocketRef) (SocketRef, SocketRef, error) {
	if a == b {
		return a, b, invalid("connect", ErrSelfLoop, "%s", a)
	}
	sa, err := g.socket(a)
	if err != nil {
		return a, b, err
	}
	sb, err := g.socket(b)
	if err != nil {
		return a, b, err
	}
	if sa.Direction == sb.Direction {
		return a, b, invalid("connect", ErrSameDirection, "%s and %s are both %s", a.Name, b.Name, sa.Direction)
	}
	source, target := a, b
	if sa.Direction == DirectionInput {
		source, target = b, a
		sa, sb = sb, sa
	}
	if !g.types.Compatible(sa.Type, sb.Type) {
		return source, target, invalid("connect", ErrIncompatibleTypes, "%s (%s) -> %s (%s)", source.Name, sa.Type, target.Name, sb.Type)
	}
	for _, p := range sa.peers {
		if p == target {
			return source, target, invalid("connect", ErrAlreadyConnected, "%s -> %s", source, target)
		}
	}
	return source, target, nil
}

// Connect links two sockets. The pair may be given in either order; the
// output end becomes the source.
func (g *Graph) Connect(a, b SocketRef) (*Connection, error) {
	return g.RestoreConnection("", a, b)
}

// RestoreConnection links two sockets under a known connection id. An empty
// id allocates a new one.
func (g *Graph) RestoreConnection(id string, a, b SocketRef) (*Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	source, target, err := g.validate(a, b)
	if err != nil {
		return nil, err
	}
	if id == "" || g.connections[id] != nil {
		id = uuid.NewString()
	}

	c := &Connection{ID: id, Source: source, Target: target}
	ss, _ := g.socket(source)
	ts, _ := g.socket(target)
	ss.addPeer(target)
	ts.addPeer(source)

	g.connections[id] = c
	g.nextSeq++
	g.connSeq[id] = g.nextSeq
	if g.outgoing[source.Node] == nil {
		g.outgoing[source.Node] = make(map[string]*Connection)
	}
	g.outgoing[source.Node][id] = c
	if g.incoming[target.Node] == nil {
		g.incoming[target.Node] = make(map[string]*Connection)
	}
	g.incoming[target.Node][id] = c
	return c, nil
}

// Disconnect removes a connection by id.
func (g *Graph) Disconnect(id string) (*Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.connections[id]
	if !ok {
		return nil, notFound(ErrConnectionNotFound, id)
	}
	g.disconnect(c)
	return c, nil
}

// disconnect must be called with the write lock held.
func (g *Graph) disconnect(c *Connection) {
	if s, err := g.socket(c.Source); err == nil {
		s.removePeer(c.Target)
	}
	if s, err := g.socket(c.Target); err == nil {
		s.removePeer(c.Source)
	}
	delete(g.connections, c.ID)
	delete(g.connSeq, c.ID)
	delete(g.outgoing[c.Source.Node], c.ID)
	delete(g.incoming[c.Target.Node], c.ID)
}

// FindConnection returns the connection between two sockets, in either
// order, or nil.
func (g *Graph) FindConnection(a, b SocketRef) *Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.outgoing[a.Node] {
		if c.Source == a && c.Target == b {
			return c
		}
	}
	for _, c := range g.outgoing[b.Node] {
		if c.Source == b && c.Target == a {
			return c
		}
	}
	return nil
}

// Connection returns the connection with the given id, or nil.
func (g *Graph) Connection(id string) *Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connections[id]
}

// Connections returns every connection in creation order.
func (g *Graph) Connections() []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		out = append(out, c)
	}
	g.sortBySeq(out)
	return out
}

// ConnectionsOf returns the connections touching a node in creation order.
func (g *Graph) ConnectionsOf(id NodeID) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connectionsOf(id)
}

func (g *Graph) connectionsOf(id NodeID) []*Connection {
	var out []*Connection
	for _, c := range g.outgoing[id] {
		out = append(out, c)
	}
	for _, c := range g.incoming[id] {
		// A node wired to itself appears in both indexes.
		if c.Source.Node != id {
			out = append(out, c)
		}
	}
	g.sortBySeq(out)
	return out
}

func (g *Graph) sortBySeq(conns []*Connection) {
	sort.Slice(conns, func(i, j int) bool {
		return g.connSeq[conns[i].ID] < g.connSeq[conns[j].ID]
	})
}

// SetAttachment stores a host handle on a socket.
func (g *Graph) SetAttachment(ref SocketRef, handle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.socket(ref)
	if err != nil {
		return err
	}
	s.Attachment = handle
	return nil
}

// SetConnectionAttachments caches the handles a connection was linked with.
func (g *Graph) SetConnectionAttachments(id, source, target string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.connections[id]
	if !ok {
		return notFound(ErrConnectionNotFound, id)
	}
	c.SourceAttachment = source
	c.TargetAttachment = target
	return nil
}

// uniqueName returns base if no other node uses it, otherwise base1, base2,
// and so on. self is excluded from the check so renaming a node to its own
// name is a no-op. Must be called with the lock held.
func (g *Graph) uniqueName(base string, self NodeID) string {
	taken := func(name string) bool {
		id, ok := g.byName[name]
		return ok && id != self
	}
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}
