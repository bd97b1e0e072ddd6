// Package canvas implements the node editor's pointer interaction: hit
// testing, the view transform and the drawing/selection state machine.
//
// The canvas never persists anything itself. Edits that must reach the
// store go through Actions.
package canvas

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/graph"
)

// State is the interaction mode.
type State int

const (
	StateIdle State = iota
	StateDrawingConnection
	StateDrawingCutLine
	StatePanning
	StateRubberBandSelecting
	StateDraggingNodes
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawingConnection:
		return "drawing connection"
	case StateDrawingCutLine:
		return "cutting"
	case StatePanning:
		return "panning"
	case StateRubberBandSelecting:
		return "selecting"
	case StateDraggingNodes:
		return "dragging"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Action is the kind of pointer event.
type Action int

const (
	ActionPress Action = iota
	ActionRelease
	ActionMove
	ActionWheel
)

// Button identifies the pointer button involved in an event.
type Button int

const (
	ButtonNone Button = iota
	ButtonPrimary
	ButtonMiddle
	ButtonWheelUp
	ButtonWheelDown
)

// Modifiers are the keyboard modifiers held during an event.
type Modifiers struct {
	Ctrl  bool
	Shift bool
}

// PointerEvent is one pointer input in screen units.
type PointerEvent struct {
	Action Action
	Button Button
	Pos    Point
	Mods   Modifiers
}

// Actions is the editing surface the canvas drives.
type Actions interface {
	Graph() *graph.Graph
	Connect(a, b graph.SocketRef) (*graph.Connection, error)
	Disconnect(id string) error
	// PersistNodes stores the current records of nodes moved by a drag.
	PersistNodes(ids []graph.NodeID) error
	// Delete removes nodes and connections from graph and store.
	Delete(nodes []graph.NodeID, conns []string) error
}

// Line is a connection drawn between two socket centres in world units.
type Line struct {
	ID       string
	Segment  Segment
	Selected bool
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithStyle overrides DefaultStyle.
func WithStyle(s Style) Option {
	return func(c *Canvas) { c.style = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Canvas) { c.logger = l }
}

// Canvas holds the view and interaction state over an Actions surface.
type Canvas struct {
	actions Actions
	style   Style
	view    Viewport
	logger  *zap.Logger

	state State

	// origin is the socket a connection is drawn from.
	origin graph.SocketRef
	// anchor is where a cut line or rubber band started, in world units.
	anchor Point
	// pointer is the latest pointer position in world units.
	pointer Point
	// last is the previous pointer position in screen units, used by
	// panning and dragging.
	last  Point
	moved map[graph.NodeID]struct{}

	nodes map[graph.NodeID]struct{}
	conns map[string]struct{}

	status string
}

// New returns an idle canvas with the identity view.
func New(actions Actions, opts ...Option) *Canvas {
	c := &Canvas{
		actions: actions,
		style:   DefaultStyle(),
		view:    NewViewport(),
		logger:  zap.NewNop(),
		nodes:   make(map[graph.NodeID]struct{}),
		conns:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Canvas) State() State       { return c.state }
func (c *Canvas) Style() Style       { return c.style }
func (c *Canvas) Viewport() Viewport { return c.view }

// Pan scrolls the view by delta screen units.
func (c *Canvas) Pan(delta Point) { c.view.Pan(delta) }

// Status returns the transient message left by the last action.
func (c *Canvas) Status() string { return c.status }

// SetStatus replaces the transient message.
func (c *Canvas) SetStatus(msg string) { c.status = msg }

// HandlePointer advances the state machine.
func (c *Canvas) HandlePointer(ev PointerEvent) {
	world := c.view.ToWorld(ev.Pos)

	if ev.Action == ActionWheel {
		switch ev.Button {
		case ButtonWheelUp:
			c.view.ZoomAt(ev.Pos, 1)
		case ButtonWheelDown:
			c.view.ZoomAt(ev.Pos, -1)
		}
		return
	}
	if ev.Action == ActionMove {
		c.pointer = world
	}

	switch c.state {
	case StateIdle:
		c.idle(ev, world)

	case StateDrawingConnection:
		if ev.Action == ActionPress && ev.Button == ButtonPrimary {
			c.finishConnection(world)
			c.state = StateIdle
		}

	case StateDrawingCutLine:
		if ev.Action == ActionRelease && ev.Button == ButtonPrimary {
			c.pointer = world
			c.cut(Segment{A: c.anchor, B: world})
			c.state = StateIdle
		}

	case StatePanning:
		switch {
		case ev.Action == ActionMove:
			c.view.Pan(sub(ev.Pos, c.last))
			c.last = ev.Pos
		case ev.Action == ActionRelease && ev.Button == ButtonMiddle:
			c.state = StateIdle
		}

	case StateRubberBandSelecting:
		if ev.Action == ActionRelease && ev.Button == ButtonPrimary {
			c.pointer = world
			c.selectRect(RectFromPoints(c.anchor, world), ev.Mods.Shift)
			c.state = StateIdle
		}

	case StateDraggingNodes:
		switch {
		case ev.Action == ActionMove:
			c.drag(ev.Pos)
		case ev.Action == ActionRelease && ev.Button == ButtonPrimary:
			c.drag(ev.Pos)
			c.commitDrag()
			c.state = StateIdle
		}
	}
}

func (c *Canvas) idle(ev PointerEvent, world Point) {
	if ev.Action != ActionPress {
		return
	}
	g := c.actions.Graph()

	switch ev.Button {
	case ButtonMiddle:
		c.last = ev.Pos
		c.state = StatePanning
		return
	case ButtonPrimary:
	default:
		return
	}

	c.pointer = world

	if ev.Mods.Ctrl {
		c.anchor = world
		c.state = StateDrawingCutLine
		return
	}

	if ref, ok := c.style.SocketAt(g, world, c.style.SocketRadius/c.view.Zoom); ok {
		c.origin = ref
		c.state = StateDrawingConnection
		c.status = ""
		return
	}

	if n := c.style.NodeAt(g, world); n != nil {
		_, selected := c.nodes[n.ID]
		switch {
		case ev.Mods.Shift:
			c.nodes[n.ID] = struct{}{}
		case !selected:
			c.clearSelection()
			c.nodes[n.ID] = struct{}{}
		}
		c.last = ev.Pos
		c.moved = make(map[graph.NodeID]struct{})
		c.state = StateDraggingNodes
		return
	}

	if id, ok := c.style.ConnectionAt(g, world, c.style.LineTolerance/c.view.Zoom); ok {
		if !ev.Mods.Shift {
			c.clearSelection()
		}
		c.conns[id] = struct{}{}
		return
	}

	c.anchor = world
	c.state = StateRubberBandSelecting
}

func (c *Canvas) finishConnection(world Point) {
	g := c.actions.Graph()
	ref, ok := c.style.SocketAt(g, world, c.style.SocketRadius/c.view.Zoom)
	if !ok {
		c.status = ""
		return
	}
	conn, err := c.actions.Connect(c.origin, ref)
	if err != nil {
		c.logger.Info("connection rejected",
			zap.Stringer("from", c.origin), zap.Stringer("to", ref), zap.Error(err))
		c.status = rejection(err)
		return
	}
	c.status = fmt.Sprintf("connected %s to %s", socketLabel(g, conn.Source), socketLabel(g, conn.Target))
}

func rejection(err error) string {
	switch {
	case errors.Is(err, graph.ErrIncompatibleTypes):
		return "cannot connect: socket types are incompatible"
	case errors.Is(err, graph.ErrSameDirection):
		return "cannot connect: both sockets face the same way"
	case errors.Is(err, graph.ErrSelfLoop):
		return "cannot connect a socket to itself"
	case errors.Is(err, graph.ErrAlreadyConnected):
		return "sockets are already connected"
	}
	return "cannot connect: " + err.Error()
}

func socketLabel(g *graph.Graph, ref graph.SocketRef) string {
	if n := g.Node(ref.Node); n != nil {
		return n.Name + "." + ref.Name
	}
	return ref.String()
}

func (c *Canvas) cut(line Segment) {
	var cut int
	for _, l := range c.Lines() {
		if !SegmentsIntersect(line, l.Segment) {
			continue
		}
		if err := c.actions.Disconnect(l.ID); err != nil {
			c.logger.Warn("cut failed", zap.String("connection", l.ID), zap.Error(err))
			c.status = "cut failed: " + err.Error()
			continue
		}
		delete(c.conns, l.ID)
		cut++
	}
	if cut > 0 {
		c.status = fmt.Sprintf("cut %d connection(s)", cut)
	}
}

func (c *Canvas) selectRect(r Rect, additive bool) {
	if !additive {
		c.clearSelection()
	}
	for _, n := range c.actions.Graph().Nodes() {
		if c.style.NodeRect(n).Intersects(r) {
			c.nodes[n.ID] = struct{}{}
		}
	}
}

func (c *Canvas) drag(pos Point) {
	delta := scale(sub(pos, c.last), 1/c.view.Zoom)
	c.last = pos
	if delta.X == 0 && delta.Y == 0 {
		return
	}
	g := c.actions.Graph()
	for _, n := range g.Nodes() {
		if _, ok := c.nodes[n.ID]; !ok {
			continue
		}
		if err := g.MoveNode(n.ID, add(n.Position, delta)); err == nil {
			c.moved[n.ID] = struct{}{}
		}
	}
}

func (c *Canvas) commitDrag() {
	if len(c.moved) == 0 {
		return
	}
	var ids []graph.NodeID
	for _, n := range c.actions.Graph().Nodes() {
		if _, ok := c.moved[n.ID]; ok {
			ids = append(ids, n.ID)
		}
	}
	c.moved = nil
	if err := c.actions.PersistNodes(ids); err != nil {
		c.logger.Warn("persisting moved nodes failed", zap.Error(err))
		c.status = "move not saved: " + err.Error()
	}
}

// Cancel abandons an in-progress gesture. A drag keeps the positions
// reached so far and persists them.
func (c *Canvas) Cancel() {
	if c.state == StateDraggingNodes {
		c.commitDrag()
	}
	c.state = StateIdle
}

// TempLine returns the line following the pointer while a connection or
// cut line is being drawn, in world units.
func (c *Canvas) TempLine() (Segment, bool) {
	switch c.state {
	case StateDrawingConnection:
		g := c.actions.Graph()
		n := g.Node(c.origin.Node)
		if n == nil {
			return Segment{}, false
		}
		start, ok := c.style.SocketCenter(n, c.origin.Direction, c.origin.Name)
		if !ok {
			return Segment{}, false
		}
		return Segment{A: start, B: c.pointer}, true
	case StateDrawingCutLine:
		return Segment{A: c.anchor, B: c.pointer}, true
	}
	return Segment{}, false
}

// RubberBand returns the selection rectangle while one is being dragged.
func (c *Canvas) RubberBand() (Rect, bool) {
	if c.state != StateRubberBandSelecting {
		return Rect{}, false
	}
	return RectFromPoints(c.anchor, c.pointer), true
}

// Lines returns every connection line, re-routed from the current node
// positions.
func (c *Canvas) Lines() []Line {
	g := c.actions.Graph()
	conns := g.Connections()
	out := make([]Line, 0, len(conns))
	for _, conn := range conns {
		seg, ok := c.style.ConnectionSegment(g, conn)
		if !ok {
			continue
		}
		_, sel := c.conns[conn.ID]
		out = append(out, Line{ID: conn.ID, Segment: seg, Selected: sel})
	}
	return out
}

// Selection returns the selected nodes and connections in graph order.
// Items that no longer exist are dropped.
func (c *Canvas) Selection() ([]graph.NodeID, []string) {
	g := c.actions.Graph()
	var nodes []graph.NodeID
	for _, n := range g.Nodes() {
		if _, ok := c.nodes[n.ID]; ok {
			nodes = append(nodes, n.ID)
		}
	}
	var conns []string
	for _, conn := range g.Connections() {
		if _, ok := c.conns[conn.ID]; ok {
			conns = append(conns, conn.ID)
		}
	}
	return nodes, conns
}

// IsSelected reports whether a node is selected.
func (c *Canvas) IsSelected(id graph.NodeID) bool {
	_, ok := c.nodes[id]
	return ok
}

// SelectNode selects a node, replacing the selection unless additive.
func (c *Canvas) SelectNode(id graph.NodeID, additive bool) {
	if !additive {
		c.clearSelection()
	}
	c.nodes[id] = struct{}{}
}

func (c *Canvas) clearSelection() {
	clear(c.nodes)
	clear(c.conns)
}

// ClearSelection deselects everything.
func (c *Canvas) ClearSelection() { c.clearSelection() }

// DeleteSelection removes the selected nodes and connections. Connections
// of deleted nodes are removed with them.
func (c *Canvas) DeleteSelection() error {
	nodes, conns := c.Selection()
	if len(nodes) == 0 && len(conns) == 0 {
		return nil
	}
	if err := c.actions.Delete(nodes, conns); err != nil {
		c.status = "delete failed: " + err.Error()
		return err
	}
	c.clearSelection()
	c.status = fmt.Sprintf("deleted %d node(s), %d connection(s)", len(nodes), len(conns))
	return nil
}
