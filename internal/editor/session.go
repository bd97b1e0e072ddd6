// Package editor owns the editing session: it applies every user edit to the
// arena graph and the write-through store together, and drives rig builds.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/canvas"
	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/graph"
	"github.com/Benny93/rigweave/internal/rig"
	"github.com/Benny93/rigweave/internal/storage"
)

// ErrNoPath is returned by Save when the session has never been saved.
var ErrNoPath = errors.New("document has no file name")

// Session is one open graph.
//
// Every mutating method changes the graph first and then writes the
// affected records through the store. When only the write-through fails the
// edit stays applied and a *storage.PersistenceError is returned.
type Session struct {
	mu     sync.Mutex
	graph  *graph.Graph
	store  *storage.Store
	rig    *rig.Orchestrator
	logger *zap.Logger
	path   string
}

func newSession(g *graph.Graph, store *storage.Store, orch *rig.Orchestrator, logger *zap.Logger, path string) *Session {
	return &Session{graph: g, store: store, rig: orch, logger: logger, path: path}
}

// Graph returns the session's graph.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Store returns the write-through store.
func (s *Session) Store() *storage.Store { return s.store }

// MirrorDirty reports whether the recovery mirror is behind the graph.
func (s *Session) MirrorDirty() bool { return s.store.Dirty() }

// RetryMirror writes the whole graph to the recovery mirror again.
func (s *Session) RetryMirror(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Flush(ctx)
}

// Path returns the file the session was opened from or last saved to.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Snapshot returns the graph as a document.
func (s *Session) Snapshot() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return document.Snapshot(s.graph)
}

// AddNode places a new node of the given kind. The name is made unique.
func (s *Session) AddNode(ctx context.Context, kind graph.NodeKind, name string, pos graph.Point) (*graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.graph.AddNode(kind, name, pos)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("node added", zap.String("node", n.Name), zap.String("kind", string(kind)))
	return n, s.store.UpsertNode(ctx, document.NodeRecordOf(n))
}

// RenameNode renames a node and returns the unique name it received.
func (s *Session) RenameNode(ctx context.Context, id graph.NodeID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	got, err := s.graph.RenameNode(id, name)
	if err != nil {
		return "", err
	}
	return got, s.persistNode(ctx, id)
}

// SetParam validates and stores one parameter value.
func (s *Session) SetParam(ctx context.Context, id graph.NodeID, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.SetParam(id, name, value); err != nil {
		return err
	}
	return s.persistNode(ctx, id)
}

// MoveNode places a node and persists the new position.
func (s *Session) MoveNode(ctx context.Context, id graph.NodeID, pos graph.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.MoveNode(id, pos); err != nil {
		return err
	}
	return s.persistNode(ctx, id)
}

// PersistNodes writes the current records of the given nodes.
func (s *Session) PersistNodes(ctx context.Context, ids []graph.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.persistNode(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) persistNode(ctx context.Context, id graph.NodeID) error {
	n := s.graph.Node(id)
	if n == nil {
		return &graph.LookupError{Key: string(id), Err: graph.ErrNodeNotFound}
	}
	return s.store.UpsertNode(ctx, document.NodeRecordOf(n))
}

// Connect links two sockets given in either order.
func (s *Session) Connect(ctx context.Context, a, b graph.SocketRef) (*graph.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.graph.Connect(a, b)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("connected", zap.Stringer("source", c.Source), zap.Stringer("target", c.Target))
	return c, s.store.UpsertConnection(ctx, document.ConnectionRecordOf(c))
}

// Disconnect removes one connection.
func (s *Session) Disconnect(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.graph.Disconnect(id)
	if err != nil {
		return err
	}
	return s.unpersistConnection(ctx, c)
}

func (s *Session) unpersistConnection(ctx context.Context, c *graph.Connection) error {
	return s.store.RemoveConnection(ctx,
		storage.SocketKey{Node: string(c.Source.Node), Socket: c.Source.Name},
		storage.SocketKey{Node: string(c.Target.Node), Socket: c.Target.Name})
}

// Delete removes connections and nodes. The graph is changed first for all
// of them, then the persisted records are removed. Failures do not stop the
// remaining deletions and are returned joined.
func (s *Session) Delete(ctx context.Context, nodes []graph.NodeID, conns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	var severed []*graph.Connection
	for _, id := range conns {
		c, err := s.graph.Disconnect(id)
		if err != nil {
			// listed twice
			if !errors.Is(err, graph.ErrConnectionNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		severed = append(severed, c)
	}
	var removed []graph.NodeID
	seen := make(map[graph.NodeID]bool, len(nodes))
	for _, id := range nodes {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.graph.RemoveNode(id); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, id)
	}

	for _, c := range severed {
		if err := s.unpersistConnection(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range removed {
		if err := s.store.RemoveNode(ctx, string(id)); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Debug("deleted", zap.Int("nodes", len(removed)), zap.Int("connections", len(severed)))
	return errors.Join(errs...)
}

// Template runs the best-effort template step for a node.
func (s *Session) Template(ctx context.Context, id graph.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rig.Template(ctx, s.graph, id)
}

// Build realises the given nodes in order and persists the attachments and
// links they produced. Build failures are in the report; the returned error
// only carries persistence failures.
func (s *Session) Build(ctx context.Context, ids ...graph.NodeID) (*rig.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.rig.BuildMany(ctx, s.graph, ids)
	return report, s.persistReport(ctx, report)
}

// UpdateConnections re-links every connection whose ends are both attached.
func (s *Session) UpdateConnections(ctx context.Context) (*rig.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.rig.RelinkAll(ctx, s.graph)
	return report, s.persistReport(ctx, report)
}

func (s *Session) persistReport(ctx context.Context, report *rig.Report) error {
	var errs []error
	for _, id := range report.Built {
		if err := s.persistNode(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, l := range report.Linked {
		c := s.graph.Connection(l.Connection)
		if c == nil {
			continue
		}
		if err := s.store.UpsertConnection(ctx, document.ConnectionRecordOf(c)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save writes the graph to the session's file.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return ErrNoPath
	}
	return s.writeTo(s.path)
}

// SaveAs writes the graph to path and makes it the session's file.
func (s *Session) SaveAs(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeTo(path); err != nil {
		return err
	}
	s.path = path
	return nil
}

func (s *Session) writeTo(path string) error {
	if err := document.WriteFile(path, document.Snapshot(s.graph)); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	s.logger.Info("document saved", zap.String("path", path), zap.Int("nodes", s.graph.NodeCount()))
	return nil
}

// Actions adapts the session to the canvas, binding ctx to every call.
func (s *Session) Actions(ctx context.Context) canvas.Actions {
	return &canvasActions{ctx: ctx, s: s}
}

type canvasActions struct {
	ctx context.Context
	s   *Session
}

func (a *canvasActions) Graph() *graph.Graph { return a.s.graph }

func (a *canvasActions) Connect(x, y graph.SocketRef) (*graph.Connection, error) {
	c, err := a.s.Connect(a.ctx, x, y)
	if c != nil && err != nil {
		// the connection exists; only the mirror is behind
		a.s.logger.Warn("connection not mirrored", zap.Error(err))
		return c, nil
	}
	return c, err
}

func (a *canvasActions) Disconnect(id string) error {
	return a.s.Disconnect(a.ctx, id)
}

func (a *canvasActions) PersistNodes(ids []graph.NodeID) error {
	return a.s.PersistNodes(a.ctx, ids)
}

func (a *canvasActions) Delete(nodes []graph.NodeID, conns []string) error {
	return a.s.Delete(a.ctx, nodes, conns)
}
