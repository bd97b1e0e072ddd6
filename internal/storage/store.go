package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/document"
)

// PersistenceError reports a failed write-through. The in-memory snapshot
// already holds the change when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SocketKey addresses one end of a connection record.
type SocketKey struct {
	Node   string
	Socket string
}

// Store is the graph data store: a keyed snapshot of node and connection
// records that writes through to its Backend after every mutation.
//
// The in-memory snapshot is authoritative. When the backend fails the
// mutation stays applied, the store is marked dirty and the caller receives
// a *PersistenceError.
type Store struct {
	mu      sync.Mutex
	doc     *document.Document
	backend Backend
	logger  *zap.Logger
	dirty   bool
}

// NewStore creates an empty store. A nil backend keeps the snapshot in
// memory only; a nil logger discards log output.
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		doc:     document.New(),
		backend: backend,
		logger:  logger,
	}
}

// Backend returns the configured backend, possibly nil.
func (s *Store) Backend() Backend {
	return s.backend
}

// UpsertNode inserts the record or replaces the one with the same id in
// place.
func (s *Store) UpsertNode(ctx context.Context, rec document.NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.doc.Nodes {
		if s.doc.Nodes[i].ID == rec.ID {
			s.doc.Nodes[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Nodes = append(s.doc.Nodes, rec)
	}
	return s.persist(ctx, "node "+rec.Name)
}

// RemoveNode drops the node record and every connection record that
// references it.
func (s *Store) RemoveNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.doc.Nodes[:0]
	for _, n := range s.doc.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	s.doc.Nodes = nodes

	conns := s.doc.Connections[:0]
	for _, c := range s.doc.Connections {
		if !c.Touches(id) {
			conns = append(conns, c)
		}
	}
	s.doc.Connections = conns

	return s.persist(ctx, "removal of node "+id)
}

// UpsertConnection inserts the record, or replaces an existing record with
// the same id or the same two ends.
func (s *Store) UpsertConnection(ctx context.Context, rec document.ConnectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i, c := range s.doc.Connections {
		if (rec.ID != "" && c.ID == rec.ID) || c.SameEnds(rec) {
			s.doc.Connections[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Connections = append(s.doc.Connections, rec)
	}
	return s.persist(ctx, "connection "+rec.ID)
}

// RemoveConnection drops the record joining source to target. Removing a
// record that does not exist is not an error.
func (s *Store) RemoveConnection(ctx context.Context, source, target SocketKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := s.doc.Connections[:0]
	for _, c := range s.doc.Connections {
		if c.SourceNode == source.Node && c.SourceSocket == source.Socket &&
			c.TargetNode == target.Node && c.TargetSocket == target.Socket {
			continue
		}
		conns = append(conns, c)
	}
	s.doc.Connections = conns

	return s.persist(ctx, fmt.Sprintf("removal of connection %s.%s -> %s.%s",
		source.Node, source.Socket, target.Node, target.Socket))
}

// Snapshot returns a deep copy of the current records.
func (s *Store) Snapshot() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Restore replaces the whole snapshot with doc.
func (s *Store) Restore(ctx context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc == nil {
		doc = document.New()
	}
	s.doc = doc.Clone()
	return s.persist(ctx, "snapshot")
}

// Clear empties the store and persists the empty snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = document.New()
	return s.persist(ctx, "clear")
}

// Discard empties the store and removes whatever the backend holds.
func (s *Store) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = document.New()
	s.dirty = false
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Clear(ctx); err != nil {
		return &PersistenceError{Op: "discard", Err: err}
	}
	return nil
}

// Flush retries persisting the current snapshot.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, "flush")
}

// Dirty reports whether the last write-through failed.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Load reads the backend's snapshot into the store without writing it back.
// It returns false when the backend holds nothing.
func (s *Store) Load(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return false, nil
	}
	doc, err := s.backend.ReadSnapshot(ctx)
	if err != nil {
		return false, &PersistenceError{Op: "read", Err: err}
	}
	if doc == nil {
		return false, nil
	}
	s.doc = doc
	s.dirty = false
	return true, nil
}

func (s *Store) persist(ctx context.Context, op string) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.WriteSnapshot(ctx, s.doc); err != nil {
		s.dirty = true
		s.logger.Warn("write-through failed",
			zap.String("op", op),
			zap.Int("nodes", len(s.doc.Nodes)),
			zap.Int("connections", len(s.doc.Connections)),
			zap.Error(err))
		return &PersistenceError{Op: op, Err: err}
	}
	s.dirty = false
	return nil
}
