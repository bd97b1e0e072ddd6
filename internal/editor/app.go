package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/graph"
	"github.com/Benny93/rigweave/internal/rig"
	"github.com/Benny93/rigweave/internal/storage"
)

// ErrNoSession is returned when an operation needs an open session.
var ErrNoSession = errors.New("no open session")

// Options configures an App.
type Options struct {
	// Backend holds the recovery mirror. Nil keeps it in memory only.
	Backend storage.Backend

	// Builder realises nodes. Nil selects an offline builder.
	Builder rig.Builder

	Types  *graph.TypeRegistry
	Logger *zap.Logger
	Rig    []rig.Option
}

// App is the application context. It owns the store, the orchestrator and
// at most one active session.
type App struct {
	mu      sync.Mutex
	store   *storage.Store
	rig     *rig.Orchestrator
	types   *graph.TypeRegistry
	logger  *zap.Logger
	session *Session
}

// NewApp creates an App with no open session.
func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := opts.Builder
	if builder == nil {
		builder = rig.NewOfflineBuilder(0)
	}
	types := opts.Types
	if types == nil {
		types = graph.DefaultTypeRegistry()
	}
	rigOpts := append([]rig.Option{rig.WithLogger(logger)}, opts.Rig...)
	return &App{
		store:  storage.NewStore(opts.Backend, logger),
		rig:    rig.NewOrchestrator(builder, rigOpts...),
		types:  types,
		logger: logger,
	}
}

// Session returns the active session, or nil.
func (a *App) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Store returns the write-through store shared by every session.
func (a *App) Store() *storage.Store { return a.store }

// New starts an empty session, replacing the active one. The recovery
// mirror is reset to the empty graph.
func (a *App) New(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := newSession(graph.New(a.types), a.store, a.rig, a.logger, "")
	a.session = s
	return s, a.store.Clear(ctx)
}

// Open loads a document file into a new session. Problems found while
// rebuilding are returned in the report; they never fail the load.
func (a *App) Open(ctx context.Context, path string) (*Session, *document.LoadReport, error) {
	doc, err := document.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	s, report, err := a.restore(ctx, doc, path)
	if s != nil {
		a.logger.Info("document opened",
			zap.String("path", path),
			zap.Int("nodes", s.graph.NodeCount()),
			zap.Int("connections", s.graph.ConnectionCount()),
			zap.Int("problems", len(report.Problems())))
	}
	return s, report, err
}

// Recover reopens the graph left in the recovery mirror by a session that
// was not closed. It returns a nil session when the mirror is empty.
func (a *App) Recover(ctx context.Context) (*Session, *document.LoadReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	found, err := a.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}
	s, report, err := a.restore(ctx, a.store.Snapshot(), "")
	if s != nil {
		a.logger.Info("session recovered", zap.Int("nodes", s.graph.NodeCount()))
	}
	return s, report, err
}

// restore rebuilds doc and mirrors the rebuilt graph, so records the
// rebuild dropped or repaired are not carried over.
func (a *App) restore(ctx context.Context, doc *document.Document, path string) (*Session, *document.LoadReport, error) {
	g, report := document.Rebuild(doc, a.types)
	s := newSession(g, a.store, a.rig, a.logger, path)
	a.session = s
	for _, p := range report.Problems() {
		a.logger.Warn("load problem", zap.String("problem", p))
	}
	return s, report, a.store.Restore(ctx, document.Snapshot(g))
}

// Close ends the active session and clears the recovery mirror.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return ErrNoSession
	}
	a.session = nil
	if err := a.store.Discard(ctx); err != nil {
		return fmt.Errorf("clearing recovery mirror: %w", err)
	}
	return nil
}
