// Package watch re-validates a graph document whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/graph"
)

// DefaultDebounce is the quiet period before a burst of writes is processed.
const DefaultDebounce = 300 * time.Millisecond

// Event describes the document after a change settled.
type Event struct {
	Path string

	// Doc and Report are nil when the document could not be read.
	Doc    *document.Document
	Graph  *graph.Graph
	Report *document.LoadReport

	Err error
}

// Watcher follows one document file.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Types    *graph.TypeRegistry
	Logger   *zap.Logger
}

// Run emits an event for the current contents, then one per settled change,
// until ctx is cancelled.
//
// The parent directory is watched rather than the file so that atomic
// rename-over saves are seen.
func (w *Watcher) Run(ctx context.Context, fn func(Event)) error {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	path, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", w.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	fn(w.load(path))

	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop() // Don't start yet
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("document event", zap.String("op", event.Op.String()))
			pending = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))

		case <-batchTimer.C:
			if pending {
				pending = false
				fn(w.load(path))
			}
		}
	}
}

func (w *Watcher) load(path string) Event {
	ev := Event{Path: path}
	doc, err := document.ReadFile(path)
	if err != nil {
		ev.Err = err
		return ev
	}
	ev.Doc = doc
	ev.Graph, ev.Report = document.Rebuild(doc, w.Types)
	return ev
}
