// Package storage persists the graph snapshot for crash recovery and external
// tooling.
//
// It defines the Backend interface every persistence implementation must
// satisfy and the write-through Store that the editor mutates.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Benny93/rigweave/internal/document"
)

// Backend stores whole-graph snapshots.
//
// Implementations must be thread-safe. WriteSnapshot replaces whatever was
// stored before in a single atomic step so that a concurrent reader sees
// either the previous or the new snapshot in full.
type Backend interface {
	// Lifecycle methods

	// Initialize opens or creates the backend at the given path.
	// If readOnly is true, writes are refused.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// Snapshot operations

	// WriteSnapshot replaces the stored snapshot.
	WriteSnapshot(ctx context.Context, doc *document.Document) error

	// ReadSnapshot returns the stored snapshot, or nil when nothing has been
	// written yet.
	ReadSnapshot(ctx context.Context) (*document.Document, error)

	// Clear removes the stored snapshot.
	Clear(ctx context.Context) error
}

// BackendKind names a Backend implementation in configuration.
type BackendKind string

const (
	BackendFile   BackendKind = "file"
	BackendBadger BackendKind = "badger"
	BackendMemory BackendKind = "memory"
)

// Open creates and initializes a backend of the given kind.
func Open(kind BackendKind, path string, readOnly bool) (Backend, error) {
	var b Backend
	switch kind {
	case BackendFile, "":
		b = NewFileBackend()
	case BackendBadger:
		b = NewBadgerBackend()
	case BackendMemory:
		b = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown recovery backend %q", kind)
	}
	if err := b.Initialize(path, readOnly); err != nil {
		return nil, fmt.Errorf("initializing %s backend: %w", kind, err)
	}
	return b, nil
}

// ErrReadOnly is returned by writes to a backend opened read-only.
var ErrReadOnly = errors.New("backend is read-only")
