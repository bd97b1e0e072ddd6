package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/Benny93/rigweave/internal/document"
)

// FileBackend keeps the snapshot as a single JSON document on disk.
type FileBackend struct {
	mu       sync.RWMutex
	path     string
	readOnly bool
}

// NewFileBackend creates an uninitialized file backend.
func NewFileBackend() *FileBackend {
	return &FileBackend{}
}

// Initialize records the document path. The file itself is created on the
// first write.
func (f *FileBackend) Initialize(path string, readOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if path == "" {
		return fmt.Errorf("file backend needs a path")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	f.path = path
	f.readOnly = readOnly
	return nil
}

// Close implements Backend.
func (f *FileBackend) Close() error {
	return nil
}

// Path returns the document path.
func (f *FileBackend) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.path
}

// WriteSnapshot implements Backend.
func (f *FileBackend) WriteSnapshot(ctx context.Context, doc *document.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return ErrReadOnly
	}
	return document.WriteFile(f.path, doc)
}

// ReadSnapshot implements Backend.
func (f *FileBackend) ReadSnapshot(ctx context.Context) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	doc, err := document.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return doc, err
}

// Clear implements Backend.
func (f *FileBackend) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return ErrReadOnly
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", f.path, err)
	}
	return nil
}
