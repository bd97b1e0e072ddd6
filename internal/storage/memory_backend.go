package storage

import (
	"context"
	"sync"

	"github.com/Benny93/rigweave/internal/document"
)

// MemoryBackend is an in-memory implementation of Backend for tests and for
// sessions that opt out of recovery.
//
// It stores the encoded bytes rather than the document so callers cannot
// alias what was written.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     []byte
	writes   int
	readOnly bool
	failWith error
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// FailWrites makes every following write return err. Pass nil to recover.
func (m *MemoryBackend) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Writes returns how many snapshots were written successfully.
func (m *MemoryBackend) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// WriteSnapshot implements Backend.
func (m *MemoryBackend) WriteSnapshot(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readOnly {
		return ErrReadOnly
	}
	if m.failWith != nil {
		return m.failWith
	}
	data, err := document.Save(doc)
	if err != nil {
		return err
	}
	m.data = data
	m.writes++
	return nil
}

// ReadSnapshot implements Backend.
func (m *MemoryBackend) ReadSnapshot(ctx context.Context) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, nil
	}
	return document.Load(m.data)
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
