package mcp

import (
	"context"

	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/storage"
)

// Source supplies the document the server describes. It is read again for
// every request so the answers follow the running editor.
type Source interface {
	Snapshot(ctx context.Context) (*document.Document, error)
}

// BackendSource reads the recovery mirror.
type BackendSource struct {
	Backend storage.Backend
}

// Snapshot implements Source. An empty mirror reads as an empty graph.
func (b BackendSource) Snapshot(ctx context.Context) (*document.Document, error) {
	doc, err := b.Backend.ReadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return document.New(), nil
	}
	return doc, nil
}

// FileSource reads a saved document file.
type FileSource string

// Snapshot implements Source.
func (f FileSource) Snapshot(ctx context.Context) (*document.Document, error) {
	return document.ReadFile(string(f))
}
