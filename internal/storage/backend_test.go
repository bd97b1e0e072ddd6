package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/graph"
)

func sampleDoc() *document.Document {
	doc := document.New()
	doc.Nodes = append(doc.Nodes,
		document.NodeRecord{
			ID: "n1", Name: "arm", Kind: "TwoBoneIK",
			Position:   graph.Point{X: 10, Y: 20},
			Parameters: map[string]any{"twistJoints": float64(2)},
		},
		document.NodeRecord{ID: "n2", Name: "ctrl", Kind: "Control"},
	)
	doc.Connections = append(doc.Connections, document.ConnectionRecord{
		ID:         "c1",
		SourceNode: "n1", SourceSocket: "wrist_out",
		TargetNode: "n2", TargetSocket: "controlFK_in",
		SourceAttachment: "wrist_JNT",
	})
	return doc
}

func allBackends(t *testing.T) map[string]Backend {
	t.Helper()

	file := NewFileBackend()
	require.NoError(t, file.Initialize(filepath.Join(t.TempDir(), "recovery.json"), false))

	badgerBackend, cleanup := setupTestBadgerBackend(t)
	t.Cleanup(cleanup)

	mem := NewMemoryBackend()
	require.NoError(t, mem.Initialize("", false))

	return map[string]Backend{
		"File":   file,
		"Badger": badgerBackend,
		"Memory": mem,
	}
}

func TestBackends_Snapshot(t *testing.T) {
	t.Parallel()

	for name, backend := range allBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			empty, err := backend.ReadSnapshot(ctx)
			require.NoError(t, err)
			assert.Nil(t, empty)

			want := sampleDoc()
			require.NoError(t, backend.WriteSnapshot(ctx, want))

			got, err := backend.ReadSnapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			smaller := document.New()
			smaller.Nodes = append(smaller.Nodes, want.Nodes[1])
			require.NoError(t, backend.WriteSnapshot(ctx, smaller))

			got, err = backend.ReadSnapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, smaller, got)

			require.NoError(t, backend.Clear(ctx))
			got, err = backend.ReadSnapshot(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestMemoryBackend_FailWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.WriteSnapshot(ctx, sampleDoc()))

	boom := errors.New("disk full")
	backend.FailWrites(boom)
	assert.ErrorIs(t, backend.WriteSnapshot(ctx, document.New()), boom)

	got, err := backend.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)
	assert.Equal(t, 1, backend.Writes())

	backend.FailWrites(nil)
	assert.NoError(t, backend.WriteSnapshot(ctx, document.New()))
	assert.Equal(t, 2, backend.Writes())
}

func TestMemoryBackend_ReadOnly(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	require.NoError(t, backend.Initialize("", true))
	assert.ErrorIs(t, backend.WriteSnapshot(context.Background(), sampleDoc()), ErrReadOnly)
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = backend.WriteSnapshot(ctx, sampleDoc())
		}()
		go func() {
			defer wg.Done()
			_, _ = backend.ReadSnapshot(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, backend.Writes())
}

func TestFileBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("EmptyPath", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, NewFileBackend().Initialize("", false))
	})

	t.Run("Directory", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, NewFileBackend().Initialize(t.TempDir(), false))
	})

	t.Run("ReadOnly", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "recovery.json")
		backend := NewFileBackend()
		require.NoError(t, backend.Initialize(path, true))

		assert.ErrorIs(t, backend.WriteSnapshot(t.Context(), sampleDoc()), ErrReadOnly)
		_, err := os.Stat(path)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("Kinds", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		b, err := Open(BackendFile, filepath.Join(dir, "r.json"), false)
		require.NoError(t, err)
		assert.IsType(t, &FileBackend{}, b)

		b, err = Open(BackendMemory, "", false)
		require.NoError(t, err)
		assert.IsType(t, &MemoryBackend{}, b)

		b, err = Open(BackendBadger, filepath.Join(dir, "db"), false)
		require.NoError(t, err)
		assert.IsType(t, &BadgerBackend{}, b)
		assert.NoError(t, b.Close())
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		_, err := Open("sqlite", "x", false)
		assert.Error(t, err)
	})
}
