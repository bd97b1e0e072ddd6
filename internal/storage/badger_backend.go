package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang/snappy"

	"github.com/Benny93/rigweave/internal/document"
)

// Key prefixes for different data types
const (
	prefixNode = "n:" // node records
	prefixConn = "c:" // connection records
	keyVersion = "m:version"
)

// BadgerBackend is a BadgerDB-backed snapshot store.
//
// Records are kept as snappy-compressed JSON under sequence keys so that
// reading them back preserves document order.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	readOnly    bool
	mu          sync.RWMutex
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	b.readOnly = readOnly
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// WriteSnapshot replaces every stored record inside one transaction.
func (b *BadgerBackend) WriteSnapshot(ctx context.Context, doc *document.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return fmt.Errorf("backend not initialized")
	}
	if b.readOnly {
		return ErrReadOnly
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := deletePrefix(txn, prefixNode); err != nil {
			return err
		}
		if err := deletePrefix(txn, prefixConn); err != nil {
			return err
		}

		for i, rec := range doc.Nodes {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := setRecord(txn, seqKey(prefixNode, i), rec); err != nil {
				return fmt.Errorf("storing node %s: %w", rec.ID, err)
			}
		}
		for i, rec := range doc.Connections {
			if err := setRecord(txn, seqKey(prefixConn, i), rec); err != nil {
				return fmt.Errorf("storing connection %s: %w", rec.ID, err)
			}
		}
		return txn.Set([]byte(keyVersion), fmt.Appendf(nil, "%d", doc.Version))
	})
}

// ReadSnapshot implements Backend.
func (b *BadgerBackend) ReadSnapshot(ctx context.Context) (*document.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	var doc *document.Document
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyVersion))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		doc = document.New()
		if err := item.Value(func(val []byte) error {
			_, err := fmt.Sscanf(string(val), "%d", &doc.Version)
			return err
		}); err != nil {
			return fmt.Errorf("reading version: %w", err)
		}

		if err := eachRecord(txn, prefixNode, func(data []byte) error {
			var rec document.NodeRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			doc.Nodes = append(doc.Nodes, rec)
			return nil
		}); err != nil {
			return fmt.Errorf("reading nodes: %w", err)
		}

		return eachRecord(txn, prefixConn, func(data []byte) error {
			var rec document.ConnectionRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			doc.Connections = append(doc.Connections, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Clear implements Backend.
func (b *BadgerBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return fmt.Errorf("backend not initialized")
	}
	if b.readOnly {
		return ErrReadOnly
	}
	return b.db.DropAll()
}

func seqKey(prefix string, i int) []byte {
	return fmt.Appendf(nil, "%s%08d", prefix, i)
}

func setRecord(txn *badger.Txn, key []byte, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(key, snappy.Encode(nil, data))
}

func eachRecord(txn *badger.Txn, prefix string, fn func([]byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			data, err := snappy.Decode(nil, val)
			if err != nil {
				return err
			}
			return fn(data)
		}); err != nil {
			return err
		}
	}
	return nil
}

func deletePrefix(txn *badger.Txn, prefix string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
