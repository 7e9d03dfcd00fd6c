// Package storage persists hydrated entries as keyed JSON documents.
//
// Backends live in subpackages and register themselves from init():
//
//	import _ "rownest/internal/storage/sqlite"
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and opens a document backend.
type Config struct {
	Kind string
	DSN  string
}

// DocumentRepository stores documents in a single key/hash/body table.
//
// Every backend implements the same contract:
//   - EnsureTable is idempotent (create-if-not-exists).
//   - UpsertDocuments inserts new keys and rewrites existing keys only when the
//     stored hash differs. The returned count covers inserted and rewritten
//     documents; unchanged documents do not count.
//   - Close is called once.
type DocumentRepository interface {
	Close()
	EnsureTable(ctx context.Context, table string) error
	UpsertDocuments(ctx context.Context, table string, docs []Document) (int64, error)
}

// Factory opens a backend for cfg.
type Factory func(ctx context.Context, cfg Config) (DocumentRepository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (DocumentRepository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
