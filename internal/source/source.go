// Package source produces the flat rows fed to nest.Nest.
//
// Every source returns fully materialized rows. Database backends live in
// subpackages and register from init(); import rownest/internal/source/all
// to get all of them.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rownest/internal/config"
	"rownest/internal/nest"
)

// Source yields the rows of one job.
type Source interface {
	Rows(ctx context.Context) ([]nest.Row, error)
	Close() error
}

// Factory opens a source for cfg.
type Factory func(ctx context.Context, cfg config.Source) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a source available under kind. It panics on an empty kind,
// a nil factory or a duplicate kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("source: Register called with empty kind")
	}
	if f == nil {
		panic("source: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens the source registered for cfg.Kind.
func New(ctx context.Context, cfg config.Source) (Source, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("source: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported source.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered source kinds, sorted.
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
