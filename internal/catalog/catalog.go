// Package catalog holds the named schemas a job can refer to. Schemas are
// declared in Go with the nest builders and registered from init functions.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"rownest/internal/nest"
)

var (
	mu      sync.RWMutex
	schemas = map[string][]nest.Property{}
)

// Register adds a schema under name.
//
// Panics if name is empty, props is empty or name is already registered.
// Registration happens at init time, so a bad catalog fails at startup.
func Register(name string, props []nest.Property) {
	mu.Lock()
	defer mu.Unlock()

	if name == "" {
		panic("catalog: Register called with empty name")
	}
	if len(props) == 0 {
		panic(fmt.Sprintf("catalog: schema %q has no properties", name))
	}
	if _, exists := schemas[name]; exists {
		panic(fmt.Sprintf("catalog: schema already registered for name=%q", name))
	}
	schemas[name] = props
}

// Lookup returns the schema registered under name.
func Lookup(name string) ([]nest.Property, bool) {
	mu.RLock()
	defer mu.RUnlock()
	props, ok := schemas[name]
	return props, ok
}

// Names returns the registered schema names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(schemas))
	for n := range schemas {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
