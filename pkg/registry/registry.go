// Package registry holds the engine's named registries: personas and
// verification properties. Each engine owns its instances; the Default
// variables exist for tests and single-run tools and can be cleared.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound  = errors.New("registry: entry not found")
	ErrDuplicate = errors.New("registry: entry already registered")
	ErrEmptyName = errors.New("registry: empty name")
)

// Registry is a mutex-guarded name -> value map. List operations return
// sorted snapshots.
type Registry[T any] struct {
	mu      sync.RWMutex
	kind    string
	entries map[string]T
}

// New creates an empty registry. kind names the registry in errors.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, entries: make(map[string]T)}
}

// Init replaces the contents with entries.
func (r *Registry[T]) Init(entries map[string]T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]T, len(entries))
	for k, v := range entries {
		r.entries[k] = v
	}
}

// Clear removes every entry.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]T)
}

// Register adds name. Names are unique.
func (r *Registry[T]) Register(name string, v T) error {
	if name == "" {
		return ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrDuplicate)
	}
	r.entries[name] = v
	return nil
}

// Get returns the entry for name.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	return v, nil
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// List returns the entries ordered by name.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]T, 0, len(names))
	for _, n := range names {
		out = append(out, r.entries[n])
	}
	return out
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
