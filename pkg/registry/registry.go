// Package registry maps memory scopes to their backing stores.
//
// A Registry is constructed once at startup and injected into the services;
// there is no package level instance. Several scopes may share one store, in
// which case Close releases it once.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Registry resolves the store serving a scope.
type Registry struct {
	mu     sync.RWMutex
	stores map[memory.Scope]memory.Store
}

// New builds a registry from a scope to store mapping.
func New(stores map[memory.Scope]memory.Store) (*Registry, error) {
	r := &Registry{stores: make(map[memory.Scope]memory.Store, len(stores))}
	for scope, store := range stores {
		if err := r.Register(scope, store); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register binds store to scope, replacing any previous binding.
func (r *Registry) Register(scope memory.Scope, store memory.Store) error {
	if !scope.Valid() {
		return memory.Errorf(memory.CodeInvalidParams, "unknown scope %q", scope)
	}
	if store == nil {
		return fmt.Errorf("nil store for scope %s", scope)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores[scope] = store
	return nil
}

// Store returns the store for scope. An unregistered scope yields an error
// matching memory.ErrNotConfigured.
func (r *Registry) Store(scope memory.Scope) (memory.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %s", memory.ErrNotConfigured, scope)
	}

	return store, nil
}

// Scopes returns the configured scopes in registry order.
func (r *Registry) Scopes() []memory.Scope {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]memory.Scope, 0, len(r.stores))
	for _, s := range memory.Scopes {
		if _, ok := r.stores[s]; ok {
			out = append(out, s)
		}
	}

	return out
}

// Close closes every distinct store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	closed := make(map[memory.Store]struct{}, len(r.stores))
	for _, scope := range memory.Scopes {
		store, ok := r.stores[scope]
		if !ok {
			continue
		}
		if _, done := closed[store]; done {
			continue
		}
		closed[store] = struct{}{}

		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s store: %w", scope, err))
		}
	}

	r.stores = map[memory.Scope]memory.Store{}
	return errors.Join(errs...)
}
