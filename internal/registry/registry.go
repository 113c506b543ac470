// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the in-memory directory of every declared function: its
// specification, its best currently-known implementation, and a memoized
// "needs generation" decision.
//
// Why memoize NeedsGeneration?
//
// The decision is consulted on every orchestration pass and, indirectly, on
// every dispatch. It is cheap to compute once but pointless to recompute for
// the same full name until the declaration changes, at which point the whole
// namespace is cleared anyway. The memo is therefore keyed by full name and
// lives exactly as long as the registry entry itself.
package registry

import (
	"strings"
	"sync"

	"github.com/vk/parablock/internal/model"
)

// Registry is the directory of declared functions for one application
// instance. All methods are safe for concurrent use; the reload watcher may
// clear a namespace while a dispatch is in flight.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]*model.FunctionSpec
	order    []string
	impls    map[string]string
	needsGen map[string]bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		specs:    make(map[string]*model.FunctionSpec),
		impls:    make(map[string]string),
		needsGen: make(map[string]bool),
	}
}

// Register adds a function spec to the registry. Re-declaring an existing full
// name overwrites the prior spec in place; this is what a reload relies on.
func (r *Registry) Register(spec *model.FunctionSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fullName := spec.FullName()
	if _, exists := r.specs[fullName]; !exists {
		r.order = append(r.order, fullName)
	}
	r.specs[fullName] = spec
	delete(r.needsGen, fullName)
}

// All returns every registered spec in declaration order.
func (r *Registry) All() []*model.FunctionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.FunctionSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// InNamespace returns the specs declared in exactly the given namespace, in
// declaration order.
func (r *Registry) InNamespace(namespace string) []*model.FunctionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.FunctionSpec
	for _, name := range r.order {
		if spec := r.specs[name]; spec.Namespace == namespace {
			out = append(out, spec)
		}
	}
	return out
}

// Get returns the spec registered under the full name, or nil.
func (r *Registry) Get(fullName string) *model.FunctionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[fullName]
}

// StoreImplementation records the best-known implementation text for a full
// name. Implementations may arrive for names that are not (yet) registered:
// the cache pushes every persisted record here on load, including records for
// functions whose declarations have since been removed.
func (r *Registry) StoreImplementation(fullName, implementation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[fullName] = implementation
}

// Implementation returns the stored implementation text for a full name.
func (r *Registry) Implementation(fullName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.impls[fullName]
	return impl, ok
}

// NeedsGeneration reports whether the function must be (re)generated, given
// the hash found in the cache ("" when nothing is cached). The decision is
// memoized per full name until the namespace is cleared.
//
// Unregistered and frozen functions never generate. A missing cached hash
// always generates. Otherwise the cached hash is compared to the current
// specification hash.
func (r *Registry) NeedsGeneration(fullName, cachedHash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if decision, ok := r.needsGen[fullName]; ok {
		return decision
	}

	spec, registered := r.specs[fullName]
	var decision bool
	switch {
	case !registered:
		decision = false
	case spec.Frozen:
		decision = false
	case cachedHash == "":
		decision = true
	default:
		decision = spec.Hash() != cachedHash
	}

	r.needsGen[fullName] = decision
	return decision
}

// MarkGenerated records that the function now has a verified, cached
// implementation, so a repeated pass in the same process short-circuits to
// the cache instead of regenerating.
func (r *Registry) MarkGenerated(fullName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.needsGen[fullName] = false
}

// ClearNamespace removes every entry, implementation, and memoized decision
// whose full name is prefixed by the namespace. Called before a reload
// re-declares the namespace, so stale functions do not accumulate.
func (r *Registry) ClearNamespace(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := namespace + "."
	matches := func(fullName string) bool {
		return strings.HasPrefix(fullName, prefix)
	}

	kept := r.order[:0]
	for _, name := range r.order {
		if matches(name) {
			delete(r.specs, name)
		} else {
			kept = append(kept, name)
		}
	}
	r.order = kept

	for name := range r.impls {
		if matches(name) {
			delete(r.impls, name)
		}
	}
	for name := range r.needsGen {
		if matches(name) {
			delete(r.needsGen, name)
		}
	}
}
