// Package store defines the capability contract every physical vector
// backend implements, so backends can be added without touching the
// orchestrator.
package store

import (
	"context"

	"github.com/kailas-cloud/chunkquery/internal/domain"
	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
)

// Adapter executes a similarity query against one physical backend.
type Adapter interface {
	// Backend returns the immutable descriptor of the backend.
	Backend() domain.Backend

	// Search embeds the query and returns raw scored records. Filter
	// semantics are fixed by the filter package regardless of how the
	// adapter compiles them.
	Search(ctx context.Context, query string, k int, f filter.Filter) ([]domain.Record, error)

	// Status reports connectivity, schema presence, and document count.
	// Never returns an error: failures are encoded in the status level.
	Status(ctx context.Context) domain.BackendStatus

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}

// CollectionReader lists the logical document groupings a backend knows
// about. Only SQL backends persist collections.
type CollectionReader interface {
	Collections(ctx context.Context) ([]domain.Collection, error)
}

// Registry holds the configured adapters in registration order. Built once
// at startup, read-only afterwards.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

// NewRegistry creates a registry from adapters; registration order is
// preserved for deterministic enumeration.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		id := a.Backend().ID
		if _, dup := r.adapters[id]; dup {
			continue
		}
		r.order = append(r.order, id)
		r.adapters[id] = a
	}
	return r
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// Backends returns the descriptors of all registered backends.
func (r *Registry) Backends() []domain.Backend {
	out := make([]domain.Backend, 0, len(r.order))
	for _, a := range r.All() {
		out = append(out, a.Backend())
	}
	return out
}

// FirstCollectionReader returns the first registered adapter that persists
// collections, if any. Only SQL backends do.
func (r *Registry) FirstCollectionReader() (CollectionReader, bool) {
	for _, a := range r.All() {
		if cr, ok := a.(CollectionReader); ok {
			return cr, true
		}
	}
	return nil, false
}
