// Package source keeps the mapping from feed kinds to the strategies
// that poll them.
package source

import (
	"fmt"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

// Registry keeps a mapping from feed kinds to their source implementations.
type Registry struct {
	sources map[domain.FeedKind]ports.EntrySource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[domain.FeedKind]ports.EntrySource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src ports.EntrySource) {
	if r.sources == nil {
		r.sources = map[domain.FeedKind]ports.EntrySource{}
	}
	r.sources[src.Kind()] = src
}

// Resolve returns a source by feed kind or an error if it is absent.
func (r *Registry) Resolve(kind domain.FeedKind) (ports.EntrySource, error) {
	if src, ok := r.sources[kind]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("no source registered for feed kind %q", kind)
}
