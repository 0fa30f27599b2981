// Package doctype maps raw identifier strings to document types. Each type
// knows how to validate its identifier, download the document's files, and
// scrape its metadata.
package doctype

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matsen/citescrape/internal/identifier"
	"github.com/matsen/citescrape/internal/metadata"
)

// ErrNoMatchingType is returned when no registered type accepts the input.
var ErrNoMatchingType = errors.New("no matching document type")

// Type is one identifier scheme with its download and scrape behavior.
type Type interface {
	Kind() identifier.Kind
	// Validate normalizes raw or reports that it does not belong to this type.
	Validate(raw string) (string, bool)
	// Download saves the document's files and returns their paths.
	Download(ctx context.Context, svc *Services, id string) ([]string, error)
	// Scrape returns metadata for id given what is already known about the
	// document. Source failures are logged and never returned.
	Scrape(ctx context.Context, svc *Services, id string, current metadata.Record) metadata.Record
}

// Registry holds document types in priority order.
type Registry struct {
	mu    sync.RWMutex
	types []Type
}

// NewRegistry creates a registry holding types in the given order.
func NewRegistry(types ...Type) *Registry {
	return &Registry{types: append([]Type(nil), types...)}
}

// DefaultRegistry holds the built-in types: arXiv, then DOI, then URL.
// An arXiv abstract URL therefore resolves as arXiv, not as a plain URL.
func DefaultRegistry() *Registry {
	return NewRegistry(Arxiv{}, DOI{}, URL{})
}

// Register appends t at the lowest priority.
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, t)
}

// Types returns the registered types in priority order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Type(nil), r.types...)
}

// Resolve returns the normalized identifier and the first type whose
// validator accepts raw.
func (r *Registry) Resolve(raw string) (identifier.Identifier, Type, error) {
	for _, t := range r.Types() {
		if id, ok := t.Validate(raw); ok {
			return identifier.Identifier{Kind: t.Kind(), Value: id}, t, nil
		}
	}
	return identifier.Identifier{}, nil, fmt.Errorf("%w: %q", ErrNoMatchingType, raw)
}

// Lookup returns the registered type for kind.
func (r *Registry) Lookup(kind identifier.Kind) (Type, bool) {
	for _, t := range r.Types() {
		if t.Kind() == kind {
			return t, true
		}
	}
	return nil, false
}

// SourceLookupError records a metadata source that failed during a scrape.
// Scrape never returns it; it is what gets logged.
type SourceLookupError struct {
	Source string
	ID     string
	Err    error
}

func (e *SourceLookupError) Error() string {
	return fmt.Sprintf("%s lookup for %s failed: %v", e.Source, e.ID, e.Err)
}

func (e *SourceLookupError) Unwrap() error {
	return e.Err
}
