// Package document drives a single requested document through the
// download, enrich and commit pipeline.
//
// A Document is not safe for concurrent use. Separate documents share
// nothing but their collaborators, so they may be processed in parallel.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/citescrape/internal/doctype"
	"github.com/matsen/citescrape/internal/identifier"
	"github.com/matsen/citescrape/internal/library"
	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/tags"
)

var (
	// ErrDownload wraps any failure of the download step.
	ErrDownload = errors.New("download failed")

	// ErrNotReady is returned by Commit before the document has both files
	// and enriched metadata.
	ErrNotReady = errors.New("document not ready to commit")

	// ErrCommitted is returned by any transition after Commit succeeded.
	ErrCommitted = errors.New("document already committed")
)

// State is the furthest pipeline stage a document has reached.
type State int

const (
	Created State = iota
	Downloaded
	Enriched
	Committed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Downloaded:
		return "downloaded"
	case Enriched:
		return "enriched"
	case Committed:
		return "committed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Library is the catalog documents are committed to.
type Library interface {
	Add(ctx context.Context, files []string, rec metadata.Record, opts library.AddOptions) (string, error)
}

// CommitOptions are passed through to the library. Overrides take
// precedence over every other metadata key, tags included.
type CommitOptions struct {
	Overrides metadata.Record
	Add       library.AddOptions
}

// Document is one requested document and what is known about it.
type Document struct {
	id  identifier.Identifier
	typ doctype.Type
	svc *doctype.Services

	meta  metadata.Record
	tags  tags.Set
	files []string

	downloaded bool
	enriched   bool
	committed  bool
	location   string
}

// Option configures a new Document.
type Option func(*Document) error

// WithTags attaches tags at construction. Items are anything tags.From accepts.
func WithTags(items ...any) Option {
	return func(d *Document) error {
		set, err := tags.From(items...)
		if err != nil {
			return err
		}
		d.tags = d.tags.Union(set)
		return nil
	}
}

// WithMetadata seeds the document's metadata.
func WithMetadata(rec metadata.Record) Option {
	return func(d *Document) error {
		d.meta = metadata.Merge(rec, d.meta)
		return nil
	}
}

// New resolves raw against reg. It fails, returning no document, when no
// registered type accepts raw.
func New(raw string, reg *doctype.Registry, svc *doctype.Services, opts ...Option) (*Document, error) {
	id, typ, err := reg.Resolve(raw)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		svc = &doctype.Services{}
	}

	d := &Document{id: id, typ: typ, svc: svc, tags: tags.New()}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Document) Identifier() identifier.Identifier { return d.id }

func (d *Document) Type() doctype.Type { return d.typ }

// Metadata returns a copy of the current metadata.
func (d *Document) Metadata() metadata.Record { return d.meta.Clone() }

func (d *Document) Tags() tags.Set { return d.tags }

// Files returns a copy of the downloaded file paths.
func (d *Document) Files() []string { return append([]string(nil), d.files...) }

// Location is where the library stored the document, once committed.
func (d *Document) Location() string { return d.location }

// State reports the furthest stage reached.
func (d *Document) State() State {
	switch {
	case d.committed:
		return Committed
	case d.enriched:
		return Enriched
	case d.downloaded:
		return Downloaded
	default:
		return Created
	}
}

// SetTags replaces the tag set.
func (d *Document) SetTags(set tags.Set) error {
	if d.committed {
		return ErrCommitted
	}
	d.tags = set
	return nil
}

// AddTags adds tags; items are anything tags.From accepts.
func (d *Document) AddTags(items ...any) error {
	if d.committed {
		return ErrCommitted
	}
	set, err := tags.From(items...)
	if err != nil {
		return err
	}
	d.tags = d.tags.Union(set)
	return nil
}

// RemoveTags removes tags; items are anything tags.From accepts.
func (d *Document) RemoveTags(items ...any) error {
	if d.committed {
		return ErrCommitted
	}
	set, err := tags.From(items...)
	if err != nil {
		return err
	}
	d.tags = d.tags.Difference(set)
	return nil
}

// Update merges caller-supplied metadata over the current metadata.
func (d *Document) Update(rec metadata.Record) error {
	if d.committed {
		return ErrCommitted
	}
	d.meta = metadata.Merge(rec, d.meta)
	return nil
}

// Download fetches the document's files. On failure the files are left
// as they were and the error wraps ErrDownload.
func (d *Document) Download(ctx context.Context) error {
	if d.committed {
		return ErrCommitted
	}
	files, err := d.typ.Download(ctx, d.svc, d.id.Value)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDownload, d.id.Kind, d.id.Value, err)
	}
	d.files = files
	d.downloaded = true
	d.svc.Logger.Info().Str("id", d.id.Value).Strs("files", files).Msg("downloaded")
	return nil
}

// Enrich scrapes metadata for the document and merges it in. Scraped
// values win over existing ones; existing keys the sources lack are kept.
// Source failures are logged by the scrape and never fail Enrich.
func (d *Document) Enrich(ctx context.Context) error {
	if d.committed {
		return ErrCommitted
	}
	scraped := d.typ.Scrape(ctx, d.svc, d.id.Value, d.meta.Clone())
	d.meta = metadata.Merge(scraped, d.meta)
	d.enriched = true
	return nil
}

// CommitRecord is the record Commit hands to the library.
func (d *Document) CommitRecord(overrides metadata.Record) metadata.Record {
	rec := d.meta.With("tags", d.tags.String())
	return metadata.Merge(overrides, rec)
}

// Commit writes the document to lib. It needs files and enriched metadata.
func (d *Document) Commit(ctx context.Context, lib Library, opts CommitOptions) error {
	if d.committed {
		return ErrCommitted
	}
	if !d.downloaded || !d.enriched {
		return fmt.Errorf("%w: state %s", ErrNotReady, d.State())
	}
	location, err := lib.Add(ctx, d.Files(), d.CommitRecord(opts.Overrides), opts.Add)
	if err != nil {
		return fmt.Errorf("committing %s: %w", d.id.Value, err)
	}
	d.location = location
	d.committed = true
	return nil
}

// Run performs download, enrich and commit in order, stopping at the
// first failure.
func (d *Document) Run(ctx context.Context, lib Library, opts CommitOptions) error {
	if err := d.Download(ctx); err != nil {
		return err
	}
	if err := d.Enrich(ctx); err != nil {
		return err
	}
	return d.Commit(ctx, lib, opts)
}
