package doctype

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/sanitize"
)

// MetadataSource looks up a record by DOI.
type MetadataSource interface {
	Lookup(ctx context.Context, doi string) (metadata.Record, error)
}

// SourceFunc adapts a function to MetadataSource.
type SourceFunc func(ctx context.Context, doi string) (metadata.Record, error)

func (f SourceFunc) Lookup(ctx context.Context, doi string) (metadata.Record, error) {
	return f(ctx, doi)
}

// NamedSource pairs a source with the name used in logs and config.
type NamedSource struct {
	Name   string
	Source MetadataSource
}

// ArxivFetcher looks up a preprint record by arXiv identifier.
type ArxivFetcher interface {
	Fetch(ctx context.Context, id string) (metadata.Record, error)
}

// DOIDownloader saves the files for a DOI into dir and returns their paths.
type DOIDownloader interface {
	DownloadByDOI(ctx context.Context, doi, dir string) ([]string, error)
}

// URLDownloader fetches a URL, returning the body and the final URL.
type URLDownloader interface {
	DownloadByURL(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Services holds the collaborators document types use to download and
// scrape. Nil collaborators make the corresponding step a no-op failure.
type Services struct {
	// Sources are consulted in order for DOI metadata; earlier sources win
	// on conflicting keys.
	Sources []NamedSource

	Arxiv ArxivFetcher
	DOI   DOIDownloader
	URL   URLDownloader

	DownloadDir string
	Filenames   sanitize.Options

	Logger zerolog.Logger

	// Now is the clock used for fallback file names.
	Now func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
