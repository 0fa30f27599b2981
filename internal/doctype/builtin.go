package doctype

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/citescrape/internal/arxiv"
	"github.com/matsen/citescrape/internal/fetch"
	"github.com/matsen/citescrape/internal/identifier"
	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/pdf"
	"github.com/matsen/citescrape/internal/sanitize"
)

var (
	errNoDownloader = errors.New("no downloader configured")
	errNoSource     = errors.New("no source configured")
)

// Arxiv handles arXiv preprints.
type Arxiv struct{}

func (Arxiv) Kind() identifier.Kind { return identifier.KindArxiv }

func (Arxiv) Validate(raw string) (string, bool) { return identifier.ValidateArxiv(raw) }

func (Arxiv) Download(ctx context.Context, svc *Services, id string) ([]string, error) {
	if svc.URL == nil {
		return nil, errNoDownloader
	}
	data, final, err := svc.URL.DownloadByURL(ctx, arxiv.PDFURL(id))
	if err != nil {
		return nil, err
	}
	if !pdf.IsPDF(data) {
		return nil, fmt.Errorf("%s: %w", final, pdf.ErrNotPDF)
	}
	path, err := fetch.SaveExclusive(svc.DownloadDir, sanitize.Filename(id, svc.Filenames), data)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// Scrape uses the arXiv record as primary. When arXiv knows the published
// DOI, the DOI sources fill in what arXiv lacks.
func (Arxiv) Scrape(ctx context.Context, svc *Services, id string, current metadata.Record) metadata.Record {
	var rec metadata.Record
	if svc.Arxiv == nil {
		logFailure(svc, &SourceLookupError{Source: "arxiv", ID: id, Err: errNoSource})
	} else if r, err := svc.Arxiv.Fetch(ctx, id); err != nil {
		logFailure(svc, &SourceLookupError{Source: "arxiv", ID: id, Err: err})
	} else {
		rec = r
	}

	if doi := rec.String("doi"); doi != "" {
		return metadata.Merge(rec, consolidateDOI(ctx, svc, doi))
	}
	return rec
}

// DOI handles Digital Object Identifiers.
type DOI struct{}

func (DOI) Kind() identifier.Kind { return identifier.KindDOI }

func (DOI) Validate(raw string) (string, bool) { return identifier.ValidateDOI(raw) }

func (DOI) Download(ctx context.Context, svc *Services, id string) ([]string, error) {
	if svc.DOI == nil {
		return nil, errNoDownloader
	}
	return svc.DOI.DownloadByDOI(ctx, id, svc.DownloadDir)
}

func (DOI) Scrape(ctx context.Context, svc *Services, id string, _ metadata.Record) metadata.Record {
	return consolidateDOI(ctx, svc, id)
}

// URL handles any web address not claimed by another type.
type URL struct{}

func (URL) Kind() identifier.Kind { return identifier.KindURL }

func (URL) Validate(raw string) (string, bool) { return identifier.ValidateURL(raw) }

// Download saves the response under the PDF's title, or a timestamped name
// when the title cannot be read.
func (URL) Download(ctx context.Context, svc *Services, id string) ([]string, error) {
	if svc.URL == nil {
		return nil, errNoDownloader
	}
	data, final, err := svc.URL.DownloadByURL(ctx, id)
	if err != nil {
		return nil, err
	}

	var title string
	if t, err := pdf.TitleFromBytes(data); err == nil {
		title = t
	} else {
		svc.Logger.Debug().Err(err).Str("url", final).Msg("no title in download")
	}

	name := sanitize.TitleFilename(title, svc.now(), svc.Filenames)
	path, err := fetch.SaveExclusive(svc.DownloadDir, name, data)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// Scrape records the URL over what is known, and looks the document up by
// DOI when the current metadata carries one.
func (URL) Scrape(ctx context.Context, svc *Services, id string, current metadata.Record) metadata.Record {
	rec := metadata.Merge(metadata.Record{"url": id}, current)
	if doi := current.String("doi"); doi != "" {
		return metadata.Merge(rec, consolidateDOI(ctx, svc, doi))
	}
	return rec
}

// consolidateDOI merges every configured source's record for doi, earlier
// sources winning. A failing source counts as having no record.
func consolidateDOI(ctx context.Context, svc *Services, doi string) metadata.Record {
	if len(svc.Sources) == 0 {
		logFailure(svc, &SourceLookupError{Source: "doi", ID: doi, Err: errNoSource})
		return nil
	}

	records := make([]metadata.Record, 0, len(svc.Sources))
	for _, src := range svc.Sources {
		rec, err := src.Source.Lookup(ctx, doi)
		if err != nil {
			logFailure(svc, &SourceLookupError{Source: src.Name, ID: doi, Err: err})
			records = append(records, nil)
			continue
		}
		records = append(records, rec)
	}
	return metadata.Consolidate(records...)
}

func logFailure(svc *Services, err *SourceLookupError) {
	svc.Logger.Warn().
		Str("source", err.Source).
		Str("id", err.ID).
		Err(err.Err).
		Msg("metadata lookup failed")
}
