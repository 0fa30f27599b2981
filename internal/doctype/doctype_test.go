package doctype

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/matsen/citescrape/internal/identifier"
	"github.com/matsen/citescrape/internal/metadata"
)

var fakePDF = []byte("%PDF-1.4\nbody\n%%EOF\n")

type fakeURL struct {
	data  []byte
	err   error
	calls []string
}

func (f *fakeURL) DownloadByURL(_ context.Context, u string) ([]byte, string, error) {
	f.calls = append(f.calls, u)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, u, nil
}

type fakeDOI struct {
	paths []string
	dir   string
}

func (f *fakeDOI) DownloadByDOI(_ context.Context, doi, dir string) ([]string, error) {
	f.dir = dir
	return f.paths, nil
}

type fakeArxiv struct {
	rec metadata.Record
	err error
}

func (f fakeArxiv) Fetch(context.Context, string) (metadata.Record, error) {
	return f.rec, f.err
}

func staticSource(rec metadata.Record, err error) MetadataSource {
	return SourceFunc(func(context.Context, string) (metadata.Record, error) {
		return rec, err
	})
}

func testServices(t *testing.T) (*Services, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	return &Services{
		DownloadDir: t.TempDir(),
		Logger:      zerolog.New(&logs),
		Now:         func() time.Time { return time.Date(2021, 5, 31, 17, 10, 44, 0, time.UTC) },
	}, &logs
}

func TestResolve(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		raw      string
		wantKind identifier.Kind
		wantID   string
	}{
		{"https://arxiv.org/abs/2106.01234", identifier.KindArxiv, "2106.01234"},
		{"arXiv:1501.00001v3", identifier.KindArxiv, "1501.00001v3"},
		{"https://doi.org/10.1093/sysbio/syab006", identifier.KindDOI, "10.1093/sysbio/syab006"},
		{"10.1093/sysbio/syab006", identifier.KindDOI, "10.1093/sysbio/syab006"},
		{"https://example.org/paper.pdf", identifier.KindURL, "https://example.org/paper.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, typ, err := reg.Resolve(tt.raw)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.raw, err)
			}
			if id.Kind != tt.wantKind || typ.Kind() != tt.wantKind {
				t.Errorf("kind = %v/%v, want %v", id.Kind, typ.Kind(), tt.wantKind)
			}
			if id.Value != tt.wantID {
				t.Errorf("id = %q, want %q", id.Value, tt.wantID)
			}
		})
	}
}

func TestResolve_NoMatch(t *testing.T) {
	_, typ, err := DefaultRegistry().Resolve("not an identifier at all")
	if !errors.Is(err, ErrNoMatchingType) {
		t.Errorf("error = %v, want ErrNoMatchingType", err)
	}
	if typ != nil {
		t.Error("type should be nil on failure")
	}
}

type isbnType struct{ URL }

func (isbnType) Kind() identifier.Kind { return identifier.KindUnknown }
func (isbnType) Validate(raw string) (string, bool) {
	return raw, raw == "isbn:978-3-16-148410-0"
}

func TestRegister(t *testing.T) {
	reg := NewRegistry(DOI{})
	if _, _, err := reg.Resolve("isbn:978-3-16-148410-0"); err == nil {
		t.Fatal("expected no match before registering")
	}

	reg.Register(isbnType{})
	_, typ, err := reg.Resolve("isbn:978-3-16-148410-0")
	if err != nil {
		t.Fatalf("Resolve after Register: %v", err)
	}
	if _, ok := typ.(isbnType); !ok {
		t.Errorf("resolved %T", typ)
	}
	if len(reg.Types()) != 2 {
		t.Errorf("Types() = %d entries", len(reg.Types()))
	}
}

func TestLookup(t *testing.T) {
	reg := DefaultRegistry()
	typ, ok := reg.Lookup(identifier.KindDOI)
	if !ok || typ.Kind() != identifier.KindDOI {
		t.Errorf("Lookup(doi) = %v, %v", typ, ok)
	}
	if _, ok := reg.Lookup(identifier.KindUnknown); ok {
		t.Error("Lookup(unknown) should fail")
	}
}

func TestDOIScrape_PriorityAndFailures(t *testing.T) {
	svc, logs := testServices(t)
	svc.Sources = []NamedSource{
		{Name: "crossref-normalized", Source: staticSource(metadata.Record{"title": "Normalized", "year": 2021}, nil)},
		{Name: "broken", Source: staticSource(nil, errors.New("timeout"))},
		{Name: "crossref", Source: staticSource(metadata.Record{"Title": "Raw", "publisher": "OUP"}, nil)},
	}

	rec := DOI{}.Scrape(context.Background(), svc, "10.1234/x", nil)

	if rec["title"] != "Normalized" {
		t.Errorf("title = %v, want first source's value", rec["title"])
	}
	if _, ok := rec["Title"]; ok {
		t.Error("case-variant key from lower-priority source should be dropped")
	}
	if rec["publisher"] != "OUP" {
		t.Errorf("publisher = %v", rec["publisher"])
	}
	if !bytes.Contains(logs.Bytes(), []byte(`"source":"broken"`)) {
		t.Errorf("failing source not logged: %s", logs.String())
	}
}

func TestDOIScrape_AllFail(t *testing.T) {
	svc, _ := testServices(t)
	svc.Sources = []NamedSource{{Name: "a", Source: staticSource(nil, errors.New("down"))}}

	if rec := (DOI{}).Scrape(context.Background(), svc, "10.1234/x", nil); rec != nil {
		t.Errorf("Scrape() = %v, want nil", rec)
	}
}

func TestArxivScrape_MergesDOI(t *testing.T) {
	svc, _ := testServices(t)
	svc.Arxiv = fakeArxiv{rec: metadata.Record{"title": "Preprint title", "doi": "10.1234/pub"}}
	svc.Sources = []NamedSource{{Name: "crossref", Source: staticSource(metadata.Record{"title": "Published title", "journal": "J"}, nil)}}

	rec := Arxiv{}.Scrape(context.Background(), svc, "2106.01234", nil)
	if rec["title"] != "Preprint title" {
		t.Errorf("title = %v, arXiv record should be primary", rec["title"])
	}
	if rec["journal"] != "J" {
		t.Errorf("journal = %v, DOI record should fill gaps", rec["journal"])
	}
}

func TestArxivScrape_Failure(t *testing.T) {
	svc, logs := testServices(t)
	svc.Arxiv = fakeArxiv{err: errors.New("503")}

	if rec := (Arxiv{}).Scrape(context.Background(), svc, "2106.01234", nil); rec != nil {
		t.Errorf("Scrape() = %v, want nil", rec)
	}
	if logs.Len() == 0 {
		t.Error("failure should be logged")
	}
}

func TestURLScrape(t *testing.T) {
	svc, _ := testServices(t)
	svc.Sources = []NamedSource{{Name: "crossref", Source: staticSource(metadata.Record{"title": "T", "url": "https://doi.org/x"}, nil)}}

	rec := URL{}.Scrape(context.Background(), svc, "https://example.org/p", metadata.Record{"doi": "10.1234/x", "url": "old"})
	if rec["url"] != "https://example.org/p" {
		t.Errorf("url = %v", rec["url"])
	}
	if rec["title"] != "T" || rec["doi"] != "10.1234/x" {
		t.Errorf("rec = %v", rec)
	}

	plain := URL{}.Scrape(context.Background(), svc, "https://example.org/p", nil)
	if len(plain) != 1 || plain["url"] != "https://example.org/p" {
		t.Errorf("plain = %v", plain)
	}
}

func TestArxivDownload(t *testing.T) {
	svc, _ := testServices(t)
	dl := &fakeURL{data: fakePDF}
	svc.URL = dl

	paths, err := Arxiv{}.Download(context.Background(), svc, "hep-th/9901001")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(dl.calls) != 1 || dl.calls[0] != "https://arxiv.org/pdf/hep-th/9901001" {
		t.Errorf("requested %v", dl.calls)
	}
	if filepath.Base(paths[0]) != "hep-th_9901001.pdf" {
		t.Errorf("file = %q", filepath.Base(paths[0]))
	}

	// a second download must not overwrite the first
	if _, err := (Arxiv{}).Download(context.Background(), svc, "hep-th/9901001"); !errors.Is(err, os.ErrExist) {
		t.Errorf("second download error = %v, want os.ErrExist", err)
	}
}

func TestArxivDownload_NotPDF(t *testing.T) {
	svc, _ := testServices(t)
	svc.URL = &fakeURL{data: []byte("<html>captcha</html>")}

	if _, err := (Arxiv{}).Download(context.Background(), svc, "2106.01234"); err == nil {
		t.Error("expected error for non-PDF response")
	}
}

func TestURLDownload_FallbackName(t *testing.T) {
	svc, _ := testServices(t)
	svc.URL = &fakeURL{data: fakePDF}

	paths, err := URL{}.Download(context.Background(), svc, "https://example.org/x.pdf")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(paths[0]) != "paper_05_31_2021_17_10_44.pdf" {
		t.Errorf("file = %q", filepath.Base(paths[0]))
	}
}

func TestURLDownload_Error(t *testing.T) {
	svc, _ := testServices(t)
	svc.URL = &fakeURL{err: errors.New("connection refused")}

	if _, err := (URL{}).Download(context.Background(), svc, "https://example.org/x.pdf"); err == nil {
		t.Error("expected error")
	}
	entries, _ := os.ReadDir(svc.DownloadDir)
	if len(entries) != 0 {
		t.Error("nothing should be written on failure")
	}
}

func TestDOIDownload(t *testing.T) {
	svc, _ := testServices(t)
	dl := &fakeDOI{paths: []string{"/tmp/a.pdf"}}
	svc.DOI = dl

	paths, err := DOI{}.Download(context.Background(), svc, "10.1234/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || dl.dir != svc.DownloadDir {
		t.Errorf("paths = %v, dir = %q", paths, dl.dir)
	}
}

func TestDownload_NoCollaborator(t *testing.T) {
	svc, _ := testServices(t)
	ctx := context.Background()
	for _, typ := range []Type{Arxiv{}, DOI{}, URL{}} {
		if _, err := typ.Download(ctx, svc, "x"); err == nil {
			t.Errorf("%T.Download without downloader should fail", typ)
		}
	}
}

func TestSourceLookupError(t *testing.T) {
	inner := errors.New("boom")
	err := &SourceLookupError{Source: "crossref", ID: "10.1/x", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("SourceLookupError should unwrap")
	}
}
