package crossref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/matsen/citescrape/internal/resilience"
)

const sampleWork = `{
  "status": "ok",
  "message-type": "work",
  "message": {
    "DOI": "10.1093/sysbio/syab006",
    "title": ["Variational Bayesian phylogenetic inference"],
    "container-title": ["Systematic Biology"],
    "author": [
      {"given": "Cheng", "family": "Zhang", "affiliation": [{"name": "Fred Hutch"}]},
      {"given": "Frederick A.", "family": "Matsen", "ORCID": "http://orcid.org/0000-0003-0607-6025"},
      {"name": "Phylo Consortium"}
    ],
    "volume": "70",
    "issue": "5",
    "page": "1-20",
    "publisher": "Oxford University Press",
    "type": "journal-article",
    "URL": "http://dx.doi.org/10.1093/sysbio/syab006",
    "abstract": "<jats:p>We study things.</jats:p>",
    "published-print": {"date-parts": [[2021, 9]]},
    "issued": {"date-parts": [[2021, 2, 10]]},
    "link": [
      {"URL": "https://academic.oup.com/sysbio/article-pdf/70/5/1.pdf", "content-type": "application/pdf"},
      {"URL": "https://academic.oup.com/sysbio/article/70/5/1", "content-type": "text/html"}
    ]
  }
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Lookup(t *testing.T) {
	var gotPath, gotMailto, gotUA string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMailto = r.URL.Query().Get("mailto")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleWork))
	})

	c := NewClient(WithBaseURL(srv.URL), WithMailto("me@example.org"), WithUserAgent("test-agent"))
	rec, err := c.Lookup(context.Background(), "https://doi.org/10.1093/sysbio/syab006")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if gotPath != "/works/10.1093/sysbio/syab006" {
		t.Errorf("path = %q", gotPath)
	}
	if gotMailto != "me@example.org" {
		t.Errorf("mailto = %q", gotMailto)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if rec.String("DOI") != "10.1093/sysbio/syab006" {
		t.Errorf("DOI = %q", rec.String("DOI"))
	}
	if rec.String("title") != "Variational Bayesian phylogenetic inference" {
		t.Errorf("title = %q", rec.String("title"))
	}
}

func TestClient_WorkIsCached(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(sampleWork))
	})

	c := NewClient(WithBaseURL(srv.URL))
	ctx := context.Background()
	if _, err := c.Lookup(ctx, "10.1093/sysbio/syab006"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Normalized().Lookup(ctx, "10.1093/SYSBIO/syab006"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestClient_LookupReturnsCopy(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleWork))
	})

	c := NewClient(WithBaseURL(srv.URL))
	rec, err := c.Lookup(context.Background(), "10.1093/sysbio/syab006")
	if err != nil {
		t.Fatal(err)
	}
	rec["title"] = "mutated"

	again, err := c.Lookup(context.Background(), "10.1093/sysbio/syab006")
	if err != nil {
		t.Fatal(err)
	}
	if again.String("title") == "mutated" {
		t.Error("mutating a lookup result changed the cache")
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, "Resource not found.", IsNotFound},
		{"rate limited", http.StatusTooManyRequests, "", IsRateLimited},
		{"bad json", http.StatusOK, "{not json", func(err error) bool { return errors.Is(err, ErrInvalidResponse) }},
		{"bad status", http.StatusOK, `{"status":"failed"}`, func(err error) bool { return errors.Is(err, ErrInvalidResponse) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			c := NewClient(WithBaseURL(srv.URL))
			_, err := c.Lookup(context.Background(), "10.1234/missing")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error kind: %v", err)
			}
		})
	}
}

func TestClient_APIErrorStatus(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "10.1234/x")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.DOI != "10.1234/x" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "400") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestClient_RetriesThroughExecutor(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleWork))
	})

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	}, zerolog.Nop())

	c := NewClient(WithBaseURL(srv.URL), WithExecutor(exec), WithRateLimit(1000))
	if _, err := c.Lookup(context.Background(), "10.1093/sysbio/syab006"); err != nil {
		t.Fatalf("Lookup after retry: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server called %d times, want 2", n)
	}
}

func TestClient_PDFLinks(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleWork))
	})

	c := NewClient(WithBaseURL(srv.URL))
	links, err := c.PDFLinks(context.Background(), "10.1093/sysbio/syab006")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || !strings.HasSuffix(links[0], "1.pdf") {
		t.Errorf("PDFLinks = %v", links)
	}
}
