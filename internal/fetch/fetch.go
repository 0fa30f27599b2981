// Package fetch downloads document files over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/matsen/citescrape/internal/pdf"
	"github.com/matsen/citescrape/internal/sanitize"
)

const (
	// DOIResolver is prefixed to a DOI to reach the publisher.
	DOIResolver = "https://doi.org/"

	DefaultTimeout = 60 * time.Second

	// RateLimit is requests per second across all hosts.
	RateLimit = 2.0

	// MaxDownloadSize caps a single response body.
	MaxDownloadSize = 200 << 20
)

var (
	// ErrNoPDF indicates no PDF could be obtained for a DOI.
	ErrNoPDF = errors.New("no PDF available")

	// ErrTooLarge indicates the response exceeded MaxDownloadSize.
	ErrTooLarge = errors.New("download exceeds size limit")
)

// StatusError is a non-2xx download response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// HTTPStatus exposes the status code to retry classification.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// LinkFinder lists candidate full-text PDF links for a DOI.
type LinkFinder interface {
	PDFLinks(ctx context.Context, doi string) ([]string, error)
}

// Downloader is a rate-limited HTTP downloader.
type Downloader struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	userAgent   string
	resolverURL string
	links       LinkFinder
	filenames   sanitize.Options
	logger      zerolog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Downloader) {
		d.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) Option {
	return func(d *Downloader) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithResolver sets the DOI resolver prefix (for testing).
func WithResolver(prefix string) Option {
	return func(d *Downloader) {
		d.resolverURL = prefix
	}
}

// WithLinkFinder consults finder for PDF links before the DOI resolver.
func WithLinkFinder(finder LinkFinder) Option {
	return func(d *Downloader) {
		d.links = finder
	}
}

// WithFilenameOptions controls how saved files are named.
func WithFilenameOptions(opts sanitize.Options) Option {
	return func(d *Downloader) {
		d.filenames = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// New creates a Downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(RateLimit), 1),
		userAgent:   "citescrape/1.0",
		resolverURL: DOIResolver,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadByURL fetches rawURL and returns the body and the final URL
// after redirects.
func (d *Downloader) DownloadByURL(ctx context.Context, rawURL string) ([]byte, string, error) {
	return d.get(ctx, rawURL, "")
}

// DownloadByDOI obtains the PDF for doi and saves it in dir. Crossref's
// full-text links are tried first, then the DOI resolver with content
// negotiation. The returned slice holds the saved path.
func (d *Downloader) DownloadByDOI(ctx context.Context, doi, dir string) ([]string, error) {
	var candidates []string
	if d.links != nil {
		links, err := d.links.PDFLinks(ctx, doi)
		if err != nil {
			d.logger.Warn().Err(err).Str("doi", doi).Msg("listing PDF links failed")
		}
		candidates = append(candidates, links...)
	}
	candidates = append(candidates, d.resolverURL+doi)

	var lastErr error
	for _, link := range candidates {
		data, final, err := d.get(ctx, link, "application/pdf")
		if err != nil {
			lastErr = err
			d.logger.Debug().Err(err).Str("url", link).Msg("candidate failed")
			continue
		}
		if !pdf.IsPDF(data) {
			lastErr = fmt.Errorf("%s: %w", final, pdf.ErrNotPDF)
			continue
		}

		name := d.nameFor(data, doi)
		path, err := SaveExclusive(dir, name, data)
		if err != nil {
			return nil, err
		}
		d.logger.Info().Str("doi", doi).Str("path", path).Msg("downloaded")
		return []string{path}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrNoPDF, doi, lastErr)
	}
	return nil, fmt.Errorf("%w for %s", ErrNoPDF, doi)
}

// nameFor prefers the PDF's own title and falls back to the DOI.
func (d *Downloader) nameFor(data []byte, doi string) string {
	if title, err := pdf.TitleFromBytes(data); err == nil && title != "" {
		return sanitize.Filename(title, d.filenames)
	}
	return sanitize.Filename(doi, d.filenames)
}

func (d *Downloader) get(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, final, &StatusError{URL: final, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, final, fmt.Errorf("reading %s: %w", final, err)
	}
	if len(data) > MaxDownloadSize {
		return nil, final, fmt.Errorf("%s: %w", final, ErrTooLarge)
	}
	return data, final, nil
}

// SaveExclusive writes data to dir/name, refusing to overwrite an existing
// file. The error wraps os.ErrExist in that case.
func SaveExclusive(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("saving %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// FilenameFromURL returns the last path element of rawURL, or "" when it
// has none.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := filepath.Base(strings.TrimRight(u.Path, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}
