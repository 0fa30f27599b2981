// Package crossref looks up DOI metadata in the Crossref REST API.
//
// Two record shapes are offered for the same lookup: the work exactly as
// Crossref returns it, and a normalized record using the flat key names of
// a reference manager library (title, author, year, journal, ...).
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/matsen/citescrape/internal/identifier"
	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/resilience"
)

const (
	// BaseURL is the Crossref REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit stays under the public pool's 50 requests per second.
	RateLimit = 5.0

	// DefaultUserAgent identifies the client to Crossref.
	DefaultUserAgent = "citescrape/1.0 (https://github.com/matsen/citescrape)"
)

// Client is a rate-limited HTTP client for the Crossref works endpoint.
// Works are cached per DOI so that the full and normalized sources share
// one request.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	userAgent  string
	exec       *resilience.Executor
	logger     zerolog.Logger

	mu    sync.Mutex
	cache map[string]Work
}

// Work is the "message" object of a works response.
type Work map[string]any

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMailto joins the polite pool by sending a contact address.
func WithMailto(mailto string) ClientOption {
	return func(c *Client) {
		c.mailto = mailto
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithExecutor runs requests under a retry and circuit breaker policy.
func WithExecutor(exec *resilience.Executor) ClientOption {
	return func(c *Client) {
		c.exec = exec
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Crossref API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		userAgent:  DefaultUserAgent,
		logger:     zerolog.Nop(),
		cache:      make(map[string]Work),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Work fetches the Crossref work for doi.
func (c *Client) Work(ctx context.Context, doi string) (Work, error) {
	doi = strings.TrimSpace(doi)
	if found, ok := identifier.ValidateDOI(doi); ok {
		doi = found
	}
	key := strings.ToLower(doi)

	c.mu.Lock()
	if w, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return w, nil
	}
	c.mu.Unlock()

	var work Work
	fetch := func(ctx context.Context) error {
		var err error
		work, err = c.fetchWork(ctx, doi)
		return err
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "crossref.works", fetch, nil)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = work
	c.mu.Unlock()
	return work, nil
}

func (c *Client) fetchWork(ctx context.Context, doi string) (Work, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + "/works/" + url.PathEscape(doi)
	if c.mailto != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug().Str("doi", doi).Str("url", reqURL).Msg("crossref lookup")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			DOI:        doi,
		}
	}

	var envelope struct {
		Status      string `json:"status"`
		MessageType string `json:"message-type"`
		Message     Work   `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding work: %v", ErrInvalidResponse, err)
	}
	if envelope.Status != "ok" || envelope.Message == nil {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidResponse, envelope.Status)
	}
	return envelope.Message, nil
}

// Lookup returns the work as Crossref returns it.
func (c *Client) Lookup(ctx context.Context, doi string) (metadata.Record, error) {
	work, err := c.Work(ctx, doi)
	if err != nil {
		return nil, err
	}
	return metadata.Record(work).Clone(), nil
}

// Normalized returns a source producing library-style records.
func (c *Client) Normalized() *NormalizedSource {
	return &NormalizedSource{client: c}
}

// NormalizedSource maps Crossref works to flat library keys.
type NormalizedSource struct {
	client *Client
}

// Lookup fetches the work for doi and normalizes it.
func (s *NormalizedSource) Lookup(ctx context.Context, doi string) (metadata.Record, error) {
	work, err := s.client.Work(ctx, doi)
	if err != nil {
		return nil, err
	}
	return Normalize(work), nil
}

// PDFLinks returns the full-text PDF links Crossref lists for doi.
func (c *Client) PDFLinks(ctx context.Context, doi string) ([]string, error) {
	work, err := c.Work(ctx, doi)
	if err != nil {
		return nil, err
	}
	return work.PDFLinks(), nil
}
