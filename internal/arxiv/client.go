// Package arxiv fetches preprint metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/resilience"
)

const (
	// APIURL is the arXiv export API query endpoint.
	APIURL = "https://export.arxiv.org/api/query"

	// PDFBaseURL serves the PDF for an identifier appended to it.
	PDFBaseURL = "https://arxiv.org/pdf/"

	// AbsBaseURL serves the landing page for an identifier.
	AbsBaseURL = "https://arxiv.org/abs/"

	// RateLimit follows arXiv's request to wait 3 seconds between calls.
	RateLimit = 1.0 / 3.0

	DefaultTimeout = 30 * time.Second
)

var (
	// ErrNotFound indicates arXiv has no entry for the identifier.
	ErrNotFound = errors.New("not found on arXiv")

	// ErrInvalidResponse indicates the feed could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from arXiv")
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("arXiv API error (status %d): %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code to retry classification.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Published  string        `xml:"published"`
	Updated    string        `xml:"updated"`
	Authors    []entryAuthor `xml:"author"`
	Summary    string        `xml:"summary"`
	DOI        string        `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string        `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Comment    string        `xml:"http://arxiv.org/schemas/atom comment"`
	Primary    category      `xml:"http://arxiv.org/schemas/atom primary_category"`
}

type entryAuthor struct {
	Name string `xml:"name"`
}

type category struct {
	Term string `xml:"term,attr"`
}

// Client is a rate-limited arXiv API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
	userAgent  string
	exec       *resilience.Executor
	logger     zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIURL sets a custom query endpoint (for testing).
func WithAPIURL(u string) ClientOption {
	return func(c *Client) {
		c.apiURL = u
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

// NewClient creates a new arXiv client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		apiURL:     APIURL,
		userAgent:  "citescrape/1.0",
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PDFURL returns the download URL for an arXiv identifier.
func PDFURL(id string) string {
	return PDFBaseURL + id
}

// AbsURL returns the landing page URL for an arXiv identifier.
func AbsURL(id string) string {
	return AbsBaseURL + id
}

// Fetch retrieves the metadata record for id.
func (c *Client) Fetch(ctx context.Context, id string) (metadata.Record, error) {
	var e *entry
	call := func(ctx context.Context) error {
		var err error
		e, err = c.query(ctx, id)
		return err
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "arxiv.query", call, nil)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return toRecord(id, e), nil
}

func (c *Client) query(ctx context.Context, id string) (*entry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	queryURL := c.apiURL + "?id_list=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug().Str("arxiv", id).Msg("arxiv lookup")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(f.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := f.Entries[0]
	// unknown or malformed ids come back as a single error entry
	if strings.Contains(e.ID, "/api/errors") || strings.TrimSpace(e.Title) == "Error" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &e, nil
}

func toRecord(id string, e *entry) metadata.Record {
	rec := metadata.Record{
		"title":      oneLine(e.Title),
		"eprint":     id,
		"eprinttype": "arxiv",
		"url":        AbsURL(id),
		"pdf_url":    PDFURL(id),
	}

	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		rec["year"] = t.Year()
		rec["month"] = int(t.Month())
	}
	if abstract := oneLine(e.Summary); abstract != "" {
		rec["abstract"] = abstract
	}
	if doi := strings.TrimSpace(e.DOI); doi != "" {
		rec["doi"] = doi
	}
	if ref := oneLine(e.JournalRef); ref != "" {
		rec["journal"] = ref
	}
	if comment := oneLine(e.Comment); comment != "" {
		rec["note"] = comment
	}
	if e.Primary.Term != "" {
		rec["primaryclass"] = e.Primary.Term
	}

	if len(e.Authors) > 0 {
		list := make([]map[string]any, 0, len(e.Authors))
		names := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			given, family := splitName(a.Name)
			author := map[string]any{"family": family}
			if given != "" {
				author["given"] = given
				names = append(names, family+", "+given)
			} else {
				names = append(names, family)
			}
			list = append(list, author)
		}
		rec["author_list"] = list
		rec["author"] = strings.Join(names, " and ")
	}

	return rec
}

// oneLine collapses the hard-wrapped text of Atom titles and abstracts.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitName splits "Given Middle Family" at the last space.
func splitName(name string) (given, family string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
