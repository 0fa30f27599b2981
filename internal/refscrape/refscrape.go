// Package refscrape pulls DOI and arXiv references out of web pages and
// plain text such as Wikipedia article source.
package refscrape

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/matsen/citescrape/internal/identifier"
)

// maxLineSize bounds a single line of text input. Wikitext paragraphs can be long.
const maxLineSize = 1024 * 1024

// Page is the result of scraping one source.
type Page struct {
	Source      string                  `json:"source_url"`
	Links       []string                `json:"links"`
	Identifiers []identifier.Identifier `json:"identifiers"`
}

// Links returns the href of every anchor whose target mentions a DOI or
// arXiv, in document order with duplicates removed.
func Links(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if isReferenceLink(href) && !seen[href] {
					seen[href] = true
					links = append(links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func isReferenceLink(href string) bool {
	lower := strings.ToLower(href)
	return strings.Contains(lower, "doi") || strings.Contains(lower, "arxiv")
}

// Identifiers maps links to the arXiv or DOI identifier they address.
// Links that carry neither (a search page, a bare doi.org link) are dropped.
func Identifiers(links []string) []identifier.Identifier {
	var c collector
	for _, link := range links {
		if id, ok := identifier.ArxivIDFromURL(link); ok {
			c.add(identifier.KindArxiv, id)
			continue
		}
		if id, ok := identifier.ValidateArxiv(link); ok && strings.Contains(strings.ToLower(link), "arxiv") {
			c.add(identifier.KindArxiv, id)
			continue
		}
		if doi, ok := identifier.ValidateDOI(link); ok {
			c.add(identifier.KindDOI, doi)
		}
	}
	return c.ids
}

// FromText scans text line by line for DOIs and arXiv ids. It understands
// citation template parameters (doi=, arxiv=, eprint=) but does not parse
// wiki markup.
func FromText(r io.Reader) ([]identifier.Identifier, error) {
	var c collector
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		for _, field := range fields(scanner.Text()) {
			c.field(field)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading text: %w", err)
	}
	return c.ids, nil
}

// FromString is FromText for in-memory text.
func FromString(s string) []identifier.Identifier {
	ids, _ := FromText(strings.NewReader(s))
	return ids
}

// Scrape extracts links from an HTML page and resolves them to identifiers.
func Scrape(source string, r io.Reader) (*Page, error) {
	links, err := Links(r)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []string{}
	}
	ids := Identifiers(links)
	if ids == nil {
		ids = []identifier.Identifier{}
	}
	return &Page{Source: source, Links: links, Identifiers: ids}, nil
}

func fields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		switch r {
		case ' ', '\t', '|', '{', '<', '>', '"':
			return true
		}
		return false
	})
}

type collector struct {
	seen map[string]bool
	ids  []identifier.Identifier
}

func (c *collector) add(kind identifier.Kind, value string) {
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	key := kind.String() + ":" + strings.ToLower(value)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.ids = append(c.ids, identifier.Identifier{Kind: kind, Value: value})
}

func (c *collector) field(field string) {
	if key, value, ok := strings.Cut(field, "="); ok {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "arxiv", "eprint":
			if id, ok := identifier.ValidateArxiv(strings.Trim(value, "}]")); ok {
				c.add(identifier.KindArxiv, id)
			}
			return
		}
	}
	if strings.Contains(strings.ToLower(field), "arxiv") {
		if id, ok := identifier.ValidateArxiv(field); ok {
			c.add(identifier.KindArxiv, id)
			return
		}
	}
	if doi, ok := identifier.ValidateDOI(field); ok {
		c.add(identifier.KindDOI, doi)
	}
}
