package library

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/matsen/citescrape/internal/identifier"
	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/tags"
)

// Entry is one committed document as recorded in the JSONL index.
type Entry struct {
	Key          string    `json:"key"`
	Folder       string    `json:"folder"`
	Title        string    `json:"title,omitempty"`
	Authors      []string  `json:"authors,omitempty"`
	Year         int       `json:"year,omitempty"`
	Journal      string    `json:"journal,omitempty"`
	DOI          string    `json:"doi,omitempty"`
	Arxiv        string    `json:"arxiv,omitempty"`
	URL          string    `json:"url,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Files        []string  `json:"files"`
	Fingerprints []string  `json:"fingerprints,omitempty"`
	Added        time.Time `json:"added"`
}

// newEntry extracts the indexed fields from a committed record.
func newEntry(key string, rec metadata.Record) Entry {
	e := Entry{
		Key:     key,
		Folder:  key,
		Title:   rec.String("title"),
		Journal: rec.String("journal"),
		DOI:     rec.String("doi"),
		Arxiv:   rec.String("eprint"),
		URL:     rec.String("url"),
		Year:    recordYear(rec),
		Authors: splitAuthors(rec.String("author")),
	}
	if set, err := tags.From(rec["tags"]); err == nil && set.Len() > 0 {
		e.Tags = set.Slice()
	}
	return e
}

// CiteKey builds a key like "Zhang2021-vb" from the first author's family
// name, the year and two letters of the title. Callers make it unique.
func CiteKey(rec metadata.Record) string {
	lastName := "Unknown"
	if authors := splitAuthors(rec.String("author")); len(authors) > 0 {
		family, _, _ := strings.Cut(authors[0], ",")
		if fields := strings.Fields(family); len(fields) > 0 && !strings.Contains(authors[0], ",") {
			family = fields[len(fields)-1]
		}
		if cleaned := sanitizeForCiteKey(family); cleaned != "" {
			lastName = cleaned
		}
	}

	year := recordYear(rec)
	if year == 0 {
		year = 9999
	}

	return fmt.Sprintf("%s%d-%s", lastName, year, titleSuffix(rec.String("title")))
}

func sanitizeForCiteKey(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "and": true,
	"in": true, "on": true, "for": true, "to": true, "with": true,
}

// titleSuffix takes the first letter of the first two significant words.
func titleSuffix(title string) string {
	var suffix strings.Builder
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if stopWords[word] {
			continue
		}
		r := []rune(word)[0]
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		suffix.WriteRune(r)
		if suffix.Len() >= 2 {
			break
		}
	}
	for suffix.Len() < 2 {
		suffix.WriteByte('x')
	}
	return suffix.String()
}

// splitAuthors splits a BibTeX-style "A and B and C" author string.
func splitAuthors(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, " and ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// recordYear reads "year" whether a source stored it as a number or text.
func recordYear(rec metadata.Record) int {
	switch v := rec["year"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

// sameDOI compares DOIs case-insensitively, ignoring resolver prefixes.
func sameDOI(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return identifier.NormalizeDOI(a) == identifier.NormalizeDOI(b)
}
