// Package export provides functions to export document metadata to various formats.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/citescrape/internal/metadata"
)

// bibtexTypes are the entry types passed through from a record's type field.
var bibtexTypes = map[string]bool{
	"article":       true,
	"book":          true,
	"inbook":        true,
	"incollection":  true,
	"inproceedings": true,
	"manual":        true,
	"mastersthesis": true,
	"misc":          true,
	"phdthesis":     true,
	"proceedings":   true,
	"techreport":    true,
	"unpublished":   true,
}

// field is one BibTeX field taken from a record key.
type field struct {
	name  string
	key   string
	latex bool
}

// fieldOrder lists the exported fields after author and title.
var fieldOrder = []field{
	{name: "volume", key: "volume"},
	{name: "number", key: "issue"},
	{name: "pages", key: "pages"},
	{name: "year", key: "year"},
	{name: "month", key: "month"},
	{name: "publisher", key: "publisher", latex: true},
	{name: "issn", key: "issn"},
	{name: "doi", key: "doi"},
	{name: "eprint", key: "eprint"},
	{name: "primaryclass", key: "primaryclass"},
	{name: "url", key: "url"},
	{name: "note", key: "note", latex: true},
	{name: "abstract", key: "abstract", latex: true},
}

// ToBibTeX converts a metadata record to a BibTeX entry with the given key.
func ToBibTeX(key string, rec metadata.Record) string {
	entryType := determineEntryType(rec)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, key))

	// Authors
	if authors := formatAuthors(rec); authors != "" {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", authors))
	}

	// Title
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(rec.String("title"))))

	// Venue
	if venue := rec.String("journal"); venue != "" {
		fieldName := "journal"
		if entryType == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(venue)))
	}

	for _, f := range fieldOrder {
		value := rec.String(f.key)
		if value == "" {
			continue
		}
		if f.latex {
			value = escapeLatex(value)
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", f.name, value))
	}

	if strings.EqualFold(rec.String("eprinttype"), "arxiv") {
		b.WriteString("  archiveprefix = {arXiv},\n")
	}

	// Tags become keywords
	if tags := strings.Fields(rec.String("tags")); len(tags) > 0 {
		b.WriteString(fmt.Sprintf("  keywords = {%s},\n", escapeLatex(strings.Join(tags, ", "))))
	}

	b.WriteString("}\n")

	return b.String()
}

// Keyed pairs a citation key with its record.
type Keyed struct {
	Key    string
	Record metadata.Record
}

// ToBibTeXList converts multiple records to BibTeX format.
func ToBibTeXList(items []Keyed) string {
	var entries []string
	for _, item := range items {
		entries = append(entries, ToBibTeX(item.Key, item.Record))
	}
	return strings.Join(entries, "\n")
}

// determineEntryType returns the BibTeX entry type for a record: its own
// type when that is a BibTeX type, otherwise a guess from the venue.
func determineEntryType(rec metadata.Record) string {
	if t := strings.ToLower(rec.String("type")); bibtexTypes[t] {
		return t
	}

	venue := strings.ToLower(rec.String("journal"))

	// Preprints
	if rec.String("eprint") != "" ||
		strings.Contains(venue, "arxiv") ||
		strings.Contains(venue, "biorxiv") ||
		strings.Contains(venue, "medrxiv") {
		return "article"
	}

	// Conference proceedings
	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	// Bare web documents
	if venue == "" && rec.String("doi") == "" {
		return "misc"
	}

	// Default to article
	return "article"
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First".
// The record's author string is used as is; otherwise author_list is formatted.
func formatAuthors(rec metadata.Record) string {
	if s := rec.String("author"); s != "" {
		return escapeLatex(s)
	}

	var formatted []string
	for _, a := range authorList(rec["author_list"]) {
		family := strings.TrimSpace(fmt.Sprint(valueOr(a["family"])))
		given := strings.TrimSpace(fmt.Sprint(valueOr(a["given"])))
		switch {
		case family != "" && given != "":
			formatted = append(formatted, fmt.Sprintf("%s, %s", family, given))
		case family != "":
			formatted = append(formatted, family)
		case given != "":
			formatted = append(formatted, given)
		}
	}
	return escapeLatex(strings.Join(formatted, " and "))
}

// authorList accepts author_list as built by the sources or as read back
// from YAML.
func authorList(v any) []map[string]any {
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func valueOr(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}

// SortedByKey returns items ordered by citation key.
func SortedByKey(items []Keyed) []Keyed {
	out := append([]Keyed(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
