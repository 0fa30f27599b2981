package crossref

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matsen/citescrape/internal/metadata"
)

// typeMap translates Crossref work types into the BibTeX-style types
// used by reference manager libraries.
var typeMap = map[string]string{
	"journal-article":     "article",
	"book":                "book",
	"book-chapter":        "inbook",
	"edited-book":         "book",
	"monograph":           "book",
	"proceedings-article": "inproceedings",
	"proceedings":         "proceedings",
	"dissertation":        "phdthesis",
	"report":              "techreport",
	"posted-content":      "unpublished",
	"dataset":             "misc",
	"reference-entry":     "inbook",
}

// jatsTag matches the JATS markup Crossref abstracts are wrapped in.
var jatsTag = regexp.MustCompile(`</?jats:[^>]*>`)

// Normalize converts a Crossref work into a flat record. Keys absent from
// the work are absent from the record.
func Normalize(w Work) metadata.Record {
	out := metadata.Record{}

	set := func(key, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			out[key] = value
		}
	}

	set("doi", str(w["DOI"]))
	set("title", first(w["title"]))
	set("journal", first(w["container-title"]))
	set("volume", str(w["volume"]))
	set("issue", str(w["issue"]))
	set("pages", str(w["page"]))
	set("publisher", str(w["publisher"]))
	set("url", str(w["URL"]))
	set("issn", first(w["ISSN"]))
	set("language", str(w["language"]))
	if abstract := str(w["abstract"]); abstract != "" {
		set("abstract", jatsTag.ReplaceAllString(abstract, ""))
	}

	if t := str(w["type"]); t != "" {
		if mapped, ok := typeMap[t]; ok {
			out["type"] = mapped
		} else {
			out["type"] = t
		}
	}

	if parts := dateParts(w); len(parts) > 0 {
		out["year"] = parts[0]
		if len(parts) > 1 {
			out["month"] = parts[1]
		}
	}

	if authors := authorList(w["author"]); len(authors) > 0 {
		out["author_list"] = authors
		out["author"] = authorString(authors)
	}

	return out
}

// PDFLinks returns link URLs whose content type is application/pdf.
func (w Work) PDFLinks() []string {
	links, _ := w["link"].([]any)
	var out []string
	for _, l := range links {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		if str(m["content-type"]) != "application/pdf" {
			continue
		}
		if u := str(m["URL"]); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// dateParts returns [year, month, day] from the earliest date Crossref
// recorded for the work.
func dateParts(w Work) []int {
	for _, key := range []string{"published-print", "published-online", "issued", "created"} {
		d, ok := w[key].(map[string]any)
		if !ok {
			continue
		}
		outer, ok := d["date-parts"].([]any)
		if !ok || len(outer) == 0 {
			continue
		}
		inner, ok := outer[0].([]any)
		if !ok || len(inner) == 0 || inner[0] == nil {
			continue
		}
		parts := make([]int, 0, len(inner))
		for _, p := range inner {
			n, ok := p.(float64)
			if !ok {
				break
			}
			parts = append(parts, int(n))
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return nil
}

func authorList(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, a := range raw {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		author := map[string]any{}
		if given := str(m["given"]); given != "" {
			author["given"] = given
		}
		if family := str(m["family"]); family != "" {
			author["family"] = family
		} else if name := str(m["name"]); name != "" {
			// consortium authors carry only a name
			author["family"] = name
		}
		if affs := affiliations(m["affiliation"]); len(affs) > 0 {
			author["affiliation"] = affs
		}
		if orcid := str(m["ORCID"]); orcid != "" {
			author["orcid"] = orcid
		}
		if len(author) > 0 {
			out = append(out, author)
		}
	}
	return out
}

func affiliations(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, a := range raw {
		if m, ok := a.(map[string]any); ok {
			if name := str(m["name"]); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// authorString joins authors as "Family, Given and Family, Given".
func authorString(authors []map[string]any) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		family, _ := a["family"].(string)
		given, _ := a["given"].(string)
		switch {
		case family != "" && given != "":
			names = append(names, family+", "+given)
		case family != "":
			names = append(names, family)
		case given != "":
			names = append(names, given)
		}
	}
	return strings.Join(names, " and ")
}

func str(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

// first unwraps Crossref's single-element string lists.
func first(v any) string {
	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return ""
		}
		return str(val[0])
	default:
		return str(val)
	}
}
