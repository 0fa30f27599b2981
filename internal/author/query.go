// Package author parses author names as stored in the library and matches
// them against search queries.
package author

import (
	"strings"
)

// Name is one author split into given and family names.
type Name struct {
	Given  string
	Family string
}

// ParseName parses a stored author name. Names are stored as
// "Family, Given"; a name without a comma is taken as "Given Family".
func ParseName(s string) Name {
	q := ParseQuery(s)
	return Name{Given: q.First, Family: q.Last}
}

// ParseList splits a record's author string, "A, B and C, D", into names.
func ParseList(s string) []Name {
	var names []Name
	for _, part := range strings.Split(s, " and ") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, ParseName(part))
		}
	}
	return names
}

// Query represents a parsed author search query.
type Query struct {
	First string // First name (may be empty for last-name-only queries)
	Last  string // Last name (required)
}

// ParseQuery parses an author search string into a structured Query.
//
// Supported formats:
//   - "Yu"           → last="Yu" (single word = last name only)
//   - "Timothy Yu"   → first="Timothy", last="Yu" (space-separated = First Last)
//   - "Yu, Timothy"  → first="Timothy", last="Yu" (comma = Last, First)
//
// Names are trimmed but case is preserved (matching is case-insensitive).
func ParseQuery(input string) Query {
	input = strings.TrimSpace(input)
	if input == "" {
		return Query{}
	}

	if last, first, ok := strings.Cut(input, ","); ok && strings.TrimSpace(last) != "" {
		return Query{First: strings.TrimSpace(first), Last: strings.TrimSpace(last)}
	}

	parts := strings.Fields(input)
	if len(parts) == 1 {
		return Query{Last: parts[0]}
	}

	// "Timothy C Yu" → first="Timothy C", last="Yu"
	last := parts[len(parts)-1]
	first := strings.Join(parts[:len(parts)-1], " ")
	return Query{First: first, Last: last}
}

// IsZero reports whether the query has no name to match.
func (q Query) IsZero() bool {
	return q.Last == ""
}

// Matches checks if the query matches a given author.
//
// The family name must match exactly, ignoring case. A given name in the
// query is a case-insensitive prefix, so "Tim Yu" matches "Yu, Timothy C"
// but "Yu" does not match "Yujia".
func (q Query) Matches(n Name) bool {
	if !strings.EqualFold(q.Last, n.Family) {
		return false
	}
	if q.First == "" {
		return true
	}
	return strings.HasPrefix(
		strings.ToLower(n.Given),
		strings.ToLower(q.First),
	)
}

// MatchesAny checks if the query matches any author in the list.
func (q Query) MatchesAny(names []Name) bool {
	for _, n := range names {
		if q.Matches(n) {
			return true
		}
	}
	return false
}

// AllMatch checks if all queries match at least one author each.
func AllMatch(queries []Query, names []Name) bool {
	for _, q := range queries {
		if !q.MatchesAny(names) {
			return false
		}
	}
	return true
}

// ParseAll parses each stored author string.
func ParseAll(authors []string) []Name {
	names := make([]Name, 0, len(authors))
	for _, a := range authors {
		names = append(names, ParseName(a))
	}
	return names
}
