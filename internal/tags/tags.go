// Package tags implements the cleaned, deduplicated tag set attached to a
// document when it is added to the library.
package tags

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/citescrape/internal/sanitize"
)

// tagReplacement replaces blacklisted characters inside a tag.
const tagReplacement = "-"

// allowedInTags are blacklisted for file names but meaningful in tags.
var allowedInTags = map[rune]string{
	'?': "?", '!': "!", '>': ">", '<': "<", '/': "/", '\\': "\\", '#': "#",
	'+': "+", '*': "*", '@': "@", ':': ":", '(': "(", ')': ")", '[': "[", ']': "]",
}

// CleanTag trims whitespace and replaces problematic characters with '-'.
//
//	CleanTag(" #some_tag   ") == "#some_tag"
//	CleanTag("$bad_tag")      == "-bad_tag"
func CleanTag(tag string) string {
	return sanitize.CleanString(strings.TrimSpace(tag), tagReplacement, allowedInTags)
}

// Set is an immutable set of cleaned tags. The zero value is an empty set.
type Set struct {
	tags map[string]struct{}
}

// New builds a set from whitespace-delimited strings.
func New(parts ...string) Set {
	s := Set{tags: make(map[string]struct{})}
	for _, p := range parts {
		s.addField(p)
	}
	return s
}

// From builds a set from any mixture of strings, string slices, maps used as
// sets, and other Sets.
func From(items ...any) (Set, error) {
	s := Set{tags: make(map[string]struct{})}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			s.addField(v)
		case []string:
			for _, p := range v {
				s.addField(p)
			}
		case Set:
			for t := range v.tags {
				s.tags[t] = struct{}{}
			}
		case *Set:
			if v != nil {
				for t := range v.tags {
					s.tags[t] = struct{}{}
				}
			}
		case map[string]struct{}:
			for p := range v {
				s.addField(p)
			}
		case map[string]bool:
			for p, ok := range v {
				if ok {
					s.addField(p)
				}
			}
		case []any:
			nested, err := From(v...)
			if err != nil {
				return Set{}, err
			}
			for t := range nested.tags {
				s.tags[t] = struct{}{}
			}
		case nil:
		default:
			return Set{}, fmt.Errorf("unsupported tag source %T", item)
		}
	}
	return s, nil
}

// addField splits p on whitespace and adds each cleaned field.
func (s Set) addField(p string) {
	for _, f := range strings.Fields(p) {
		if tag := CleanTag(f); tag != "" {
			s.tags[tag] = struct{}{}
		}
	}
}

// Union returns a new set holding the tags of both sets.
func (s Set) Union(other Set) Set {
	out := Set{tags: make(map[string]struct{}, len(s.tags)+len(other.tags))}
	for t := range s.tags {
		out.tags[t] = struct{}{}
	}
	for t := range other.tags {
		out.tags[t] = struct{}{}
	}
	return out
}

// Difference returns a new set holding the tags of s not in other.
func (s Set) Difference(other Set) Set {
	out := Set{tags: make(map[string]struct{}, len(s.tags))}
	for t := range s.tags {
		if _, ok := other.tags[t]; !ok {
			out.tags[t] = struct{}{}
		}
	}
	return out
}

// Add is shorthand for s.Union(New(parts...)).
func (s Set) Add(parts ...string) Set {
	return s.Union(New(parts...))
}

// Without is shorthand for s.Difference(New(parts...)).
func (s Set) Without(parts ...string) Set {
	return s.Difference(New(parts...))
}

// Contains reports whether the cleaned form of tag is in the set.
func (s Set) Contains(tag string) bool {
	_, ok := s.tags[CleanTag(tag)]
	return ok
}

// Len returns the number of tags.
func (s Set) Len() int {
	return len(s.tags)
}

// Equal reports whether both sets hold the same tags.
func (s Set) Equal(other Set) bool {
	if len(s.tags) != len(other.tags) {
		return false
	}
	for t := range s.tags {
		if _, ok := other.tags[t]; !ok {
			return false
		}
	}
	return true
}

// Slice returns the tags in sorted order.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s.tags))
	for t := range s.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// String joins the sorted tags with spaces, the form stored in info.yaml.
func (s Set) String() string {
	return strings.Join(s.Slice(), " ")
}

// MarshalJSON encodes the set as its space-joined string.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either a space-joined string or a list of strings.
func (s *Set) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = New(str)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decoding tags: %w", err)
	}
	*s = New(list...)
	return nil
}

// MarshalYAML encodes the set as its space-joined string.
func (s Set) MarshalYAML() (any, error) {
	return s.String(), nil
}
