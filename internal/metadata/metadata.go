// Package metadata holds the bibliographic record for a document and the
// rules for merging records obtained from different sources.
package metadata

import (
	"fmt"
	"strings"
)

// Record is a metadata mapping as returned by a source: string keys and
// arbitrary JSON-like values.
type Record map[string]any

// Clone returns a shallow copy of r. A nil record clones to nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value at key formatted as a string, or "" if the key
// is missing or nil. Single-element lists (Crossref titles) are unwrapped.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []any:
		if len(val) == 0 {
			return ""
		}
		return fmt.Sprint(val[0])
	case []string:
		if len(val) == 0 {
			return ""
		}
		return val[0]
	default:
		return fmt.Sprint(val)
	}
}

// With returns a copy of r with key set to value.
func (r Record) With(key string, value any) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	out[key] = value
	return out
}

// Merge combines two records for the same document. Every key of primary is
// kept as-is, even when its value is empty. A key of secondary is added only
// when neither it nor its lowercase form is already a key of primary.
//
// A nil input means "no data from that source": the other input is returned
// (as a copy). Neither input is modified.
func Merge(primary, secondary Record) Record {
	if primary == nil || secondary == nil {
		if primary == nil {
			return secondary.Clone()
		}
		return primary.Clone()
	}

	out := make(Record, len(primary)+len(secondary))
	for k, v := range secondary {
		if _, ok := primary[k]; ok {
			continue
		}
		if _, ok := primary[strings.ToLower(k)]; ok {
			continue
		}
		out[k] = v
	}
	for k, v := range primary {
		out[k] = v
	}
	return out
}

// Consolidate merges records in priority order: the first record is the
// most authoritative. Nil records are skipped.
func Consolidate(records ...Record) Record {
	var out Record
	for _, r := range records {
		out = Merge(out, r)
	}
	return out
}
