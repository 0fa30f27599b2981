// Package identifier recognizes and normalizes the identifier schemes a
// document can be requested by: arXiv IDs, DOIs, and plain URLs.
package identifier

// Kind names an identifier scheme.
type Kind int

const (
	KindUnknown Kind = iota
	KindArxiv
	KindDOI
	KindURL
)

// String returns the lowercase scheme name used in JSON output and config.
func (k Kind) String() string {
	switch k {
	case KindArxiv:
		return "arxiv"
	case KindDOI:
		return "doi"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	switch s {
	case "arxiv":
		return KindArxiv
	case "doi":
		return KindDOI
	case "url":
		return KindURL
	default:
		return KindUnknown
	}
}

// Identifier is a normalized identifier tagged with its scheme.
// Value is always the output of the scheme's validator, so it is
// syntactically well formed (it may still not exist remotely).
type Identifier struct {
	Kind  Kind   `json:"type"`
	Value string `json:"id"`
}

// String returns the normalized identifier value.
func (id Identifier) String() string {
	return id.Value
}

// IsZero reports whether the identifier was never resolved.
func (id Identifier) IsZero() bool {
	return id.Kind == KindUnknown && id.Value == ""
}

// Validator recognizes a raw string as one scheme. It returns the normalized
// value and true on a match, and never panics on malformed input.
type Validator func(raw string) (string, bool)

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name; unknown names decode to KindUnknown.
func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}
