// Package sanitize turns arbitrary titles and tags into strings that are
// safe to use as file names and library tags.
package sanitize

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultExtension is appended to sanitized file names.
	DefaultExtension = "pdf"
	// DefaultReplacement replaces blacklisted characters in file names.
	DefaultReplacement = "_"

	// fallbackLayout renders as MM_DD_YYYY_HH_MM_SS.
	fallbackLayout = "01_02_2006_15_04_05"
)

// Blacklist holds the characters replaced by CleanString. Runs of
// whitespace are also replaced, collapsing to a single replacement.
var Blacklist = map[rune]bool{
	':': true, '\\': true, '/': true, '$': true, '%': true,
	'#': true, '@': true, '!': true, '*': true, '(': true,
	')': true, '[': true, ']': true, '{': true, '}': true,
	'?': true, '+': true, '<': true, '>': true, '.': true,
}

// Options controls Filename.
type Options struct {
	Extension   string          // Without or with leading dot; default "pdf"
	Replacement string          // Default "_"
	Overrides   map[rune]string // Per-character replacements; ' ' addresses whitespace runs
}

// CleanString replaces blacklisted characters and whitespace runs with
// replacement in a single left-to-right pass. An entry in overrides takes
// precedence for its character whether or not it is blacklisted.
func CleanString(s, replacement string, overrides map[rune]string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				if rep, ok := overrides[' ']; ok {
					b.WriteString(rep)
				} else {
					b.WriteString(replacement)
				}
			}
			inSpace = true
			continue
		}
		inSpace = false

		if rep, ok := overrides[r]; ok {
			b.WriteString(rep)
			continue
		}
		if Blacklist[r] {
			b.WriteString(replacement)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Filename trims name, drops an existing copy of the extension, cleans the
// rest, and appends the extension.
func Filename(name string, opts Options) string {
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	replacement := opts.Replacement
	if replacement == "" {
		replacement = DefaultReplacement
	}

	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ext)
	return CleanString(name, replacement, opts.Overrides) + ext
}

// FallbackName is the synthetic name used when no title is available.
func FallbackName(now time.Time) string {
	return "paper_" + now.Format(fallbackLayout) + ".pdf"
}

// TitleFilename sanitizes title, or falls back to a timestamped name when
// the title is empty.
func TitleFilename(title string, now time.Time, opts Options) string {
	if strings.TrimSpace(title) == "" {
		return FallbackName(now)
	}
	return Filename(title, opts)
}

// ParseOverrides converts a config replacement table keyed by strings into
// the rune-keyed form. The keys "space" and " " both address whitespace.
func ParseOverrides(table map[string]string) (map[rune]string, error) {
	if len(table) == 0 {
		return nil, nil
	}
	out := make(map[rune]string, len(table))
	for k, v := range table {
		if k == "space" {
			out[' '] = v
			continue
		}
		if utf8.RuneCountInString(k) != 1 {
			return nil, fmt.Errorf("replacement key %q must be a single character", k)
		}
		r, _ := utf8.DecodeRuneInString(k)
		out[r] = v
	}
	return out, nil
}
