package identifier

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// doiPattern matches 10.<registrant>[.<sub>]*/<suffix> anywhere in a string.
// Registrant codes are 4-9 digits, matching what the registration agencies issue.
var doiPattern = regexp.MustCompile(`(?i)10\.\d{4,9}(?:\.\d+)*/[^\s"<>|]+`)

// ValidateDOI finds a DOI anywhere in raw, including inside resolver URLs
// such as https://doi.org/... or http://dx.doi.org/..., and percent-encoded
// hrefs. The DOI's case is preserved.
func ValidateDOI(raw string) (string, bool) {
	text := raw
	if unescaped, err := url.PathUnescape(raw); err == nil {
		text = unescaped
	}

	for _, match := range doiPattern.FindAllString(text, -1) {
		if doi, ok := checkDOI(trimDOI(match)); ok {
			return doi, true
		}
	}
	return "", false
}

// trimDOI removes trailing punctuation and unbalanced closing brackets that
// come from the surrounding prose rather than the DOI itself.
func trimDOI(doi string) string {
	for {
		before := doi
		doi = strings.TrimRight(doi, ".,;:'")
		doi = trimUnbalanced(doi, '(', ')')
		doi = trimUnbalanced(doi, '[', ']')
		doi = trimUnbalanced(doi, '{', '}')
		if doi == before {
			return doi
		}
	}
}

func trimUnbalanced(s string, open, close byte) string {
	if len(s) == 0 || s[len(s)-1] != close {
		return s
	}
	if strings.Count(s, string(open)) < strings.Count(s, string(close)) {
		return s[:len(s)-1]
	}
	return s
}

// checkDOI applies the format rule: a prefix, a slash, and a non-empty
// suffix of printable characters.
func checkDOI(doi string) (string, bool) {
	slash := strings.Index(doi, "/")
	if slash < len("10.1234") || slash == len(doi)-1 {
		return "", false
	}
	for _, r := range doi {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", false
		}
	}
	return doi, true
}

// NormalizeDOI lowercases a DOI and strips resolver prefixes, for comparing
// DOIs from different sources. It is not a validator.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	if found, ok := ValidateDOI(doi); ok {
		doi = found
	}
	return strings.ToLower(doi)
}
