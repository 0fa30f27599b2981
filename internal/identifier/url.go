package identifier

import (
	"net"
	"net/url"
	"strings"
	"unicode"
)

// defaultScheme fills in a URL given without one.
const defaultScheme = "https"

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"ftps":  true,
}

// ValidateURL parses raw as a URL, fills in the https scheme if it is
// missing, reassembles it, and checks that the result is a complete URL
// with a plausible host.
func ValidateURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return "", false
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = defaultScheme + "://" + strings.TrimPrefix(candidate, "//")
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if !allowedSchemes[u.Scheme] || u.Opaque != "" || u.User != nil {
		return "", false
	}
	if !validHost(u.Hostname()) {
		return "", false
	}

	return u.String(), true
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") || net.ParseIP(host) != nil {
		return true
	}

	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}

	tld := labels[len(labels)-1]
	if strings.HasPrefix(strings.ToLower(tld), "xn--") {
		return true
	}
	if len([]rune(tld)) < 2 {
		return false
	}
	for _, r := range tld {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		if r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// WikiPageID returns the article ID from a Wikipedia URL
// (https://en.wikipedia.org/wiki/Double_copy_theory -> Double_copy_theory).
// Anything else is returned unchanged so it can be used as a search term.
func WikiPageID(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Path == "" {
		return s
	}
	if !strings.Contains(strings.ToLower(u.Host), "wiki") {
		return s
	}
	segments := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	return segments[len(segments)-1]
}
