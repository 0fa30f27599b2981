package identifier

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	// New-style IDs (April 2007 onward): YYMM.NNNN or YYMM.NNNNN with optional version.
	arxivNewStyle = regexp.MustCompile(`^(\d{2})(\d{2})\.(\d{4,5})(v\d+)?$`)

	// Old-style IDs: archive[.SUBJECT]/YYMMNNN with optional version, e.g. hep-th/9901001.
	arxivOldStyle = regexp.MustCompile(`^([a-z]+(?:-[a-z]+)*)(\.[A-Z]{2})?/(\d{2})(\d{2})(\d{3})(v\d+)?$`)

	// Embedded forms: arXiv:<id>, arxiv.org/abs/<id>, arxiv.org/pdf/<id>[.pdf]
	arxivEmbedded = []*regexp.Regexp{
		regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([A-Za-z0-9.\-/]+)`),
		regexp.MustCompile(`(?i)arxiv:\s*([A-Za-z0-9.\-/]+)`),
	}
)

// ValidateArxiv extracts an arXiv identifier embedded in raw (an "arXiv:"
// reference or an arxiv.org URL) or, failing that, treats the whole trimmed
// string as a candidate. The returned ID has no "arXiv:" prefix and keeps
// its version suffix.
func ValidateArxiv(raw string) (string, bool) {
	for _, re := range arxivEmbedded {
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			if id, ok := checkArxiv(trimArxivCandidate(m[1])); ok {
				return id, true
			}
		}
	}

	candidate := strings.TrimSpace(raw)
	if len(candidate) > len("arxiv:") && strings.EqualFold(candidate[:len("arxiv:")], "arxiv:") {
		candidate = strings.TrimSpace(candidate[len("arxiv:"):])
	}
	return checkArxiv(candidate)
}

// trimArxivCandidate strips a trailing ".pdf" and sentence punctuation
// picked up by the embedded patterns.
func trimArxivCandidate(s string) string {
	s = strings.TrimRight(s, "./-")
	if len(s) > 4 && strings.EqualFold(s[len(s)-4:], ".pdf") {
		s = s[:len(s)-4]
	}
	return strings.TrimRight(s, "./-")
}

// checkArxiv applies the anchored syntax rules to a bare candidate.
func checkArxiv(s string) (string, bool) {
	if m := arxivNewStyle.FindStringSubmatch(s); m != nil {
		if validMonth(m[2]) {
			return s, true
		}
		return "", false
	}
	if m := arxivOldStyle.FindStringSubmatch(s); m != nil {
		if validMonth(m[4]) {
			return s, true
		}
	}
	return "", false
}

func validMonth(mm string) bool {
	n, err := strconv.Atoi(mm)
	return err == nil && n >= 1 && n <= 12
}

// ArxivIDFromURL returns the arXiv ID addressed by an arxiv.org URL.
// URLs on other hosts, or that do not parse, yield false.
func ArxivIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.Contains(strings.ToLower(u.Host), "arxiv") {
		return "", false
	}

	var parts []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" || seg == "abs" || seg == "pdf" {
			continue
		}
		parts = append(parts, seg)
	}
	return checkArxiv(trimArxivCandidate(strings.Join(parts, "/")))
}
