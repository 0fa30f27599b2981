package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/matsen/citescrape/internal/clipboard"
	"github.com/matsen/citescrape/internal/library"
)

// Constants for output formatting.
const (
	DefaultSearchLimit = 50 // Default limit for search

	ListTitleMaxLen   = 60 // Used in list and search output
	DetailValueMaxLen = 90 // Used in info output
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Count  *int   `json:"count,omitempty"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// formatAuthorsShort lists up to maxCount family names, then "et al.".
func formatAuthorsShort(authors []string, maxCount int) string {
	var names []string
	for i, a := range authors {
		if i >= maxCount {
			names = append(names, "et al.")
			break
		}
		family, _, _ := strings.Cut(a, ",")
		names = append(names, strings.TrimSpace(family))
	}
	return strings.Join(names, ", ")
}

// printEntrySummary prints one library entry in human-readable form.
func printEntrySummary(e library.Entry) {
	fmt.Printf("  %-20s %s\n", e.Key, truncateString(e.Title, ListTitleMaxLen))
	var detail []string
	if len(e.Authors) > 0 {
		detail = append(detail, formatAuthorsShort(e.Authors, 3))
	}
	if e.Journal != "" {
		detail = append(detail, e.Journal)
	}
	if e.Year > 0 {
		detail = append(detail, fmt.Sprintf("(%d)", e.Year))
	}
	if len(detail) > 0 {
		fmt.Printf("  %-20s %s\n", "", strings.Join(detail, " "))
	}
	if len(e.Tags) > 0 {
		fmt.Printf("  %-20s tags: %s\n", "", strings.Join(e.Tags, " "))
	}
}

// printEntries prints entries, or an empty-state message.
func printEntries(entries []library.Entry, empty string) {
	if len(entries) == 0 {
		fmt.Println(empty)
		return
	}
	for _, e := range entries {
		printEntrySummary(e)
	}
}

// copyToClipboard copies text or exits when no clipboard is available.
func copyToClipboard(text string) {
	if err := clipboard.Copy(text); err != nil {
		exitWithError(ExitError, "copying to clipboard: %v", err)
	}
}
