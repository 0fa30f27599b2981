// Package pdf reads the title and DOI out of downloaded PDF files.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/matsen/citescrape/internal/identifier"
)

// Magic is the header every PDF file starts with.
var Magic = []byte("%PDF-")

// ErrNotPDF is returned when data does not start with the PDF header.
var ErrNotPDF = errors.New("not a PDF file")

// doiPages bounds the DOI search; the DOI is almost always on page one.
const doiPages = 3

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// Document is a parsed PDF.
type Document struct {
	r      *pdf.Reader
	closer io.Closer
}

// Open parses the PDF at path. The caller must Close it.
func Open(path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("opening %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Document{r: r, closer: f}, nil
}

// Parse parses an in-memory PDF.
func Parse(data []byte) (doc *Document, err error) {
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parsing pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing pdf: %w", err)
	}
	return &Document{r: r}, nil
}

// Close releases the underlying file, if any.
func (d *Document) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Text extracts plain text from the first maxPages pages (all pages when
// maxPages <= 0). Pages that fail to decode are skipped.
func (d *Document) Text(maxPages int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	n := d.r.NumPage()
	if maxPages <= 0 || maxPages > n {
		maxPages = n
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := d.r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}
	return builder.String()
}

// Title returns the document title: the Info dictionary's Title when set,
// otherwise the first substantial line of page one. Empty when neither exists.
func (d *Document) Title() string {
	if title := strings.TrimSpace(d.infoString("Title")); title != "" && !isPlaceholderTitle(title) {
		return title
	}
	return titleFromText(d.Text(1))
}

// DOI returns the first well-formed DOI printed in the first pages.
func (d *Document) DOI() (string, bool) {
	return identifier.ValidateDOI(d.Text(doiPages))
}

func (d *Document) infoString(key string) (s string) {
	// malformed trailers panic inside the reader
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	info := d.r.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return info.Key(key).Text()
}

// ExtractTitle opens path and returns its title. A PDF without a usable
// title yields "" and no error.
func ExtractTitle(path string) (string, error) {
	d, err := Open(path)
	if err != nil {
		return "", err
	}
	defer d.Close()
	return d.Title(), nil
}

// TitleFromBytes is ExtractTitle for a download still held in memory.
func TitleFromBytes(data []byte) (string, error) {
	d, err := Parse(data)
	if err != nil {
		return "", err
	}
	return d.Title(), nil
}

// ExtractDOI opens path and returns the first DOI found, or "" if none.
func ExtractDOI(path string) (string, error) {
	d, err := Open(path)
	if err != nil {
		return "", err
	}
	defer d.Close()
	doi, _ := d.DOI()
	return doi, nil
}

// IsPDFFile checks the header of the file at path.
func IsPDFFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return IsPDF(head), nil
}

// titleFromText picks the first line long enough to be a title that does
// not look like a running header.
func titleFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line
		}
	}
	return ""
}

// isPlaceholderTitle catches the Info titles that word processors and
// LaTeX toolchains leave behind.
func isPlaceholderTitle(title string) bool {
	lower := strings.ToLower(title)
	switch {
	case lower == "untitled", lower == "title":
		return true
	case strings.HasSuffix(lower, ".dvi"), strings.HasSuffix(lower, ".tex"),
		strings.HasSuffix(lower, ".doc"), strings.HasSuffix(lower, ".docx"),
		strings.HasSuffix(lower, ".pdf"):
		return true
	case strings.HasPrefix(lower, "microsoft word - "):
		return true
	}
	return false
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "journal") {
		return true
	}
	if strings.Contains(lower, "volume") && strings.Contains(lower, "issue") {
		return true
	}
	if strings.Contains(lower, "copyright") {
		return true
	}
	if strings.Contains(lower, "article") && strings.Contains(lower, "published") {
		return true
	}
	if strings.HasPrefix(lower, "arxiv:") {
		return true
	}
	return false
}
