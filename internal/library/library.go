// Package library stores committed documents in a reference-manager style
// folder tree. Each document gets a folder holding its files and an
// info.yaml with its metadata. A JSONL index at .cite/library.jsonl is the
// source of truth for queries; the SQLite cache under .cite/cache is
// rebuilt from it on demand.
package library

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/matsen/citescrape/internal/config"
	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/pdf"
)

var (
	// ErrNoFiles is returned when a document is added without files.
	ErrNoFiles = errors.New("no files to add")

	// ErrInvalidFile is returned for a missing file or a .pdf that is not a PDF.
	ErrInvalidFile = errors.New("invalid file")

	// ErrDuplicate is returned when the library already holds the document.
	ErrDuplicate = errors.New("document already in library")

	// ErrDeclined is returned when the user answers no to the confirmation.
	ErrDeclined = errors.New("add declined")

	// ErrNotLibrary is returned by Open for a directory without .cite.
	ErrNotLibrary = errors.New("not a cite library")
)

// InfoFile is the per-document metadata file.
const InfoFile = "info.yaml"

// AddOptions control a single Add.
type AddOptions struct {
	// Confirm asks before writing anything.
	Confirm bool
	// Link symlinks the files instead of copying them.
	Link bool
	// AllowDuplicate skips the DOI and file-content duplicate checks.
	AllowDuplicate bool
}

// Prompter asks a yes/no question.
type Prompter func(question string) (bool, error)

// Library is a document folder tree rooted at a directory.
type Library struct {
	root   string
	prompt Prompter
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Library.
type Option func(*Library)

// WithPrompter sets the confirmation prompt.
func WithPrompter(p Prompter) Option {
	return func(l *Library) {
		l.prompt = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Library) {
		l.logger = logger
	}
}

// WithClock sets the clock used for added timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		l.now = now
	}
}

// Init creates the library layout under root and opens it.
func Init(root string, opts ...Option) (*Library, error) {
	if err := config.EnsureDir(config.CachePath(root)); err != nil {
		return nil, err
	}
	index := config.IndexPath(root)
	if _, err := os.Stat(index); os.IsNotExist(err) {
		if err := os.WriteFile(index, nil, 0644); err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
	}
	return Open(root, opts...)
}

// Open opens an existing library.
func Open(root string, opts ...Option) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving library path: %w", err)
	}
	if !config.IsLibrary(abs) {
		return nil, fmt.Errorf("%w: %s", ErrNotLibrary, abs)
	}

	l := &Library{
		root:   abs,
		prompt: StdinPrompter(os.Stdin, os.Stderr),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Root returns the library's root directory.
func (l *Library) Root() string { return l.root }

// Entries reads the JSONL index.
func (l *Library) Entries() ([]Entry, error) {
	return ReadAll(config.IndexPath(l.root))
}

// Add stores files and rec as a new document and returns its folder.
// Nothing is written if validation, the duplicate check or the
// confirmation fails.
func (l *Library) Add(ctx context.Context, files []string, rec metadata.Record, opts AddOptions) (string, error) {
	if len(files) == 0 {
		return "", ErrNoFiles
	}

	fingerprints := make([]string, 0, len(files))
	for _, f := range files {
		if err := checkFile(f); err != nil {
			return "", err
		}
		sum, err := Fingerprint(f)
		if err != nil {
			return "", err
		}
		fingerprints = append(fingerprints, sum)
	}

	entries, err := l.Entries()
	if err != nil {
		return "", err
	}

	if !opts.AllowDuplicate {
		if i, found := FindByDOI(entries, rec.String("doi")); found {
			return "", fmt.Errorf("%w: doi %s is %s", ErrDuplicate, rec.String("doi"), entries[i].Key)
		}
		for _, sum := range fingerprints {
			if i, found := FindByFingerprint(entries, sum); found {
				return "", fmt.Errorf("%w: identical file in %s", ErrDuplicate, entries[i].Key)
			}
		}
	}

	key := UniqueKey(entries, CiteKey(rec), func(k string) bool {
		_, err := os.Stat(filepath.Join(l.root, k))
		return err == nil
	})

	if opts.Confirm {
		ok, err := l.prompt(confirmQuestion(key, rec, files))
		if err != nil {
			return "", fmt.Errorf("confirmation: %w", err)
		}
		if !ok {
			return "", ErrDeclined
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	folder := filepath.Join(l.root, key)
	if err := os.Mkdir(folder, 0755); err != nil {
		return "", fmt.Errorf("creating document folder: %w", err)
	}

	names, err := placeFiles(folder, files, opts.Link)
	if err != nil {
		os.RemoveAll(folder)
		return "", err
	}

	added := l.now().UTC()
	info := rec.Clone()
	info["ref"] = key
	info["files"] = names
	info["time-added"] = added.Format("2006-01-02-15:04:05")
	if err := WriteInfo(filepath.Join(folder, InfoFile), info); err != nil {
		os.RemoveAll(folder)
		return "", err
	}

	entry := newEntry(key, rec)
	entry.Files = names
	entry.Fingerprints = fingerprints
	entry.Added = added
	if err := Append(config.IndexPath(l.root), entry); err != nil {
		os.RemoveAll(folder)
		return "", err
	}

	l.logger.Info().Str("key", key).Str("folder", folder).Int("files", len(names)).Msg("added to library")
	return folder, nil
}

// Index opens the SQLite cache, rebuilding it when the JSONL index is newer.
func (l *Library) Index() (*DB, error) {
	dbPath := config.DBPath(l.root)
	stale := isStale(dbPath, config.IndexPath(l.root))

	if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, err
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	if stale {
		if _, err := db.RebuildFromJSONL(config.IndexPath(l.root)); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Rebuild reloads the SQLite cache from the JSONL index.
func (l *Library) Rebuild() (int, error) {
	if err := config.EnsureDir(config.CachePath(l.root)); err != nil {
		return 0, err
	}
	db, err := OpenDB(config.DBPath(l.root))
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return db.RebuildFromJSONL(config.IndexPath(l.root))
}

// Reindex rewrites the JSONL index from the info.yaml files on disk, for
// folders added or edited by other tools.
func (l *Library) Reindex() (int, error) {
	paths, err := filepath.Glob(filepath.Join(l.root, "*", InfoFile))
	if err != nil {
		return 0, err
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		info, err := ReadInfo(p)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable info file")
			continue
		}
		folder := filepath.Dir(p)
		key := filepath.Base(folder)

		e := newEntry(key, info)
		e.Files = infoFiles(info)
		for _, name := range e.Files {
			if sum, err := Fingerprint(filepath.Join(folder, name)); err == nil {
				e.Fingerprints = append(e.Fingerprints, sum)
			}
		}
		if st, err := os.Stat(p); err == nil {
			e.Added = st.ModTime().UTC()
		}
		entries = append(entries, e)
	}

	if err := WriteAll(config.IndexPath(l.root), entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of a file's contents.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func checkFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidFile, path)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		ok, err := pdf.IsPDFFile(path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s is not a PDF", ErrInvalidFile, path)
		}
	}
	return nil
}

// placeFiles copies or links files into folder and returns their names there.
func placeFiles(folder string, files []string, link bool) ([]string, error) {
	names := make([]string, 0, len(files))
	seen := make(map[string]int)
	for _, src := range files {
		name := filepath.Base(src)
		if n := seen[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n+1, ext)
		}
		seen[filepath.Base(src)]++
		dst := filepath.Join(folder, name)

		if link {
			abs, err := filepath.Abs(src)
			if err != nil {
				return nil, err
			}
			if err := os.Symlink(abs, dst); err != nil {
				return nil, fmt.Errorf("linking %s: %w", src, err)
			}
		} else if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

func isStale(dbPath, jsonlPath string) bool {
	dbInfo, err := os.Stat(dbPath)
	if err != nil {
		return true
	}
	jsonlInfo, err := os.Stat(jsonlPath)
	if err != nil {
		return false
	}
	return jsonlInfo.ModTime().After(dbInfo.ModTime())
}

func confirmQuestion(key string, rec metadata.Record, files []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Add %s?\n", key)
	for _, field := range []string{"title", "author", "year", "journal", "doi", "tags"} {
		if v := rec.String(field); v != "" {
			fmt.Fprintf(&b, "  %-8s %s\n", field+":", v)
		}
	}
	for _, f := range files {
		fmt.Fprintf(&b, "  file:    %s\n", f)
	}
	return b.String()
}

// StdinPrompter asks on out and reads a y/n answer from in. Anything but
// y or yes counts as no.
func StdinPrompter(in io.Reader, out io.Writer) Prompter {
	reader := bufio.NewReader(in)
	return func(question string) (bool, error) {
		fmt.Fprint(out, question)
		fmt.Fprint(out, "[y/N] ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}
