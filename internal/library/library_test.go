package library

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matsen/citescrape/internal/config"
	"github.com/matsen/citescrape/internal/metadata"
)

var fixedNow = time.Date(2021, 5, 31, 17, 10, 44, 0, time.UTC)

func newTestLibrary(t *testing.T, opts ...Option) *Library {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	lib, err := Init(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return lib
}

func writePDF(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"+body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleRecord() metadata.Record {
	return metadata.Record{
		"title":   "Variational Bayesian phylogenetic inference",
		"author":  "Zhang, Cheng and Matsen, Frederick A.",
		"year":    2021,
		"journal": "Systematic Biology",
		"doi":     "10.1093/sysbio/syab006",
		"tags":    "phylo vbpi",
	}
}

func TestInitAndOpen(t *testing.T) {
	root := t.TempDir()

	if _, err := Open(root); !errors.Is(err, ErrNotLibrary) {
		t.Errorf("Open on plain dir: %v, want ErrNotLibrary", err)
	}

	if _, err := Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(config.IndexPath(root)); err != nil {
		t.Errorf("index not created: %v", err)
	}
	if _, err := Open(root); err != nil {
		t.Errorf("Open after Init: %v", err)
	}
	// Init is idempotent
	if _, err := Init(root); err != nil {
		t.Errorf("second Init: %v", err)
	}
}

func TestAdd(t *testing.T) {
	lib := newTestLibrary(t)
	src := writePDF(t, t.TempDir(), "download.pdf", "content")

	folder, err := lib.Add(context.Background(), []string{src}, sampleRecord(), AddOptions{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if filepath.Base(folder) != "Zhang2021-vb" {
		t.Errorf("folder = %q", filepath.Base(folder))
	}
	if _, err := os.Stat(filepath.Join(folder, "download.pdf")); err != nil {
		t.Errorf("file not copied: %v", err)
	}
	// the source stays in place
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source removed: %v", err)
	}

	info, err := ReadInfo(filepath.Join(folder, InfoFile))
	if err != nil {
		t.Fatal(err)
	}
	if info["ref"] != "Zhang2021-vb" {
		t.Errorf("ref = %v", info["ref"])
	}
	if info["time-added"] != "2021-05-31-17:10:44" {
		t.Errorf("time-added = %v", info["time-added"])
	}
	if info.String("title") != "Variational Bayesian phylogenetic inference" {
		t.Errorf("title = %v", info["title"])
	}

	entries, err := lib.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Year != 2021 || e.DOI != "10.1093/sysbio/syab006" || len(e.Fingerprints) != 1 {
		t.Errorf("entry = %+v", e)
	}
	if len(e.Tags) != 2 || e.Tags[0] != "phylo" {
		t.Errorf("tags = %v", e.Tags)
	}
	if !e.Added.Equal(fixedNow) {
		t.Errorf("added = %v", e.Added)
	}
}

func TestAdd_Link(t *testing.T) {
	lib := newTestLibrary(t)
	src := writePDF(t, t.TempDir(), "a.pdf", "x")

	folder, err := lib.Add(context.Background(), []string{src}, sampleRecord(), AddOptions{Link: true})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	st, err := os.Lstat(filepath.Join(folder, "a.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode()&os.ModeSymlink == 0 {
		t.Error("expected a symlink")
	}
}

func TestAdd_Invalid(t *testing.T) {
	lib := newTestLibrary(t)
	dir := t.TempDir()

	html := filepath.Join(dir, "paywall.pdf")
	if err := os.WriteFile(html, []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		files []string
		want  error
	}{
		{"no files", nil, ErrNoFiles},
		{"missing", []string{filepath.Join(dir, "none.pdf")}, ErrInvalidFile},
		{"not a pdf", []string{html}, ErrInvalidFile},
		{"directory", []string{dir}, ErrInvalidFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lib.Add(context.Background(), tt.files, sampleRecord(), AddOptions{})
			if !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}

	entries, _ := lib.Entries()
	if len(entries) != 0 {
		t.Errorf("invalid adds left %d entries", len(entries))
	}
}

func TestAdd_Duplicates(t *testing.T) {
	lib := newTestLibrary(t)
	dir := t.TempDir()
	ctx := context.Background()

	first := writePDF(t, dir, "a.pdf", "same")
	if _, err := lib.Add(ctx, []string{first}, sampleRecord(), AddOptions{}); err != nil {
		t.Fatal(err)
	}

	// same DOI, different case and resolver prefix
	other := writePDF(t, dir, "b.pdf", "different")
	rec := sampleRecord().With("doi", "https://doi.org/10.1093/SYSBIO/syab006")
	if _, err := lib.Add(ctx, []string{other}, rec, AddOptions{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("same DOI: %v, want ErrDuplicate", err)
	}

	// same bytes, no DOI
	copyPath := writePDF(t, dir, "c.pdf", "same")
	noDOI := metadata.Record{"title": "Something else"}
	if _, err := lib.Add(ctx, []string{copyPath}, noDOI, AddOptions{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("same content: %v, want ErrDuplicate", err)
	}

	// explicitly allowed: gets a distinct key
	folder, err := lib.Add(ctx, []string{other}, sampleRecord(), AddOptions{AllowDuplicate: true})
	if err != nil {
		t.Fatalf("AllowDuplicate: %v", err)
	}
	if filepath.Base(folder) != "Zhang2021-vb-2" {
		t.Errorf("folder = %q", filepath.Base(folder))
	}
}

func TestAdd_Confirm(t *testing.T) {
	var asked string
	answer := false
	lib := newTestLibrary(t, WithPrompter(func(q string) (bool, error) {
		asked = q
		return answer, nil
	}))
	src := writePDF(t, t.TempDir(), "a.pdf", "x")

	_, err := lib.Add(context.Background(), []string{src}, sampleRecord(), AddOptions{Confirm: true})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("declined Add: %v", err)
	}
	if !strings.Contains(asked, "Zhang2021-vb") || !strings.Contains(asked, "Systematic Biology") {
		t.Errorf("question = %q", asked)
	}
	if _, err := os.Stat(filepath.Join(lib.Root(), "Zhang2021-vb")); !os.IsNotExist(err) {
		t.Error("declined add must not create a folder")
	}

	answer = true
	if _, err := lib.Add(context.Background(), []string{src}, sampleRecord(), AddOptions{Confirm: true}); err != nil {
		t.Errorf("confirmed Add: %v", err)
	}
}

func TestAdd_SameFileNames(t *testing.T) {
	lib := newTestLibrary(t)
	a := writePDF(t, t.TempDir(), "paper.pdf", "one")
	b := writePDF(t, t.TempDir(), "paper.pdf", "two")

	folder, err := lib.Add(context.Background(), []string{a, b}, sampleRecord(), AddOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"paper.pdf", "paper-2.pdf"} {
		if _, err := os.Stat(filepath.Join(folder, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestStdinPrompter(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := StdinPrompter(strings.NewReader(tt.input), &out)("Add?\n")
		if err != nil {
			t.Fatalf("prompt(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("prompt(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Errorf("prompt output = %q", out.String())
		}
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, dir, "a.pdf", "same")
	b := writePDF(t, dir, "b.pdf", "same")
	c := writePDF(t, dir, "c.pdf", "different")

	fa, _ := Fingerprint(a)
	fb, _ := Fingerprint(b)
	fc, _ := Fingerprint(c)
	if fa != fb {
		t.Error("identical content should fingerprint identically")
	}
	if fa == fc {
		t.Error("different content should differ")
	}
	if len(fa) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fa))
	}
}

func TestReindex(t *testing.T) {
	lib := newTestLibrary(t)
	src := writePDF(t, t.TempDir(), "a.pdf", "x")
	if _, err := lib.Add(context.Background(), []string{src}, sampleRecord(), AddOptions{}); err != nil {
		t.Fatal(err)
	}

	// a folder created by another tool
	manual := filepath.Join(lib.Root(), "manual")
	if err := os.Mkdir(manual, 0755); err != nil {
		t.Fatal(err)
	}
	if err := WriteInfo(filepath.Join(manual, InfoFile), metadata.Record{"title": "Hand made", "tags": []any{"misc"}}); err != nil {
		t.Fatal(err)
	}

	n, err := lib.Reindex()
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n != 2 {
		t.Errorf("Reindex = %d, want 2", n)
	}

	entries, _ := lib.Entries()
	if i, ok := FindByKey(entries, "manual"); !ok || entries[i].Tags[0] != "misc" {
		t.Errorf("manual entry missing or wrong: %+v", entries)
	}
	if i, ok := FindByKey(entries, "Zhang2021-vb"); !ok || len(entries[i].Fingerprints) != 1 {
		t.Errorf("added entry lost its fingerprint: %+v", entries)
	}
}

func TestHarvestTags(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	if err := os.WriteFile(a, []byte("tags: one two\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("tags:\n  - two\n  - three\ntitle: x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	set, err := HarvestTags(a, b)
	if err != nil {
		t.Fatalf("HarvestTags: %v", err)
	}
	if set.String() != "one three two" {
		t.Errorf("tags = %q", set.String())
	}

	if _, err := HarvestTags(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLibraryTags(t *testing.T) {
	lib := newTestLibrary(t)
	src := writePDF(t, t.TempDir(), "a.pdf", "x")
	if _, err := lib.Add(context.Background(), []string{src}, sampleRecord(), AddOptions{}); err != nil {
		t.Fatal(err)
	}
	set, err := lib.Tags()
	if err != nil {
		t.Fatal(err)
	}
	if set.String() != "phylo vbpi" {
		t.Errorf("Tags() = %q", set.String())
	}
}

func TestLibraryRecord(t *testing.T) {
	lib := newTestLibrary(t)
	src := writePDF(t, t.TempDir(), "paper.pdf", "record")

	folder, err := lib.Add(context.Background(), []string{src}, sampleRecord(), AddOptions{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	rec, err := lib.Record(filepath.Base(folder))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.String("doi") != "10.1093/sysbio/syab006" || rec.String("ref") != "Zhang2021-vb" {
		t.Errorf("record = %v", rec)
	}

	if _, err := lib.Record("Missing2000-xx"); err == nil {
		t.Error("Record for a missing key should fail")
	}
}
