package library

import (
	"path/filepath"
	"testing"

	"github.com/matsen/citescrape/internal/metadata"
)

func TestCiteKey(t *testing.T) {
	tests := []struct {
		name string
		rec  metadata.Record
		want string
	}{
		{"family, given", metadata.Record{"author": "Zhang, Cheng", "year": 2021, "title": "Variational Bayes"}, "Zhang2021-vb"},
		{"given family", metadata.Record{"author": "Erick Matsen and Someone Else", "year": "2019", "title": "The tree of life"}, "Matsen2019-tl"},
		{"float year", metadata.Record{"author": "O'Brien, Pat", "year": float64(2010), "title": "A study"}, "OBrien2010-sx"},
		{"nothing", metadata.Record{}, "Unknown9999-xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CiteKey(tt.rec); got != tt.want {
				t.Errorf("CiteKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")

	entries, err := ReadAll(path)
	if err != nil || entries != nil {
		t.Fatalf("ReadAll(missing) = %v, %v", entries, err)
	}

	a := Entry{Key: "A2020-xx", Folder: "A2020-xx", Files: []string{"a.pdf"}, DOI: "10.1/A"}
	b := Entry{Key: "B2021-xx", Folder: "B2021-xx", Files: []string{"b.pdf"}, Fingerprints: []string{"abc"}}
	if err := Append(path, a); err != nil {
		t.Fatal(err)
	}
	if err := Append(path, b); err != nil {
		t.Fatal(err)
	}

	entries, err = ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}

	if i, ok := FindByDOI(entries, "10.1/a"); !ok || i != 0 {
		t.Errorf("FindByDOI = %d, %v", i, ok)
	}
	if _, ok := FindByDOI(entries, ""); ok {
		t.Error("empty DOI should never match")
	}
	if i, ok := FindByFingerprint(entries, "abc"); !ok || i != 1 {
		t.Errorf("FindByFingerprint = %d, %v", i, ok)
	}

	if err := WriteAll(path, entries[:1]); err != nil {
		t.Fatal(err)
	}
	entries, _ = ReadAll(path)
	if len(entries) != 1 {
		t.Errorf("after WriteAll entries = %d", len(entries))
	}
}

func TestUniqueKey(t *testing.T) {
	entries := []Entry{{Key: "X2020-ab"}, {Key: "X2020-ab-2"}}
	if got := UniqueKey(entries, "Y2020-ab", nil); got != "Y2020-ab" {
		t.Errorf("free key = %q", got)
	}
	if got := UniqueKey(entries, "X2020-ab", nil); got != "X2020-ab-3" {
		t.Errorf("taken key = %q", got)
	}
	taken := func(k string) bool { return k == "Y2020-ab" }
	if got := UniqueKey(entries, "Y2020-ab", taken); got != "Y2020-ab-2" {
		t.Errorf("disk-taken key = %q", got)
	}
}
