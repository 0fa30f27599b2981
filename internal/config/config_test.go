package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathFunctions(t *testing.T) {
	root := "/test/library"

	tests := []struct {
		name     string
		fn       func(string) string
		expected string
	}{
		{"MetaPath", MetaPath, "/test/library/.cite"},
		{"IndexPath", IndexPath, "/test/library/.cite/library.jsonl"},
		{"CachePath", CachePath, "/test/library/.cite/cache"},
		{"DBPath", DBPath, "/test/library/.cite/cache/library.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(root)
			if got != tt.expected {
				t.Errorf("%s(%q) = %q, want %q", tt.name, root, got, tt.expected)
			}
		})
	}
}

func TestIsLibrary(t *testing.T) {
	tmpDir := t.TempDir()

	if IsLibrary(tmpDir) {
		t.Error("IsLibrary should return false for empty dir")
	}

	if err := os.MkdirAll(MetaPath(tmpDir), 0755); err != nil {
		t.Fatal(err)
	}

	if !IsLibrary(tmpDir) {
		t.Error("IsLibrary should return true after creating .cite")
	}
}

func TestIsLibrary_FileNotDir(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(MetaPath(tmpDir), []byte("not a dir"), 0644); err != nil {
		t.Fatal(err)
	}

	if IsLibrary(tmpDir) {
		t.Error("IsLibrary should return false when .cite is a file")
	}
}

func TestFindLibrary(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(MetaPath(tmpDir), 0755); err != nil {
		t.Fatal(err)
	}

	subDir := filepath.Join(tmpDir, "papers", "2021")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	found, err := FindLibrary(subDir)
	if err != nil {
		t.Fatalf("FindLibrary failed: %v", err)
	}

	want, _ := filepath.Abs(tmpDir)
	if found != want {
		t.Errorf("FindLibrary = %q, want %q", found, want)
	}
}

func TestFindLibrary_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := FindLibrary(tmpDir)
	if err == nil {
		t.Error("FindLibrary should fail without a .cite directory")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~", home},
		{"~/Downloads", filepath.Join(home, "Downloads")},
	}

	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected directory at %s", dir)
	}
}

func TestConstants(t *testing.T) {
	if LibraryDir != ".cite" {
		t.Errorf("LibraryDir = %q", LibraryDir)
	}
	if !strings.HasSuffix(IndexFile, ".jsonl") {
		t.Errorf("IndexFile = %q, want a .jsonl file", IndexFile)
	}
}
