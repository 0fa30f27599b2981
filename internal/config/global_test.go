package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// withConfigHome points XDG_CONFIG_HOME at a temp dir and clears
// the env overrides for the duration of the test.
func withConfigHome(t *testing.T) string {
	t.Helper()
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	for _, key := range []string{EnvDownloadDir, EnvLibrary, EnvCrossrefMailto, EnvLogLevel, EnvRateLimit} {
		t.Setenv(key, "")
	}
	// keep a stray .env in the working directory out of the way
	wd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return tmpDir
}

func writeConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, GlobalConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, GlobalConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	want := "/custom/config/cite/config.yml"
	if got := GlobalConfigPath(); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, _ := os.UserHomeDir()
	want = filepath.Join(home, ".config", "cite", "config.yml")
	if got := GlobalConfigPath(); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoad_NotFound(t *testing.T) {
	withConfigHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.SourcePriority) != 2 || cfg.SourcePriority[0] != SourceCrossrefNormalized {
		t.Errorf("SourcePriority = %v, want defaults", cfg.SourcePriority)
	}
	if cfg.RateLimit != DefaultRateLimit {
		t.Errorf("RateLimit = %v, want %v", cfg.RateLimit, DefaultRateLimit)
	}
	if cfg.DownloadDir != ExpandPath(DefaultDownloadDir) {
		t.Errorf("DownloadDir = %q", cfg.DownloadDir)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
}

func TestLoad_Valid(t *testing.T) {
	home := withConfigHome(t)
	writeConfig(t, home, `
download_dir: /tmp/pdfs
library_path: /tmp/lib
source_priority: [crossref]
replacements:
  space: "_"
  ":": ""
crossref_mailto: me@example.org
rate_limit: 2
retry:
  max_attempts: 5
  initial_backoff: 1s
breaker:
  open_timeout: 1m
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DownloadDir != "/tmp/pdfs" {
		t.Errorf("DownloadDir = %q", cfg.DownloadDir)
	}
	if cfg.LibraryPath != "/tmp/lib" {
		t.Errorf("LibraryPath = %q", cfg.LibraryPath)
	}
	if len(cfg.SourcePriority) != 1 || cfg.SourcePriority[0] != SourceCrossref {
		t.Errorf("SourcePriority = %v", cfg.SourcePriority)
	}
	if cfg.CrossrefMailto != "me@example.org" {
		t.Errorf("CrossrefMailto = %q", cfg.CrossrefMailto)
	}
	if cfg.RateLimit != 2 {
		t.Errorf("RateLimit = %v", cfg.RateLimit)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.InitialBackoff != time.Second {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.Breaker.OpenTimeout != time.Minute {
		t.Errorf("Breaker.OpenTimeout = %v", cfg.Breaker.OpenTimeout)
	}

	opts := cfg.FilenameOptions()
	if opts.Overrides[' '] != "_" || opts.Overrides[':'] != "" {
		t.Errorf("FilenameOptions().Overrides = %v", opts.Overrides)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	home := withConfigHome(t)
	writeConfig(t, home, "download_dir: /from/file\n")

	t.Setenv(EnvDownloadDir, "/from/env")
	t.Setenv(EnvLibrary, "/lib/env")
	t.Setenv(EnvCrossrefMailto, "env@example.org")
	t.Setenv(EnvRateLimit, "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DownloadDir != "/from/env" {
		t.Errorf("DownloadDir = %q, want env value", cfg.DownloadDir)
	}
	if cfg.LibraryPath != "/lib/env" {
		t.Errorf("LibraryPath = %q", cfg.LibraryPath)
	}
	if cfg.CrossrefMailto != "env@example.org" {
		t.Errorf("CrossrefMailto = %q", cfg.CrossrefMailto)
	}
	if cfg.RateLimit != 0.5 {
		t.Errorf("RateLimit = %v", cfg.RateLimit)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     string
	}{
		{"bad yaml", "source_priority: [unclosed\n", ""},
		{"unknown source", "source_priority: [scholar]\n", ""},
		{"duplicate source", "source_priority: [crossref, crossref]\n", ""},
		{"negative rate", "rate_limit: -1\n", ""},
		{"bad ratio", "breaker:\n  failure_ratio: 2\n", ""},
		{"multi-char replacement key", "replacements:\n  ab: x\n", ""},
		{"unknown pdf reader", "pdf_reader: acrobat\n", ""},
		{"bad env rate", "", "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := withConfigHome(t)
			if tt.content != "" {
				writeConfig(t, home, tt.content)
			}
			if tt.env != "" {
				t.Setenv(EnvRateLimit, tt.env)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestLoad_ValidationErrorIsTyped(t *testing.T) {
	home := withConfigHome(t)
	writeConfig(t, home, "rate_limit: -3\n")

	_, err := Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestGlobalConfigCache(t *testing.T) {
	home := withConfigHome(t)
	writeConfig(t, home, "crossref_mailto: first@example.org\n")

	cfg1, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	writeConfig(t, home, "crossref_mailto: second@example.org\n")
	cfg2, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.CrossrefMailto != "first@example.org" {
		t.Errorf("cached config not used, got %q", cfg2.CrossrefMailto)
	}
	if cfg1 != cfg2 {
		t.Error("Load should return the cached pointer")
	}

	ResetGlobalConfigCache()
	cfg3, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg3.CrossrefMailto != "second@example.org" {
		t.Errorf("after reset got %q", cfg3.CrossrefMailto)
	}
}

func TestConfig_SaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := &Config{
		LibraryPath:    "/lib",
		SourcePriority: []string{SourceCrossref},
		Retry:          RetryConfig{MaxAttempts: 2},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.LibraryPath != "/lib" || got.Retry.MaxAttempts != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestHelpfulConfigMessage(t *testing.T) {
	msg := HelpfulConfigMessage()
	for _, want := range []string{"library_path", "cite init"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}
