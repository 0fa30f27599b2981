package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matsen/citescrape/internal/pdf"
	"github.com/matsen/citescrape/internal/sanitize"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "cite"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// DefaultDownloadDir receives downloaded PDFs before they are added to the library.
	DefaultDownloadDir = "~/Downloads"

	// DefaultRateLimit is requests per second per external service.
	DefaultRateLimit = 5.0
)

// Source names accepted in source_priority.
const (
	SourceCrossrefNormalized = "crossref-normalized"
	SourceCrossref           = "crossref"
)

// DefaultSourcePriority puts the library-style Crossref record first, so its
// key names win over the raw Crossref API record.
var DefaultSourcePriority = []string{SourceCrossrefNormalized, SourceCrossref}

// Environment variables that override the config file.
const (
	EnvDownloadDir    = "CITE_DOWNLOAD_DIR"
	EnvLibrary        = "CITE_LIBRARY"
	EnvCrossrefMailto = "CROSSREF_MAILTO"
	EnvLogLevel       = "CITE_LOG_LEVEL"
	EnvRateLimit      = "CITE_RATE_LIMIT"
)

// Config is the pipeline configuration stored in ~/.config/cite/config.yml.
type Config struct {
	DownloadDir    string            `yaml:"download_dir,omitempty"`
	LibraryPath    string            `yaml:"library_path,omitempty"`
	SourcePriority []string          `yaml:"source_priority,omitempty"`
	Replacements   map[string]string `yaml:"replacements,omitempty"` // filename character -> replacement
	CrossrefMailto string            `yaml:"crossref_mailto,omitempty"`
	UserAgent      string            `yaml:"user_agent,omitempty"`
	RateLimit      float64           `yaml:"rate_limit,omitempty"`
	LogLevel       string            `yaml:"log_level,omitempty"`
	LogFile        string            `yaml:"log_file,omitempty"`
	PDFReader      string            `yaml:"pdf_reader,omitempty"` // see pdf.Readers
	Retry          RetryConfig       `yaml:"retry,omitempty"`
	Breaker        BreakerConfig     `yaml:"breaker,omitempty"`
}

// RetryConfig controls retries of metadata lookups.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts,omitempty"`
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
}

// BreakerConfig controls the circuit breaker around each metadata source.
type BreakerConfig struct {
	Disabled     bool          `yaml:"disabled,omitempty"`
	MinRequests  uint32        `yaml:"min_requests,omitempty"`
	FailureRatio float64       `yaml:"failure_ratio,omitempty"`
	OpenTimeout  time.Duration `yaml:"open_timeout,omitempty"`
}

// globalConfigCache caches the loaded config.
var globalConfigCache *Config

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/cite/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// Load reads the global config, applies .env and environment overrides,
// fills defaults, and validates the result. A missing file is not an error.
func Load() (*Config, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := LoadFile(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfigCache = cfg
	return cfg, nil
}

// LoadFile decodes a config file without defaults or env overrides.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDownloadDir); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv(EnvLibrary); v != "" {
		c.LibraryPath = v
	}
	if v := os.Getenv(EnvCrossrefMailto); v != "" {
		c.CrossrefMailto = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvRateLimit, v)
		}
		c.RateLimit = f
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DownloadDir == "" {
		c.DownloadDir = DefaultDownloadDir
	}
	c.DownloadDir = ExpandPath(c.DownloadDir)
	c.LibraryPath = ExpandPath(c.LibraryPath)
	if c.LogFile != "" {
		c.LogFile = ExpandPath(c.LogFile)
	}
	if len(c.SourcePriority) == 0 {
		c.SourcePriority = append([]string(nil), DefaultSourcePriority...)
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = 5 * time.Second
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = 3
	}
	if c.Breaker.FailureRatio == 0 {
		c.Breaker.FailureRatio = 0.6
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Breaker.FailureRatio < 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("%w: breaker.failure_ratio must be in [0, 1]", ErrInvalidConfig)
	}
	seen := make(map[string]bool)
	for _, s := range c.SourcePriority {
		if s != SourceCrossrefNormalized && s != SourceCrossref {
			return fmt.Errorf("%w: unknown source %q in source_priority", ErrInvalidConfig, s)
		}
		if seen[s] {
			return fmt.Errorf("%w: source %q listed twice", ErrInvalidConfig, s)
		}
		seen[s] = true
	}
	if c.PDFReader != "" && !slices.Contains(pdf.Readers, c.PDFReader) {
		return fmt.Errorf("%w: unknown pdf_reader %q (want one of %v)", ErrInvalidConfig, c.PDFReader, pdf.Readers)
	}
	if _, err := sanitize.ParseOverrides(c.Replacements); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// FilenameOptions returns the sanitize options built from the replacement table.
func (c *Config) FilenameOptions() sanitize.Options {
	overrides, _ := sanitize.ParseOverrides(c.Replacements)
	return sanitize.Options{Overrides: overrides}
}

// Save writes the config as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// HelpfulConfigMessage returns a hint shown when no library is configured.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No cite library found.

Tip: create %s to set a default library:
  mkdir -p %s
  echo 'library_path: /path/to/your/papers' > %s

or run 'cite init' inside the directory that should hold the library.`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
