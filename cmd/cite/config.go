package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/config"
)

func init() {
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set configuration values in the global config file.

Usage:
  cite config                                # Show effective config
  cite config download-dir                   # Get specific value
  cite config library-path ~/papers          # Set value
  cite config path                           # Show config file location

Keys:
  download-dir     Where PDFs are saved before being added
  library-path     Default library directory
  crossref-mailto  Contact address sent to Crossref (polite pool)
  user-agent       User-Agent for all HTTP requests
  rate-limit       Requests per second per service
  log-level        trace, debug, info, warn, error, disabled
  log-file         Write logs to this file instead of stderr
  pdf-reader       Viewer for 'cite open' (system, skim, preview, zathura, evince, okular)`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalConfigPath()
		if humanOutput {
			fmt.Println(path)
			return nil
		}
		outputJSON(StatusResponse{Status: "ok", Path: path})
		return nil
	},
}

// configKeys maps CLI keys to accessors on the config.
var configKeys = map[string]struct {
	get func(c *config.Config) string
	set func(c *config.Config, v string) error
}{
	"download-dir": {
		get: func(c *config.Config) string { return c.DownloadDir },
		set: func(c *config.Config, v string) error { c.DownloadDir = v; return nil },
	},
	"library-path": {
		get: func(c *config.Config) string { return c.LibraryPath },
		set: func(c *config.Config, v string) error { c.LibraryPath = v; return nil },
	},
	"crossref-mailto": {
		get: func(c *config.Config) string { return c.CrossrefMailto },
		set: func(c *config.Config, v string) error { c.CrossrefMailto = v; return nil },
	},
	"user-agent": {
		get: func(c *config.Config) string { return c.UserAgent },
		set: func(c *config.Config, v string) error { c.UserAgent = v; return nil },
	},
	"rate-limit": {
		get: func(c *config.Config) string { return strconv.FormatFloat(c.RateLimit, 'g', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("rate-limit must be a number: %w", err)
			}
			c.RateLimit = f
			return nil
		},
	},
	"log-level": {
		get: func(c *config.Config) string { return c.LogLevel },
		set: func(c *config.Config, v string) error { c.LogLevel = v; return nil },
	},
	"log-file": {
		get: func(c *config.Config) string { return c.LogFile },
		set: func(c *config.Config, v string) error { c.LogFile = v; return nil },
	},
	"pdf-reader": {
		get: func(c *config.Config) string { return c.PDFReader },
		set: func(c *config.Config, v string) error { c.PDFReader = v; return nil },
	},
}

// normalizeKey accepts both download-dir and download_dir.
func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", "-")
}

func runConfig(cmd *cobra.Command, args []string) error {
	// No args: show the effective config, defaults and env applied
	if len(args) == 0 {
		cfg := mustLoadConfig()
		if humanOutput {
			for _, key := range sortedConfigKeys() {
				fmt.Printf("%-16s %s\n", key+":", configKeys[key].get(cfg))
			}
			fmt.Printf("%-16s %s\n", "sources:", strings.Join(cfg.SourcePriority, ", "))
			return nil
		}
		outputJSON(configView(cfg))
		return nil
	}

	key := normalizeKey(args[0])
	accessor, ok := configKeys[key]
	if !ok {
		exitWithError(ExitError, "unknown configuration key: %s", args[0])
	}

	// One arg: get specific value
	if len(args) == 1 {
		cfg := mustLoadConfig()
		value := accessor.get(cfg)
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{strings.ReplaceAll(key, "-", "_"): value})
		}
		return nil
	}

	// Two args: set the value in the file itself, without defaults or env
	path := config.GlobalConfigPath()
	fileCfg, err := config.LoadFile(path)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := accessor.set(fileCfg, args[1]); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := fileCfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := fileCfg.Save(path); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}
	config.ResetGlobalConfigCache()

	if humanOutput {
		fmt.Printf("Set %s = %s\n", key, args[1])
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: args[1]})
	}
	return nil
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

func sortedConfigKeys() []string {
	return []string{"download-dir", "library-path", "crossref-mailto", "user-agent", "rate-limit", "log-level", "log-file", "pdf-reader"}
}

func configView(cfg *config.Config) map[string]any {
	view := make(map[string]any, len(configKeys)+1)
	for key, accessor := range configKeys {
		view[strings.ReplaceAll(key, "-", "_")] = accessor.get(cfg)
	}
	view["rate_limit"] = cfg.RateLimit
	view["source_priority"] = cfg.SourcePriority
	return view
}
