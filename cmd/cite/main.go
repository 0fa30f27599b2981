// Package main provides the cite CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	libraryFlag  string
	logLevelFlag string
	verboseFlag  bool
	quietFlag    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cite",
	Short: "Fetch papers by DOI, arXiv id or URL and file them in a library",
	Long: `cite identifies documents from DOIs, arXiv identifiers and URLs,
downloads their files, consolidates metadata from Crossref and arXiv,
and commits them to a folder-per-document library.

The library index is a JSONL file with an ephemeral SQLite cache for
queries. All commands output JSON by default; use --human for text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&libraryFlag, "library", "", "Library directory (default: config library_path, then search upward from cwd)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Log errors only")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.Version = Version
}
