package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/library"
)

var searchLimit int

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultSearchLimit, "Maximum results to return")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search documents by keyword",
	Long: `Search documents by keyword.

Titles, authors, journals and tags are searched. Every word must match.

Examples:
  cite search "quantum error"
  cite search Zhang --human`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	lib := mustOpenLibrary(cfg, newLogger(cfg))
	db, err := lib.Index()
	if err != nil {
		exitWithError(ExitDataError, "opening index: %v", err)
	}
	defer db.Close()

	entries, err := db.Search(args[0], searchLimit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	// Empty result is not an error
	if entries == nil {
		entries = []library.Entry{}
	}

	if humanOutput {
		if len(entries) > 0 {
			fmt.Printf("Found %d documents:\n\n", len(entries))
		}
		printEntries(entries, "No documents found")
		return nil
	}
	outputJSON(entries)
	return nil
}
