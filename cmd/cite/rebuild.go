package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildScan bool

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildScan, "scan", false, "Rewrite the JSONL index from the info.yaml files first")
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the query cache from the library index",
	Long: `Rebuild the SQLite query cache from the JSONL library index.

Use --scan after editing document folders by hand or with other tools:
the index is regenerated from every <folder>/info.yaml before the cache
is rebuilt.`,
	RunE: runRebuild,
}

// RebuildResult is the response for the rebuild command.
type RebuildResult struct {
	Status    string `json:"status"`
	Scanned   *int   `json:"scanned,omitempty"`
	Documents int    `json:"documents"`
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	lib := mustOpenLibrary(cfg, newLogger(cfg))

	result := RebuildResult{Status: "rebuilt"}
	if rebuildScan {
		scanned, err := lib.Reindex()
		if err != nil {
			exitWithError(ExitDataError, "scanning library: %v", err)
		}
		result.Scanned = &scanned
	}

	count, err := lib.Rebuild()
	if err != nil {
		exitWithError(ExitDataError, "rebuilding index: %v", err)
	}
	result.Documents = count

	if humanOutput {
		if result.Scanned != nil {
			fmt.Printf("Scanned %d document folders\n", *result.Scanned)
		}
		fmt.Printf("Rebuilt query cache with %d documents\n", count)
		return nil
	}
	outputJSON(result)
	return nil
}
