package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/config"
	"github.com/matsen/citescrape/internal/library"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new library",
	Long: `Initialize a new library in dir (default: the current directory).

Creates:
  .cite/
  ├── library.jsonl   # Empty index, one JSON object per document
  └── cache/          # SQLite query cache (safe to delete)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = config.ExpandPath(args[0])
	}
	if err := config.EnsureDir(root); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if config.IsLibrary(root) {
		exitWithError(ExitError, "directory already contains a cite library")
	}

	lib, err := library.Init(root)
	if err != nil {
		exitWithError(ExitError, "initializing library: %v", err)
	}

	if humanOutput {
		fmt.Printf("Initialized cite library in %s\n", lib.Root())
		if os.Getenv(config.EnvLibrary) == "" {
			fmt.Printf("Set %s or library_path in %s to use it from anywhere\n",
				config.EnvLibrary, config.GlobalConfigPath())
		}
		return nil
	}
	outputJSON(StatusResponse{Status: "initialized", Path: lib.Root()})
	return nil
}
