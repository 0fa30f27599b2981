package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/library"
	"github.com/matsen/citescrape/internal/pdf"
)

func init() {
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:   "open <key>",
	Short: "Open a document's PDF in the configured viewer",
	Long: `Open a document's PDF in the configured viewer.

The viewer is set with 'cite config pdf-reader <name>'.

Examples:
  cite open Zhang2021-vb`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	lib := mustOpenLibrary(cfg, newLogger(cfg))

	entries, err := lib.Entries()
	if err != nil {
		exitWithError(ExitDataError, "reading index: %v", err)
	}
	i, found := library.FindByKey(entries, args[0])
	if !found {
		exitWithError(ExitError, "no document with key %s", args[0])
	}
	entry := entries[i]

	path, err := pdf.FindPDF(filepath.Join(lib.Root(), entry.Folder), entry.Files)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if err := pdf.NewOpener(cfg.PDFReader).Open(path); err != nil {
		exitWithError(ExitError, "opening %s: %v", path, err)
	}

	if humanOutput {
		fmt.Printf("Opened %s\n", path)
		return nil
	}
	outputJSON(StatusResponse{Status: "opened", Path: path})
	return nil
}
