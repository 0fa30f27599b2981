package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/export"
	"github.com/matsen/citescrape/internal/library"
)

var (
	exportBibFile string
	exportTag     string
	exportCopy    bool
)

func init() {
	exportCmd.Flags().StringVar(&exportBibFile, "append", "", "Append to this .bib file, skipping entries it already has")
	exportCmd.Flags().StringVar(&exportTag, "tag", "", "Only documents with this tag")
	exportCmd.Flags().BoolVar(&exportCopy, "copy", false, "Copy the BibTeX to the clipboard instead of printing it")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [key]...",
	Short: "Export library documents as BibTeX",
	Long: `Export library documents as BibTeX.

With no keys every document is exported. Entries are built from each
document's info.yaml.

Examples:
  cite export > library.bib
  cite export Zhang2021-vb
  cite export --tag thesis --append thesis.bib`,
	RunE: runExport,
}

// ExportResult is the response for export --append.
type ExportResult struct {
	Path     string   `json:"path"`
	Exported []string `json:"exported"`
	Skipped  []string `json:"skipped"`
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	lib := mustOpenLibrary(cfg, newLogger(cfg))

	keys := args
	if len(keys) == 0 {
		var err error
		keys, err = libraryKeys(lib, exportTag)
		if err != nil {
			exitWithError(ExitDataError, "reading index: %v", err)
		}
	}

	items := make([]export.Keyed, 0, len(keys))
	for _, key := range keys {
		rec, err := lib.Record(key)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		items = append(items, export.Keyed{Key: key, Record: rec})
	}
	items = export.SortedByKey(items)

	if exportBibFile == "" {
		bib := export.ToBibTeXList(items)
		if exportCopy {
			copyToClipboard(bib)
			if humanOutput {
				fmt.Printf("Copied %d entries to clipboard\n", len(items))
			} else {
				n := len(items)
				outputJSON(StatusResponse{Status: "copied", Count: &n})
			}
			return nil
		}
		fmt.Print(bib)
		return nil
	}

	idx, err := export.ParseBibTeXFile(exportBibFile)
	if err != nil {
		exitWithError(ExitDataError, "reading %s: %v", exportBibFile, err)
	}
	result := ExportResult{Path: exportBibFile, Exported: []string{}, Skipped: []string{}}
	for _, item := range items {
		doi := item.Record.String("doi")
		if idx.HasEntry(item.Key, doi) {
			result.Skipped = append(result.Skipped, item.Key)
			continue
		}
		if err := export.AppendToBibFile(exportBibFile, export.ToBibTeX(item.Key, item.Record)); err != nil {
			exitWithError(ExitError, "writing %s: %v", exportBibFile, err)
		}
		idx.Add(item.Key, doi)
		result.Exported = append(result.Exported, item.Key)
	}

	if humanOutput {
		fmt.Printf("Appended %d entries to %s (%d already present)\n",
			len(result.Exported), exportBibFile, len(result.Skipped))
		return nil
	}
	outputJSON(result)
	return nil
}

// libraryKeys lists the keys in the index, optionally only those with tag.
func libraryKeys(lib *library.Library, tag string) ([]string, error) {
	entries, err := lib.Entries()
	if err != nil {
		return nil, err
	}
	want := tagFilter(tag)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if want != "" && !hasTag(e, want) {
			continue
		}
		keys = append(keys, e.Key)
	}
	return keys, nil
}

func hasTag(e library.Entry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
