package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/document"
	"github.com/matsen/citescrape/internal/export"
	"github.com/matsen/citescrape/internal/library"
)

var (
	infoSet    []string
	infoBibTeX bool
	infoCopy   bool
)

func init() {
	infoCmd.Flags().StringArrayVar(&infoSet, "set", nil, "Known metadata as key=value, passed to the sources (repeatable)")
	infoCmd.Flags().BoolVar(&infoBibTeX, "bibtex", false, "Print the merged record as a BibTeX entry")
	infoCmd.Flags().BoolVar(&infoCopy, "copy", false, "Also copy the BibTeX entry to the clipboard")
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info <doi|arxiv-id|url>",
	Short: "Fetch and merge metadata for a document without downloading it",
	Long: `Fetch and merge metadata for a document without downloading it.

Sources are consulted in the configured priority order. A source that
fails is logged and skipped.

Examples:
  cite info 10.1038/nature12373
  cite info arXiv:1706.03762 --human
  cite info 10.1093/sysbio/syab006 --bibtex`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	known, err := parseAssignments(infoSet)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	p := newPipeline(cfg, logger)

	doc, err := document.New(args[0], p.registry, p.services, document.WithMetadata(known))
	if err != nil {
		if isNoMatch(err) {
			exitWithError(ExitNoMatch, "%v", err)
		}
		exitWithError(ExitError, "%v", err)
	}
	if err := doc.Enrich(cmd.Context()); err != nil {
		exitWithError(ExitError, "enriching %s: %v", args[0], err)
	}

	meta := doc.Metadata()
	if infoBibTeX || infoCopy {
		entry := export.ToBibTeX(library.CiteKey(meta), meta)
		if infoCopy {
			copyToClipboard(entry)
		}
		if infoBibTeX {
			fmt.Print(entry)
			return nil
		}
	}
	if humanOutput {
		id := doc.Identifier()
		fmt.Printf("%s %s\n\n", id.Kind, id.Value)
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-14s %s\n", k, truncateString(fmt.Sprint(meta[k]), DetailValueMaxLen))
		}
		return nil
	}

	outputJSON(struct {
		Type     string         `json:"type"`
		ID       string         `json:"id"`
		Metadata map[string]any `json:"metadata"`
	}{doc.Identifier().Kind.String(), doc.Identifier().Value, meta})
	return nil
}
