package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/document"
	"github.com/matsen/citescrape/internal/identifier"
	"github.com/matsen/citescrape/internal/refscrape"
)

var (
	refsText bool
	refsAdd  bool
)

func init() {
	refsCmd.Flags().BoolVar(&refsText, "text", false, "Treat the input as plain text or wikitext, not HTML")
	refsCmd.Flags().BoolVar(&refsAdd, "add", false, "Add every referenced document to the library")
	refsCmd.Flags().StringArrayVarP(&addTags, "tag", "t", nil, "Tag to attach when adding (repeatable)")
	rootCmd.AddCommand(refsCmd)
}

var refsCmd = &cobra.Command{
	Use:   "refs <url|file>",
	Short: "List the DOI and arXiv references of a web page or text",
	Long: `List the DOI and arXiv references of a web page or text.

HTML pages are scanned for links mentioning a DOI or arXiv. Text files
(.txt, .wiki, or with --text) are scanned line by line, including
citation template parameters such as doi= and arxiv=.

Examples:
  cite refs https://en.wikipedia.org/wiki/Quantum_error_correction
  cite refs article.wiki
  cite refs page.html --add --tag reading-list`,
	Args: cobra.ExactArgs(1),
	RunE: runRefs,
}

func runRefs(cmd *cobra.Command, args []string) error {
	source := args[0]
	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	p := newPipeline(cfg, logger)

	data, err := readSource(cmd, p, source)
	if err != nil {
		exitWithError(ExitError, "reading %s: %v", source, err)
	}

	var page *refscrape.Page
	if refsText || isTextSource(source, data) {
		ids, err := refscrape.FromText(bytes.NewReader(data))
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		if ids == nil {
			ids = []identifier.Identifier{}
		}
		page = &refscrape.Page{Source: source, Links: []string{}, Identifiers: ids}
	} else {
		page, err = refscrape.Scrape(source, bytes.NewReader(data))
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
	}

	if !refsAdd {
		printRefs(page)
		return nil
	}

	lib := mustOpenLibrary(cfg, logger)
	inputs := make([]string, len(page.Identifiers))
	for i, id := range page.Identifiers {
		inputs[i] = id.Value
	}
	results := addAll(cmd.Context(), p, lib, inputs, document.CommitOptions{})
	if failed := printAddResults(results); failed > 0 {
		os.Exit(ExitPartial)
	}
	return nil
}

// readSource reads a local file, or downloads the source when no such
// file exists.
func readSource(cmd *cobra.Command, p *pipeline, source string) ([]byte, error) {
	if _, err := os.Stat(source); err == nil {
		return os.ReadFile(source)
	}
	data, _, err := p.downloader.DownloadByURL(cmd.Context(), source)
	return data, err
}

func isTextSource(source string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".txt", ".wiki", ".md", ".bib":
		return true
	case ".html", ".htm", ".xhtml":
		return false
	}
	head := bytes.ToLower(data[:min(len(data), 512)])
	return !bytes.Contains(head, []byte("<html")) && !bytes.Contains(head, []byte("<!doctype"))
}

func printRefs(page *refscrape.Page) {
	if !humanOutput {
		outputJSON(page)
		return
	}
	fmt.Printf("source_url:%s\n", page.Source)
	if len(page.Links) > 0 {
		for _, link := range page.Links {
			fmt.Println(link)
		}
		fmt.Println()
	}
	for _, id := range page.Identifiers {
		fmt.Printf("%-6s %s\n", id.Kind, id.Value)
	}
}
