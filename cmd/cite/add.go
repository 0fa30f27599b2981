package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/doctype"
	"github.com/matsen/citescrape/internal/document"
	"github.com/matsen/citescrape/internal/library"
	"github.com/matsen/citescrape/internal/metadata"
)

var (
	addTags           []string
	addSet            []string
	addConfirm        bool
	addLink           bool
	addAllowDuplicate bool
)

func init() {
	addCmd.Flags().StringArrayVarP(&addTags, "tag", "t", nil, "Tag to attach (repeatable, space-separated lists allowed)")
	addCmd.Flags().StringArrayVar(&addSet, "set", nil, "Metadata override as key=value (repeatable)")
	addCmd.Flags().BoolVar(&addConfirm, "confirm", false, "Ask before committing each document")
	addCmd.Flags().BoolVar(&addLink, "link", false, "Symlink downloaded files into the library instead of copying")
	addCmd.Flags().BoolVar(&addAllowDuplicate, "allow-duplicate", false, "Skip DOI and file-content duplicate checks")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <doi|arxiv-id|url>...",
	Short: "Download documents, fetch their metadata and add them to the library",
	Long: `Download documents, fetch their metadata and add them to the library.

Each argument is identified as an arXiv id, a DOI or a URL, in that order.
Documents are processed independently: one failure does not stop the rest.

Examples:
  cite add 10.1038/nature12373
  cite add arXiv:1706.03762 --tag "ml attention"
  cite add https://example.org/paper.pdf --set title="A Paper" --set year=2020`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

// AddResult reports the outcome for one input.
type AddResult struct {
	Input    string `json:"input"`
	Type     string `json:"type,omitempty"`
	ID       string `json:"id,omitempty"`
	State    string `json:"state"`
	Key      string `json:"key,omitempty"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runAdd(cmd *cobra.Command, args []string) error {
	overrides, err := parseAssignments(addSet)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	lib := mustOpenLibrary(cfg, logger)
	p := newPipeline(cfg, logger)

	opts := document.CommitOptions{
		Overrides: overrides,
		Add: library.AddOptions{
			Confirm:        addConfirm,
			Link:           addLink,
			AllowDuplicate: addAllowDuplicate,
		},
	}

	results := addAll(cmd.Context(), p, lib, args, opts)
	failed := printAddResults(results)
	if failed > 0 {
		if failed == len(results) {
			code := ExitError
			if allNoMatch(results) {
				code = ExitNoMatch
			}
			os.Exit(code)
		}
		os.Exit(ExitPartial)
	}
	return nil
}

// addAll runs the pipeline for each input in turn.
func addAll(ctx context.Context, p *pipeline, lib document.Library, inputs []string, opts document.CommitOptions) []AddResult {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]AddResult, 0, len(inputs))
	for _, raw := range inputs {
		results = append(results, addOne(ctx, p, lib, raw, opts))
	}
	return results
}

func addOne(ctx context.Context, p *pipeline, lib document.Library, raw string, opts document.CommitOptions) AddResult {
	result := AddResult{Input: raw, State: document.Created.String()}

	doc, err := document.New(raw, p.registry, p.services, document.WithTags(addTags))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Type = doc.Identifier().Kind.String()
	result.ID = doc.Identifier().Value

	err = doc.Run(ctx, lib, opts)
	result.State = doc.State().String()
	if err != nil {
		p.logger.Error().Err(err).Str("input", raw).Msg("add failed")
		result.Error = err.Error()
		return result
	}
	result.Location = doc.Location()
	result.Key = filepath.Base(doc.Location())
	return result
}

func printAddResults(results []AddResult) int {
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	if !humanOutput {
		outputJSON(results)
		return failed
	}
	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("FAIL  %s: %s\n", r.Input, r.Error)
			continue
		}
		fmt.Printf("ADDED %s (%s %s) -> %s\n", r.Key, r.Type, r.ID, r.Location)
	}
	fmt.Printf("\n%d added, %d failed\n", len(results)-failed, failed)
	return failed
}

func allNoMatch(results []AddResult) bool {
	for _, r := range results {
		if r.Type != "" {
			return false
		}
	}
	return true
}

// parseAssignments turns key=value pairs into a record. Year and month
// values that are numbers are stored as integers.
func parseAssignments(pairs []string) (metadata.Record, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	rec := make(metadata.Record, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected key=value", pair)
		}
		if key == "year" || key == "month" {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				rec[key] = n
				continue
			}
		}
		rec[key] = value
	}
	return rec, nil
}

// isNoMatch reports whether err means the input was not recognized.
func isNoMatch(err error) bool {
	return errors.Is(err, doctype.ErrNoMatchingType)
}
