package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/doctype"
	"github.com/matsen/citescrape/internal/pdf"
)

var resolvePDFs []string

func init() {
	resolveCmd.Flags().StringArrayVar(&resolvePDFs, "pdf", nil, "Find the DOI printed in a PDF file (repeatable)")
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [input]...",
	Short: "Identify the document type and normalized id of each input",
	Long: `Identify the document type and normalized id of each input.

Inputs are tried as arXiv ids, then DOIs, then URLs. No network access
is needed.

Examples:
  cite resolve "https://arxiv.org/abs/1706.03762v5"
  cite resolve "doi: 10.1038/nature12373."
  cite resolve --pdf paper.pdf`,
	RunE: runResolve,
}

// ResolveResult is the identification of one input.
type ResolveResult struct {
	Input string `json:"input"`
	Type  string `json:"type,omitempty"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(resolvePDFs) == 0 {
		exitWithError(ExitError, "nothing to resolve: give inputs or --pdf files")
	}

	results := resolveInputs(doctype.DefaultRegistry(), args)
	for _, path := range resolvePDFs {
		results = append(results, resolvePDF(path))
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	if humanOutput {
		for _, r := range results {
			if r.Error != "" {
				fmt.Printf("%-6s %s: %s\n", "?", r.Input, r.Error)
			} else {
				fmt.Printf("%-6s %s\n", r.Type, r.ID)
			}
		}
	} else {
		outputJSON(results)
	}

	if failed == len(results) {
		os.Exit(ExitNoMatch)
	}
	return nil
}

func resolveInputs(reg *doctype.Registry, inputs []string) []ResolveResult {
	results := make([]ResolveResult, 0, len(inputs))
	for _, raw := range inputs {
		id, _, err := reg.Resolve(raw)
		if err != nil {
			results = append(results, ResolveResult{Input: raw, Error: err.Error()})
			continue
		}
		results = append(results, ResolveResult{Input: raw, Type: id.Kind.String(), ID: id.Value})
	}
	return results
}

func resolvePDF(path string) ResolveResult {
	doi, err := pdf.ExtractDOI(path)
	if err != nil {
		return ResolveResult{Input: path, Error: err.Error()}
	}
	if doi == "" {
		return ResolveResult{Input: path, Error: "no DOI found in PDF"}
	}
	return ResolveResult{Input: path, Type: "doi", ID: doi}
}
