package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/author"
	"github.com/matsen/citescrape/internal/library"
	"github.com/matsen/citescrape/internal/tags"
)

var (
	listLimit int
	listTag   string
	listSince int
	listUntil  int
	listAuthor []string
)

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum results to return (0 = all)")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only documents with this tag")
	listCmd.Flags().IntVar(&listSince, "since", 0, "Only documents published in or after this year")
	listCmd.Flags().IntVar(&listUntil, "until", 0, "Only documents published in or before this year")
	listCmd.Flags().StringArrayVar(&listAuthor, "author", nil, `Only documents by this author: "Yu", "Tim Yu" or "Yu, Timothy" (repeatable, all must match)`)
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in the library",
	Long: `List documents in the library.

Examples:
  cite list
  cite list --tag physics --since 2015
  cite list --author "Matsen" --author "Cheng Zhang"
  cite list --limit 20 --human`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	lib := mustOpenLibrary(cfg, newLogger(cfg))
	db, err := lib.Index()
	if err != nil {
		exitWithError(ExitDataError, "opening index: %v", err)
	}
	defer db.Close()

	queries := authorQueries(listAuthor)
	limit := listLimit
	if len(queries) > 0 {
		// filtered after the query, so the limit applies afterwards too
		limit = 0
	}
	entries, err := db.ListAll(library.ListFilters{
		Tag:      tagFilter(listTag),
		YearFrom: listSince,
		YearTo:   listUntil,
	}, limit)
	if err != nil {
		exitWithError(ExitError, "listing documents: %v", err)
	}
	entries = filterByAuthors(entries, queries, listLimit)

	if humanOutput {
		total, _ := db.Count()
		if listLimit > 0 && len(entries) == listLimit && listLimit < total {
			fmt.Printf("%d documents (showing first %d):\n\n", total, len(entries))
		} else if len(entries) > 0 {
			fmt.Printf("%d documents:\n\n", len(entries))
		}
		printEntries(entries, "No documents in library")
		return nil
	}

	if entries == nil {
		entries = []library.Entry{}
	}
	outputJSON(entries)
	return nil
}

// tagFilter cleans a tag the way stored tags were cleaned.
func tagFilter(tag string) string {
	if tag == "" {
		return ""
	}
	return tags.CleanTag(tag)
}

func authorQueries(inputs []string) []author.Query {
	var queries []author.Query
	for _, in := range inputs {
		if q := author.ParseQuery(in); !q.IsZero() {
			queries = append(queries, q)
		}
	}
	return queries
}

// filterByAuthors keeps entries matched by every query, up to limit
// (0 = no limit).
func filterByAuthors(entries []library.Entry, queries []author.Query, limit int) []library.Entry {
	if len(queries) == 0 {
		return entries
	}
	var out []library.Entry
	for _, e := range entries {
		if !author.AllMatch(queries, author.ParseAll(e.Authors)) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
