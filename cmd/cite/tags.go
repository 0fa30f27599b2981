package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/citescrape/internal/library"
	"github.com/matsen/citescrape/internal/tags"
)

func init() {
	rootCmd.AddCommand(tagsCmd)
}

var tagsCmd = &cobra.Command{
	Use:   "tags [info.yaml]...",
	Short: "List the tags used in the library or in the given info files",
	Long: `List the tags used in the library or in the given info files.

With no arguments every document folder of the library is read.

Examples:
  cite tags
  cite tags ~/papers/*/info.yaml --human`,
	RunE: runTags,
}

func runTags(cmd *cobra.Command, args []string) error {
	var set tags.Set
	var err error
	if len(args) > 0 {
		set, err = library.HarvestTags(args...)
	} else {
		cfg := mustLoadConfig()
		set, err = mustOpenLibrary(cfg, newLogger(cfg)).Tags()
	}
	if err != nil {
		exitWithError(ExitDataError, "reading tags: %v", err)
	}

	list := set.Slice()
	if humanOutput {
		for _, t := range list {
			fmt.Println(t)
		}
		return nil
	}
	if list == nil {
		list = []string{}
	}
	outputJSON(list)
	return nil
}
