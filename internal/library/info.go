package library

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/matsen/citescrape/internal/metadata"
	"github.com/matsen/citescrape/internal/tags"
)

// WriteInfo writes rec as YAML.
func WriteInfo(path string, rec metadata.Record) error {
	data, err := yaml.Marshal(map[string]any(rec))
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadInfo reads a YAML metadata file.
func ReadInfo(path string) (metadata.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rec map[string]any
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if rec == nil {
		rec = map[string]any{}
	}
	return metadata.Record(rec), nil
}

// HarvestTags unions the tags of the given info files. The tags field may
// be a space-separated string or a list.
func HarvestTags(paths ...string) (tags.Set, error) {
	all := tags.New()
	for _, p := range paths {
		rec, err := ReadInfo(p)
		if err != nil {
			return tags.Set{}, err
		}
		set, err := tags.From(rec["tags"])
		if err != nil {
			return tags.Set{}, fmt.Errorf("%s: %w", p, err)
		}
		all = all.Union(set)
	}
	return all, nil
}

// Tags unions the tags of every document in the library.
func (l *Library) Tags() (tags.Set, error) {
	entries, err := l.Entries()
	if err != nil {
		return tags.Set{}, err
	}
	all := tags.New()
	for _, e := range entries {
		all = all.Add(e.Tags...)
	}
	return all, nil
}

func infoFiles(rec metadata.Record) []string {
	switch v := rec["files"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// Record reads the committed metadata of the document stored under key.
func (l *Library) Record(key string) (metadata.Record, error) {
	return ReadInfo(filepath.Join(l.root, key, InfoFile))
}
