package library

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadAll reads all entries from a JSONL index.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	return entries, nil
}

// Append adds an entry to the end of a JSONL index.
func Append(path string, e Entry) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening index for append: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	return nil
}

// WriteAll replaces the index with entries.
func WriteAll(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entry %d: %w", i, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	return w.Flush()
}

// FindByKey searches for an entry by key.
func FindByKey(entries []Entry, key string) (int, bool) {
	for i, e := range entries {
		if e.Key == key {
			return i, true
		}
	}
	return -1, false
}

// FindByDOI searches for an entry by DOI, ignoring case.
func FindByDOI(entries []Entry, doi string) (int, bool) {
	for i, e := range entries {
		if sameDOI(e.DOI, doi) {
			return i, true
		}
	}
	return -1, false
}

// FindByFingerprint searches for an entry holding a file with the given hash.
func FindByFingerprint(entries []Entry, sum string) (int, bool) {
	for i, e := range entries {
		for _, fp := range e.Fingerprints {
			if fp == sum {
				return i, true
			}
		}
	}
	return -1, false
}

// UniqueKey returns a key not used by entries and for which taken reports
// false. If base is taken, appends -2, -3, etc.
func UniqueKey(entries []Entry, base string, taken func(string) bool) string {
	used := func(k string) bool {
		_, found := FindByKey(entries, k)
		return found || (taken != nil && taken(k))
	}
	if !used(base) {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !used(candidate) {
			return candidate
		}
	}
}
