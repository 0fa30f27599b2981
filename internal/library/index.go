package library

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the ephemeral SQLite query cache, rebuilt from the JSONL index.
type DB struct {
	db *sql.DB
}

const selectEntryFields = `key, folder, title, authors_json, year, journal,
	doi, arxiv, url, tags_json, files_json, added`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			folder TEXT NOT NULL,
			title TEXT,
			authors_json TEXT,
			year INTEGER,
			journal TEXT,
			doi TEXT,
			arxiv TEXT,
			url TEXT,
			tags_json TEXT,
			files_json TEXT NOT NULL,
			added INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_doi ON entries(doi) WHERE doi IS NOT NULL AND doi != '';

		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			key,
			title,
			authors_text,
			journal,
			tags_text
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromJSONL clears the database and reloads it from a JSONL index.
func (d *DB) RebuildFromJSONL(jsonlPath string) (int, error) {
	entries, err := ReadAll(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return 0, fmt.Errorf("clearing entries table: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM entries_fts"); err != nil {
		return 0, fmt.Errorf("clearing entries_fts table: %w", err)
	}

	entryStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO entries (
			key, folder, title, authors_json, year, journal,
			doi, arxiv, url, tags_json, files_json, added
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing entries insert: %w", err)
	}
	defer entryStmt.Close()

	ftsStmt, err := tx.Prepare(`
		INSERT INTO entries_fts (key, title, authors_text, journal, tags_text)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, e := range entries {
		authorsJSON, err := json.Marshal(e.Authors)
		if err != nil {
			return 0, fmt.Errorf("marshaling authors for %s: %w", e.Key, err)
		}
		tagsJSON, err := json.Marshal(e.Tags)
		if err != nil {
			return 0, fmt.Errorf("marshaling tags for %s: %w", e.Key, err)
		}
		filesJSON, err := json.Marshal(e.Files)
		if err != nil {
			return 0, fmt.Errorf("marshaling files for %s: %w", e.Key, err)
		}

		_, err = entryStmt.Exec(
			e.Key, e.Folder, e.Title, string(authorsJSON), e.Year, e.Journal,
			nullableString(e.DOI), nullableString(e.Arxiv), nullableString(e.URL),
			string(tagsJSON), string(filesJSON), e.Added.Unix(),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting entry %s: %w", e.Key, err)
		}

		_, err = ftsStmt.Exec(e.Key, e.Title, strings.Join(e.Authors, "; "), e.Journal, strings.Join(e.Tags, " "))
		if err != nil {
			return 0, fmt.Errorf("inserting fts for %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(entries), nil
}

// GetByKey retrieves an entry by key; nil when absent.
func (d *DB) GetByKey(key string) (*Entry, error) {
	row := d.db.QueryRow(`SELECT `+selectEntryFields+` FROM entries WHERE key = ?`, key)
	return scanEntry(row)
}

// Search performs a full-text search over titles, authors, journals and tags.
func (d *DB) Search(query string, limit int) ([]Entry, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := d.db.Query(`
		SELECT `+selectEntryFields+`
		FROM entries
		WHERE key IN (SELECT key FROM entries_fts WHERE entries_fts MATCH ?)
		ORDER BY key
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListFilters narrows ListAll.
type ListFilters struct {
	Tag      string // exact tag
	YearFrom int    // 0 = no minimum
	YearTo   int    // 0 = no maximum
}

// ListAll returns entries ordered by key, optionally filtered and limited.
func (d *DB) ListAll(filters ListFilters, limit int) ([]Entry, error) {
	query := `SELECT ` + selectEntryFields + ` FROM entries WHERE 1=1`
	var args []any

	if filters.Tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(entries.tags_json) WHERE json_each.value = ?)`
		args = append(args, filters.Tag)
	}
	if filters.YearFrom > 0 {
		query += " AND year >= ?"
		args = append(args, filters.YearFrom)
	}
	if filters.YearTo > 0 {
		query += " AND year <= ?"
		args = append(args, filters.YearTo)
	}

	query += " ORDER BY key"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the total number of entries.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var title, authorsJSON, journal, doi, arxiv, url, tagsJSON sql.NullString
	var year sql.NullInt64
	var filesJSON string
	var added int64

	err := s.Scan(
		&e.Key, &e.Folder, &title, &authorsJSON, &year, &journal,
		&doi, &arxiv, &url, &tagsJSON, &filesJSON, &added,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	e.Title = title.String
	e.Journal = journal.String
	e.DOI = doi.String
	e.Arxiv = arxiv.String
	e.URL = url.String
	e.Year = int(year.Int64)
	e.Added = time.Unix(added, 0).UTC()

	if err := unmarshalNullable(authorsJSON, &e.Authors); err != nil {
		return nil, fmt.Errorf("parsing authors JSON for %s: %w", e.Key, err)
	}
	if err := unmarshalNullable(tagsJSON, &e.Tags); err != nil {
		return nil, fmt.Errorf("parsing tags JSON for %s: %w", e.Key, err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &e.Files); err != nil {
		return nil, fmt.Errorf("parsing files JSON for %s: %w", e.Key, err)
	}

	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, rows.Err()
}

func unmarshalNullable(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

// nullableString converts a string to sql.NullString, treating empty as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	if strings.ContainsAny(query, "\"*+-:(){}[]^~./#@") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
