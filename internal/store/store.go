// Package store persists books, fingerprints, and collaborator signals
// in an embedded SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteMaxVariables mirrors SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
// Batched statements stay at half this budget.
const sqliteMaxVariables = 32766

// batchRows returns how many rows fit in one multi-row statement for the
// given column count.
func batchRows(columns int) int {
	return sqliteMaxVariables / 2 / columns
}

// Store wraps the doppel SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the
// session pragmas the pipeline relies on: WAL journaling so readers
// never block the writer, foreign keys, a 64MB page cache, and a
// generous busy timeout for the moment a reader and the sink collide.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=20000&_cache_size=-64000",
		path,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Size returns the database file size in bytes.
func (s *Store) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat database: %w", err)
	}
	return info.Size(), nil
}

// InitSchema creates all tables and indexes if they are absent. Safe to
// call on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS books (
	barcode      TEXT PRIMARY KEY,
	tranche      TEXT NOT NULL DEFAULT '',
	shard_file   TEXT NOT NULL,
	shard_offset INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_tranche ON books(tranche);

CREATE TABLE IF NOT EXISTS fingerprints (
	barcode TEXT PRIMARY KEY REFERENCES books(barcode),
	hash    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON fingerprints(hash);

CREATE TABLE IF NOT EXISTS text_analysis (
	barcode               TEXT PRIMARY KEY REFERENCES books(barcode),
	char_count            INTEGER,
	char_count_continuous INTEGER,
	word_count            INTEGER
);

CREATE TABLE IF NOT EXISTS main_language (
	barcode            TEXT PRIMARY KEY REFERENCES books(barcode),
	detected_iso639_3  TEXT,
	metadata_iso639_2b TEXT,
	metadata_iso639_3  TEXT
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
