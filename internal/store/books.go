package store

import (
	"context"
	"fmt"
	"strings"
)

// Book is one scanned volume: its immutable barcode, the access tranche
// it was published under, and the shard coordinates needed to read its
// OCR text lazily.
//
// DeclaredLanguage is populated by ListBooks from cataloging metadata
// (it lives on the main_language table, not on books) and is ignored on
// writes.
type Book struct {
	Barcode          string
	Tranche          string
	ShardFile        string
	ShardOffset      int64
	DeclaredLanguage string
}

// UpsertBooks inserts or replaces the shard coordinates for a batch of
// books in a single transaction.
func (s *Store) UpsertBooks(ctx context.Context, books []Book) error {
	if len(books) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const cols = 4
	step := batchRows(cols)
	for start := 0; start < len(books); start += step {
		chunk := books[start:min(start+step, len(books))]

		var sb strings.Builder
		sb.WriteString("INSERT INTO books (barcode, tranche, shard_file, shard_offset) VALUES ")
		args := make([]any, 0, len(chunk)*cols)
		for i, b := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?)")
			args = append(args, b.Barcode, b.Tranche, b.ShardFile, b.ShardOffset)
		}
		sb.WriteString(" ON CONFLICT(barcode) DO UPDATE SET" +
			" tranche = excluded.tranche," +
			" shard_file = excluded.shard_file," +
			" shard_offset = excluded.shard_offset")

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to upsert books: %w", err)
		}
	}

	return tx.Commit()
}

// ListBooks returns books in barcode order, joined with their declared
// language. offset skips that many leading books; limit <= 0 means no
// cap.
func (s *Store) ListBooks(ctx context.Context, offset, limit int) ([]Book, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	const q = `
SELECT b.barcode, b.tranche, b.shard_file, b.shard_offset,
       COALESCE(ml.metadata_iso639_3, ml.metadata_iso639_2b, '')
FROM books b
LEFT JOIN main_language ml ON ml.barcode = b.barcode
ORDER BY b.barcode
LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.Barcode, &b.Tranche, &b.ShardFile, &b.ShardOffset, &b.DeclaredLanguage); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// CountBooks returns the number of indexed books.
func (s *Store) CountBooks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return n, nil
}
