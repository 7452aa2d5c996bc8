package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// FingerprintRecord is one book's stored fingerprint. A nil Hash records
// that the book was processed but had no usable text.
//
// Fingerprints are unsigned 64-bit values; SQLite INTEGER is signed, so
// the hash is bit-cast on the way in and out.
type FingerprintRecord struct {
	Barcode string
	Hash    *uint64
}

// GetFingerprint returns the stored fingerprint for a barcode, or nil
// when the book has not been processed at all.
func (s *Store) GetFingerprint(ctx context.Context, barcode string) (*FingerprintRecord, error) {
	var hash sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT hash FROM fingerprints WHERE barcode = ?", barcode,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint for %s: %w", barcode, err)
	}

	rec := &FingerprintRecord{Barcode: barcode}
	if hash.Valid {
		h := uint64(hash.Int64)
		rec.Hash = &h
	}
	return rec, nil
}

// UpsertFingerprints writes a batch of fingerprint records in a single
// transaction: the whole batch lands or none of it does.
func (s *Store) UpsertFingerprints(ctx context.Context, recs []FingerprintRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const cols = 2
	step := batchRows(cols)
	for start := 0; start < len(recs); start += step {
		chunk := recs[start:min(start+step, len(recs))]

		var sb strings.Builder
		sb.WriteString("INSERT INTO fingerprints (barcode, hash) VALUES ")
		args := make([]any, 0, len(chunk)*cols)
		for i, rec := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?)")
			var hash any
			if rec.Hash != nil {
				hash = int64(*rec.Hash)
			}
			args = append(args, rec.Barcode, hash)
		}
		sb.WriteString(" ON CONFLICT(barcode) DO UPDATE SET hash = excluded.hash")

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to upsert fingerprints: %w", err)
		}
	}

	return tx.Commit()
}

// CountFingerprintRows returns the number of processed books, including
// those recorded as having no text.
func (s *Store) CountFingerprintRows(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fingerprint rows: %w", err)
	}
	return n, nil
}

// CountFingerprints returns the number of books with a non-null
// fingerprint.
func (s *Store) CountFingerprints(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fingerprints WHERE hash IS NOT NULL",
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	return n, nil
}

// CountDistinctFingerprints returns the number of distinct non-null
// fingerprint values.
func (s *Store) CountDistinctFingerprints(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT hash) FROM fingerprints WHERE hash IS NOT NULL",
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count distinct fingerprints: %w", err)
	}
	return n, nil
}

// BookRef is a duplicate-group member together with the collaborator
// signals the cluster filters consume.
type BookRef struct {
	Barcode          string
	Tranche          string
	DetectedLanguage string // empty when language detection has nothing
	CharCount        int64  // continuous character count
	HasCharCount     bool   // false when text analysis has no count
}

// DuplicateGroups returns every fingerprint shared by more than one
// book, mapped to its members joined with their filter signals. Books
// with a null fingerprint never group. Members are in barcode order.
func (s *Store) DuplicateGroups(ctx context.Context) (map[uint64][]BookRef, error) {
	const q = `
SELECT f.hash, f.barcode, b.tranche, ml.detected_iso639_3, ta.char_count_continuous
FROM fingerprints f
JOIN books b ON b.barcode = f.barcode
LEFT JOIN main_language ml ON ml.barcode = f.barcode
LEFT JOIN text_analysis ta ON ta.barcode = f.barcode
WHERE f.hash IS NOT NULL
  AND f.hash IN (
	SELECT hash FROM fingerprints
	WHERE hash IS NOT NULL
	GROUP BY hash
	HAVING COUNT(*) > 1
  )
ORDER BY f.hash, f.barcode`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[uint64][]BookRef)
	for rows.Next() {
		var (
			hash      int64
			ref       BookRef
			lang      sql.NullString
			charCount sql.NullInt64
		)
		if err := rows.Scan(&hash, &ref.Barcode, &ref.Tranche, &lang, &charCount); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group member: %w", err)
		}
		ref.DetectedLanguage = lang.String
		ref.CharCount = charCount.Int64
		ref.HasCharCount = charCount.Valid

		key := uint64(hash)
		groups[key] = append(groups[key], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate groups: %w", err)
	}
	return groups, nil
}
