package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// TextAnalysisRecord holds per-book text statistics computed by a
// collaborating pipeline. Nil fields were absent from the export.
type TextAnalysisRecord struct {
	Barcode             string
	CharCount           *int64
	CharCountContinuous *int64
	WordCount           *int64
}

// LanguageRecord holds per-book language signals: the detected main
// language of the OCR text plus the language claimed by cataloging
// metadata.
type LanguageRecord struct {
	Barcode          string
	DetectedISO6393  *string
	MetadataISO6392B *string
	MetadataISO6393  *string
}

// UpsertTextAnalysis writes a batch of text-analysis records in a single
// transaction.
func (s *Store) UpsertTextAnalysis(ctx context.Context, recs []TextAnalysisRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const cols = 4
	step := batchRows(cols)
	for start := 0; start < len(recs); start += step {
		chunk := recs[start:min(start+step, len(recs))]

		var sb strings.Builder
		sb.WriteString("INSERT INTO text_analysis (barcode, char_count, char_count_continuous, word_count) VALUES ")
		args := make([]any, 0, len(chunk)*cols)
		for i, rec := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?)")
			args = append(args, rec.Barcode, nullableInt(rec.CharCount),
				nullableInt(rec.CharCountContinuous), nullableInt(rec.WordCount))
		}
		sb.WriteString(" ON CONFLICT(barcode) DO UPDATE SET" +
			" char_count = excluded.char_count," +
			" char_count_continuous = excluded.char_count_continuous," +
			" word_count = excluded.word_count")

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to upsert text analysis: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertLanguages writes a batch of language records in a single
// transaction.
func (s *Store) UpsertLanguages(ctx context.Context, recs []LanguageRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const cols = 4
	step := batchRows(cols)
	for start := 0; start < len(recs); start += step {
		chunk := recs[start:min(start+step, len(recs))]

		var sb strings.Builder
		sb.WriteString("INSERT INTO main_language (barcode, detected_iso639_3, metadata_iso639_2b, metadata_iso639_3) VALUES ")
		args := make([]any, 0, len(chunk)*cols)
		for i, rec := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?)")
			args = append(args, rec.Barcode, nullableStr(rec.DetectedISO6393),
				nullableStr(rec.MetadataISO6392B), nullableStr(rec.MetadataISO6393))
		}
		sb.WriteString(" ON CONFLICT(barcode) DO UPDATE SET" +
			" detected_iso639_3 = excluded.detected_iso639_3," +
			" metadata_iso639_2b = excluded.metadata_iso639_2b," +
			" metadata_iso639_3 = excluded.metadata_iso639_3")

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to upsert languages: %w", err)
		}
	}

	return tx.Commit()
}

// GetTextAnalysis returns the text-analysis row for a barcode, or nil
// when the export carried none.
func (s *Store) GetTextAnalysis(ctx context.Context, barcode string) (*TextAnalysisRecord, error) {
	var chars, continuous, words sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT char_count, char_count_continuous, word_count FROM text_analysis WHERE barcode = ?",
		barcode,
	).Scan(&chars, &continuous, &words)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get text analysis for %s: %w", barcode, err)
	}

	rec := &TextAnalysisRecord{Barcode: barcode}
	if chars.Valid {
		rec.CharCount = &chars.Int64
	}
	if continuous.Valid {
		rec.CharCountContinuous = &continuous.Int64
	}
	if words.Valid {
		rec.WordCount = &words.Int64
	}
	return rec, nil
}

// GetLanguage returns the language row for a barcode, or nil when the
// export carried none.
func (s *Store) GetLanguage(ctx context.Context, barcode string) (*LanguageRecord, error) {
	var detected, metadata2b, metadata3 sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT detected_iso639_3, metadata_iso639_2b, metadata_iso639_3 FROM main_language WHERE barcode = ?",
		barcode,
	).Scan(&detected, &metadata2b, &metadata3)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get language for %s: %w", barcode, err)
	}

	rec := &LanguageRecord{Barcode: barcode}
	if detected.Valid {
		rec.DetectedISO6393 = &detected.String
	}
	if metadata2b.Valid {
		rec.MetadataISO6392B = &metadata2b.String
	}
	if metadata3.Valid {
		rec.MetadataISO6393 = &metadata3.String
	}
	return rec, nil
}

// CountTextAnalysis returns the number of text-analysis rows.
func (s *Store) CountTextAnalysis(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM text_analysis").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count text analysis rows: %w", err)
	}
	return n, nil
}

// CountLanguages returns the number of language rows.
func (s *Store) CountLanguages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM main_language").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count language rows: %w", err)
	}
	return n, nil
}

// CountDetectedLanguages returns the number of books whose main language
// was actually detected (as opposed to rows that only carry catalog
// metadata).
func (s *Store) CountDetectedLanguages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM main_language WHERE detected_iso639_3 IS NOT NULL",
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count detected languages: %w", err)
	}
	return n, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
