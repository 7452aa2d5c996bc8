package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jackzampolin/doppel/internal/store"
)

// Column names the collaborator exports are keyed by. Both exports carry
// a header row; column order is free and unknown columns are ignored.
const (
	colBarcode = "barcode"

	colCharCount           = "char_count"
	colCharCountContinuous = "char_count_continuous"
	colWordCount           = "word_count"

	colDetected   = "detected_iso639_3"
	colMetadata2B = "metadata_iso639_2b"
	colMetadata3  = "metadata_iso639_3"
)

// ImportAnalysis loads a text-analysis export into the text_analysis
// table. Empty cells become NULL; a malformed count fails the import
// naming the offending row. Every barcode must already be indexed.
func ImportAnalysis(ctx context.Context, st *store.Store, path string, opts Options) (int64, error) {
	log := opts.logger()

	var recs []store.TextAnalysisRecord
	total, err := readCSV(ctx, path, []string{colCharCount, colCharCountContinuous, colWordCount},
		func(row csvRow) error {
			rec := store.TextAnalysisRecord{Barcode: row.get(colBarcode)}
			var err error
			if rec.CharCount, err = row.intp(colCharCount); err != nil {
				return err
			}
			if rec.CharCountContinuous, err = row.intp(colCharCountContinuous); err != nil {
				return err
			}
			if rec.WordCount, err = row.intp(colWordCount); err != nil {
				return err
			}
			recs = append(recs, rec)

			if len(recs) >= writeBatchSize {
				if err := st.UpsertTextAnalysis(ctx, recs); err != nil {
					return fmt.Errorf("failed to import text analysis: %w", err)
				}
				recs = recs[:0]
			}
			return nil
		})
	if err != nil {
		return 0, err
	}
	if err := st.UpsertTextAnalysis(ctx, recs); err != nil {
		return 0, fmt.Errorf("failed to import text analysis: %w", err)
	}

	log.Info("imported text analysis", "path", path, "rows", total)
	return total, nil
}

// ImportLanguages loads a language-signals export into the main_language
// table. Empty cells become NULL. Every barcode must already be indexed.
func ImportLanguages(ctx context.Context, st *store.Store, path string, opts Options) (int64, error) {
	log := opts.logger()

	var recs []store.LanguageRecord
	total, err := readCSV(ctx, path, []string{colDetected, colMetadata2B, colMetadata3},
		func(row csvRow) error {
			recs = append(recs, store.LanguageRecord{
				Barcode:          row.get(colBarcode),
				DetectedISO6393:  row.strp(colDetected),
				MetadataISO6392B: row.strp(colMetadata2B),
				MetadataISO6393:  row.strp(colMetadata3),
			})

			if len(recs) >= writeBatchSize {
				if err := st.UpsertLanguages(ctx, recs); err != nil {
					return fmt.Errorf("failed to import languages: %w", err)
				}
				recs = recs[:0]
			}
			return nil
		})
	if err != nil {
		return 0, err
	}
	if err := st.UpsertLanguages(ctx, recs); err != nil {
		return 0, fmt.Errorf("failed to import languages: %w", err)
	}

	log.Info("imported languages", "path", path, "rows", total)
	return total, nil
}

// csvRow is one data row addressed by header name.
type csvRow struct {
	path   string
	line   int
	cols   map[string]int
	fields []string
}

// get returns the trimmed cell under a header, or "" when the export
// does not carry that column.
func (r csvRow) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// strp returns the cell as a nullable string: empty means NULL.
func (r csvRow) strp(col string) *string {
	v := r.get(col)
	if v == "" {
		return nil
	}
	return &v
}

// intp returns the cell as a nullable integer: empty means NULL.
func (r csvRow) intp(col string) (*int64, error) {
	v := r.get(col)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s line %d: column %s has non-integer value %q", r.path, r.line, col, v)
	}
	return &n, nil
}

// readCSV walks a header-keyed CSV export, calling fn for every data
// row. The barcode column is required; wanted columns are matched by
// name so exports may carry extra columns or order them freely.
func readCSV(ctx context.Context, path string, wanted []string, fn func(csvRow) error) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols[colBarcode]; !ok {
		return 0, fmt.Errorf("%s has no %q column", path, colBarcode)
	}
	known := 0
	for _, col := range wanted {
		if _, ok := cols[col]; ok {
			known++
		}
	}
	if known == 0 {
		return 0, fmt.Errorf("%s carries none of the expected columns %v", path, wanted)
	}

	var total int64
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to read %s: %w", path, err)
		}

		row := csvRow{path: path, line: line, cols: cols, fields: fields}
		if row.get(colBarcode) == "" {
			return total, fmt.Errorf("%s line %d: empty barcode", path, line)
		}
		if err := fn(row); err != nil {
			return total, err
		}
		total++
	}
	return total, nil
}
