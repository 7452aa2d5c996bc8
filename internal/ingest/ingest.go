// Package ingest indexes the collection into the doppel database: OCR
// text shards become books rows carrying byte offsets for lazy text
// access, and collaborator CSV exports become text_analysis and
// main_language rows.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackzampolin/doppel/internal/shards"
	"github.com/jackzampolin/doppel/internal/store"
)

// writeBatchSize is how many rows accumulate before a flush to the
// database. The store splits oversized batches further to respect the
// SQLite variable budget.
const writeBatchSize = 5000

// Options configures an ingest pass.
type Options struct {
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Result summarizes a shard indexing pass.
type Result struct {
	Shards int64 `json:"shards" yaml:"shards"` // Shard files indexed
	Books  int64 `json:"books" yaml:"books"`   // Book records indexed or updated
}

// IndexShards scans OCR text shards and upserts one books row per
// record, so re-running after a collection update refreshes offsets in
// place. names selects specific shard files inside dir; nil indexes
// every *.jsonl found there. Every record is validated against the
// shard schema and the first bad record fails the pass, leaving
// already-flushed batches in place.
func IndexShards(ctx context.Context, st *store.Store, dir string, names []string, opts Options) (*Result, error) {
	log := opts.logger()

	if len(names) == 0 {
		discovered, err := discoverShards(dir)
		if err != nil {
			return nil, err
		}
		names = discovered
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no shards to index in %s", dir)
	}

	validator, err := shards.NewValidator()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, name := range names {
		n, err := indexShard(ctx, st, dir, name, validator, log)
		if err != nil {
			return nil, err
		}
		res.Shards++
		res.Books += n
	}

	log.Info("collection indexed", "shards", res.Shards, "books", res.Books)
	return res, nil
}

// discoverShards lists the shard files under dir in name order.
func discoverShards(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list shards in %s: %w", dir, err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

// indexShard walks one shard file and upserts its records in batches.
func indexShard(
	ctx context.Context,
	st *store.Store,
	dir, name string,
	validator *shards.Validator,
	log *slog.Logger,
) (int64, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return 0, fmt.Errorf("failed to open shard: %w", err)
	}
	defer f.Close()

	tranche := shards.TrancheFromFilename(name)
	if tranche == "" {
		log.Warn("shard name carries no tranche", "shard", name)
	}

	var (
		books []store.Book
		total int64
		line  int
	)
	sc := shards.NewScanner(f)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		line++

		rec, err := validator.Parse(sc.Line())
		if err != nil {
			return total, fmt.Errorf("%s line %d: %w", name, line, err)
		}

		books = append(books, store.Book{
			Barcode:     rec.Barcode,
			Tranche:     tranche,
			ShardFile:   name,
			ShardOffset: sc.Offset(),
		})
		log.Debug("indexed book", "barcode", rec.Barcode, "shard", name, "offset", sc.Offset())

		if len(books) >= writeBatchSize {
			if err := st.UpsertBooks(ctx, books); err != nil {
				return total, fmt.Errorf("failed to index %s: %w", name, err)
			}
			total += int64(len(books))
			books = books[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return total, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := st.UpsertBooks(ctx, books); err != nil {
		return total, fmt.Errorf("failed to index %s: %w", name, err)
	}
	total += int64(len(books))

	log.Info("indexed shard", "shard", name, "books", total)
	return total, nil
}
