// Package generate runs the fingerprint pass: every book's OCR text is
// reduced to a 64-bit SimHash and persisted, so identical texts can be
// grouped later by exact fingerprint equality.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/doppel/internal/batch"
	"github.com/jackzampolin/doppel/internal/dedupe"
	"github.com/jackzampolin/doppel/internal/shards"
	"github.com/jackzampolin/doppel/internal/store"
)

// unsegmentedScripts are declared languages whose scripts carry no word
// boundaries; character shingles wider than one rune would straddle
// words arbitrarily, so the pass degrades to width 1 for them. Keyed by
// ISO 639-3 code, plus the legacy 639-2b codes that appear when a
// catalog export has no 639-3 mapping.
var unsegmentedScripts = map[string]bool{
	"zho": true, "cmn": true, "yue": true, "wuu": true, // Chinese variants
	"jpn": true, // Japanese
	"tha": true, // Thai
	"lao": true, // Lao
	"mya": true, // Burmese
	"khm": true, // Khmer
	"bod": true, // Tibetan
	"chi": true, "bur": true, "tib": true, // 639-2b aliases
}

// Options configures a fingerprint run.
type Options struct {
	Offset       int  // Skip this many leading books (barcode order)
	Limit        int  // Process at most this many books; <= 0 means all
	ShingleWidth int  // Runes per shingle (default dedupe.DefaultShingleWidth)
	Overwrite    bool // Recompute books that already have a fingerprint row
	Workers      int  // Parallel workers; <= 0 means one per CPU core

	// Sink tuning, zero values take the store defaults.
	WriteBatchSize int
	FlushInterval  time.Duration

	Logger *slog.Logger
}

// Result summarizes a completed run.
type Result struct {
	Fingerprinted int64 `json:"fingerprinted" yaml:"fingerprinted"` // Books that received a fingerprint
	Empty         int64 `json:"empty" yaml:"empty"`                 // Books with no usable text (null fingerprint)
	Skipped       int64 `json:"skipped" yaml:"skipped"`             // Books left alone (already analyzed)
}

// Run fingerprints the selected slice of the collection. The slice is
// partitioned up front into one contiguous chunk per worker; workers
// share nothing but the write sink, and the first failure cancels the
// chunks that have not started. Already-flushed batches stay committed,
// so a rerun resumes via the skip-if-exists rule (or recomputes
// everything under Overwrite).
func Run(ctx context.Context, st *store.Store, shardsDir string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ShingleWidth < 1 {
		opts.ShingleWidth = dedupe.DefaultShingleWidth
	}
	workers := batch.Workers(opts.Workers)

	books, err := st.ListBooks(ctx, opts.Offset, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection slice: %w", err)
	}
	if len(books) == 0 {
		logger.Info("no books to fingerprint")
		return &Result{}, nil
	}

	runID := uuid.New().String()[:8]
	logger = logger.With("run", runID)
	logger.Info("starting fingerprint run",
		"books", len(books),
		"workers", workers,
		"shingle_width", opts.ShingleWidth,
		"overwrite", opts.Overwrite)

	sink := store.NewSink(store.SinkConfig{
		Store:         st,
		BatchSize:     opts.WriteBatchSize,
		FlushInterval: opts.FlushInterval,
		Logger:        logger,
	})
	sink.Start(ctx)

	var res Result
	spans := batch.Partition(len(books), workers)
	runErr := batch.ForEach(ctx, len(spans), workers, func(ctx context.Context, unit int) error {
		return processChunk(ctx, st, sink, shardsDir, books[spans[unit].Offset:spans[unit].End()], opts, &res, logger)
	})

	// Always drain the sink; its flush failures count as run failures.
	if err := sink.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}

	logger.Info("fingerprint run complete",
		"fingerprinted", res.Fingerprinted,
		"empty", res.Empty,
		"skipped", res.Skipped)
	return &res, nil
}

// processChunk fingerprints one contiguous chunk of the collection.
func processChunk(
	ctx context.Context,
	st *store.Store,
	sink *store.Sink,
	shardsDir string,
	books []store.Book,
	opts Options,
	res *Result,
	logger *slog.Logger,
) error {
	reader := shards.NewReader(shardsDir)
	defer reader.Close()

	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := processBook(ctx, st, sink, reader, book, opts, res, logger); err != nil {
			return fmt.Errorf("failed to fingerprint %s: %w", book.Barcode, err)
		}
	}
	return nil
}

// processBook fingerprints a single book and enqueues the write.
func processBook(
	ctx context.Context,
	st *store.Store,
	sink *store.Sink,
	reader *shards.Reader,
	book store.Book,
	opts Options,
	res *Result,
	logger *slog.Logger,
) error {
	if !opts.Overwrite {
		existing, err := st.GetFingerprint(ctx, book.Barcode)
		if err != nil {
			return err
		}
		if existing != nil {
			atomic.AddInt64(&res.Skipped, 1)
			logger.Info("already analyzed", "barcode", book.Barcode)
			return nil
		}
	}

	rec, err := reader.Read(book.ShardFile, book.ShardOffset)
	if err != nil {
		return err
	}
	if rec.Barcode != book.Barcode {
		return fmt.Errorf("shard index is stale: found %s at %s:%d", rec.Barcode, book.ShardFile, book.ShardOffset)
	}

	out := store.FingerprintRecord{Barcode: book.Barcode}

	text := rec.MergedText()
	if strings.TrimSpace(text) == "" {
		atomic.AddInt64(&res.Empty, 1)
		logger.Warn("book has no text", "barcode", book.Barcode)
		return sink.Send(out)
	}

	hash := dedupe.Fingerprint(dedupe.Shingles(text, effectiveWidth(book, opts.ShingleWidth)))
	out.Hash = &hash

	atomic.AddInt64(&res.Fingerprinted, 1)
	logger.Info("fingerprinted", "barcode", book.Barcode, "hash", hash)
	return sink.Send(out)
}

// effectiveWidth returns the shingle width for a book, dropping to 1 for
// declared languages written in unsegmented scripts.
func effectiveWidth(book store.Book, requested int) int {
	if unsegmentedScripts[strings.ToLower(book.DeclaredLanguage)] {
		return 1
	}
	return requested
}
