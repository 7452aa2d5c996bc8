package cluster

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/jackzampolin/doppel/internal/batch"
	"github.com/jackzampolin/doppel/internal/store"
)

// Options configures a duplicate collection run.
type Options struct {
	Workers int // Parallel filter workers; <= 0 means one per CPU core
	Filter  FilterOptions
	Logger  *slog.Logger
}

// Duplicates is the canonical entry point for reporting, sampling, and
// dataset generation: it collects every multi-member fingerprint group,
// filters each group in parallel, and merges the results back
// single-threaded, dropping groups whose filtered size fell below 2.
func Duplicates(ctx context.Context, st *store.Store, opts Options) (map[uint64][]store.BookRef, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run", uuid.New().String()[:8])

	groups, err := Collect(ctx, st)
	if err != nil {
		return nil, err
	}
	logger.Info("collected suspected duplicate groups", "groups", len(groups))
	if len(groups) == 0 {
		return groups, nil
	}

	// Work units are keyed by fingerprint so results merge back into the
	// right map entry; the sort only fixes the unit order, not the
	// (unspecified) ordering of the output.
	keys := make([]uint64, 0, len(groups))
	for hash := range groups {
		keys = append(keys, hash)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	filtered, err := batch.Map(ctx, len(keys), opts.Workers, func(_ context.Context, unit int) ([]store.BookRef, error) {
		return Filter(groups[keys[unit]], opts.Filter), nil
	})
	if err != nil {
		return nil, err
	}

	kept := 0
	for i, hash := range keys {
		if len(filtered[i]) < 2 {
			delete(groups, hash)
			continue
		}
		groups[hash] = filtered[i]
		kept++
	}

	logger.Info("filtered duplicate groups", "kept", kept, "dropped", len(keys)-kept)
	return groups, nil
}
