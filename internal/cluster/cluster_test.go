package cluster

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/doppel/internal/store"
)

// seedEntry is one fully-described book: its fingerprint and the
// collaborator signals the filters consume. hash 0 means a null
// fingerprint, count 0 an unknown char count, lang "" no detection
// result.
type seedEntry struct {
	barcode string
	hash    uint64
	lang    string
	count   int64
}

// seedStore builds a consistent collection: every book has a fingerprint
// row and a text-analysis row, as the precondition check demands.
func seedStore(t *testing.T, entries []seedEntry) *store.Store {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "doppel.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	var books []store.Book
	var fps []store.FingerprintRecord
	var analysis []store.TextAnalysisRecord
	var langs []store.LanguageRecord
	for i := range entries {
		e := entries[i]
		books = append(books, store.Book{Barcode: e.barcode, Tranche: "VIEW_FULL", ShardFile: "s.jsonl"})

		fp := store.FingerprintRecord{Barcode: e.barcode}
		if e.hash != 0 {
			fp.Hash = &entries[i].hash
		}
		fps = append(fps, fp)

		ta := store.TextAnalysisRecord{Barcode: e.barcode}
		if e.count != 0 {
			ta.CharCountContinuous = &entries[i].count
		}
		analysis = append(analysis, ta)

		if e.lang != "" {
			langs = append(langs, store.LanguageRecord{Barcode: e.barcode, DetectedISO6393: &entries[i].lang})
		}
	}

	if err := s.UpsertBooks(ctx, books); err != nil {
		t.Fatalf("failed to seed books: %v", err)
	}
	if err := s.UpsertFingerprints(ctx, fps); err != nil {
		t.Fatalf("failed to seed fingerprints: %v", err)
	}
	if err := s.UpsertTextAnalysis(ctx, analysis); err != nil {
		t.Fatalf("failed to seed text analysis: %v", err)
	}
	if err := s.UpsertLanguages(ctx, langs); err != nil {
		t.Fatalf("failed to seed languages: %v", err)
	}
	return s
}

func quietOpts() Options {
	return Options{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
}

func TestCollectPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("empty collection", func(t *testing.T) {
		s := seedStore(t, nil)
		_, err := Collect(ctx, s)
		if !errors.Is(err, ErrMissingCollaboratorData) {
			t.Errorf("Collect on empty store = %v, want ErrMissingCollaboratorData", err)
		}
	})

	t.Run("fingerprints incomplete", func(t *testing.T) {
		s := seedStore(t, []seedEntry{{barcode: "b1", hash: 7, lang: "eng", count: 100}})
		// A second book with no fingerprint row breaks coverage.
		if err := s.UpsertBooks(ctx, []store.Book{{Barcode: "b2", ShardFile: "s.jsonl"}}); err != nil {
			t.Fatalf("UpsertBooks failed: %v", err)
		}
		if err := s.UpsertTextAnalysis(ctx, []store.TextAnalysisRecord{{Barcode: "b2"}}); err != nil {
			t.Fatalf("UpsertTextAnalysis failed: %v", err)
		}
		_, err := Collect(ctx, s)
		if !errors.Is(err, ErrMissingCollaboratorData) {
			t.Errorf("Collect = %v, want ErrMissingCollaboratorData", err)
		}
	})

	t.Run("text analysis incomplete", func(t *testing.T) {
		s := seedStore(t, []seedEntry{{barcode: "b1", hash: 7, lang: "eng", count: 100}})
		if err := s.UpsertBooks(ctx, []store.Book{{Barcode: "b2", ShardFile: "s.jsonl"}}); err != nil {
			t.Fatalf("UpsertBooks failed: %v", err)
		}
		if err := s.UpsertFingerprints(ctx, []store.FingerprintRecord{{Barcode: "b2"}}); err != nil {
			t.Fatalf("UpsertFingerprints failed: %v", err)
		}
		_, err := Collect(ctx, s)
		if !errors.Is(err, ErrMissingCollaboratorData) {
			t.Errorf("Collect = %v, want ErrMissingCollaboratorData", err)
		}
	})

	t.Run("no language detection results", func(t *testing.T) {
		s := seedStore(t, []seedEntry{
			{barcode: "b1", hash: 7, count: 100},
			{barcode: "b2", hash: 7, count: 100},
		})
		_, err := Collect(ctx, s)
		if !errors.Is(err, ErrMissingCollaboratorData) {
			t.Errorf("Collect = %v, want ErrMissingCollaboratorData", err)
		}
	})

	t.Run("complete data passes", func(t *testing.T) {
		s := seedStore(t, []seedEntry{
			{barcode: "b1", hash: 7, lang: "eng", count: 100},
			{barcode: "b2", hash: 7, lang: "eng", count: 100},
		})
		groups, err := Collect(ctx, s)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(groups) != 1 || len(groups[7]) != 2 {
			t.Errorf("groups = %v, want one group of two", groups)
		}
	})
}

func TestCollectSkipsSingletonsAndNulls(t *testing.T) {
	s := seedStore(t, []seedEntry{
		{barcode: "b1", hash: 10, lang: "eng", count: 100},
		{barcode: "b2", hash: 10, lang: "eng", count: 100},
		{barcode: "b3", hash: 20, lang: "eng", count: 100}, // unique fingerprint
		{barcode: "b4", lang: "eng", count: 100},           // null fingerprint
		{barcode: "b5", lang: "eng", count: 100},           // null fingerprint
	})

	groups, err := Collect(context.Background(), s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 (nulls and singletons never group): %v", len(groups), groups)
	}
	if len(groups[10]) != 2 {
		t.Errorf("group 10 = %v, want b1 and b2", barcodes(groups[10]))
	}
}

func TestDuplicatesLanguageScenario(t *testing.T) {
	// A and B are English with identical lengths; C collides on the
	// fingerprint but is French, so the language filter removes it.
	s := seedStore(t, []seedEntry{
		{barcode: "A", hash: 42, lang: "eng", count: 10000},
		{barcode: "B", hash: 42, lang: "eng", count: 10000},
		{barcode: "C", hash: 42, lang: "fre", count: 10000},
	})

	got, err := Duplicates(context.Background(), s, quietOpts())
	if err != nil {
		t.Fatalf("Duplicates failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d groups, want 1", len(got))
	}
	wantBarcodes(t, got[42], "A", "B")
}

func TestDuplicatesLengthScenario(t *testing.T) {
	// A and B share fingerprint and language but their lengths straddle
	// the median too widely: the group shrinks below 2 and is removed,
	// not kept as a placeholder.
	s := seedStore(t, []seedEntry{
		{barcode: "A", hash: 42, lang: "eng", count: 10000},
		{barcode: "B", hash: 42, lang: "eng", count: 20000},
		// An unrelated healthy pair proves the map itself survives.
		{barcode: "C", hash: 99, lang: "eng", count: 5000},
		{barcode: "D", hash: 99, lang: "eng", count: 5100},
	})

	got, err := Duplicates(context.Background(), s, quietOpts())
	if err != nil {
		t.Fatalf("Duplicates failed: %v", err)
	}
	if _, ok := got[42]; ok {
		t.Errorf("group 42 should have been dropped, got %v", barcodes(got[42]))
	}
	if len(got) != 1 {
		t.Fatalf("got %d groups, want 1", len(got))
	}
	wantBarcodes(t, got[99], "C", "D")
}

func TestDuplicatesClusterIntegrity(t *testing.T) {
	// A larger mixed collection; every surviving cluster must be
	// single-language with all known lengths inside the tolerance band.
	s := seedStore(t, []seedEntry{
		{barcode: "b01", hash: 1, lang: "eng", count: 100000},
		{barcode: "b02", hash: 1, lang: "eng", count: 101000},
		{barcode: "b03", hash: 1, lang: "eng", count: 300000}, // length outlier
		{barcode: "b04", hash: 1, lang: "ger", count: 100500}, // language outlier
		{barcode: "b05", hash: 2, lang: "fre", count: 50000},
		{barcode: "b06", hash: 2, lang: "fre", count: 51000},
		{barcode: "b07", hash: 2, lang: "fre"}, // unknown length survives
		{barcode: "b08", hash: 3, lang: "eng", count: 10000},
		{barcode: "b09", hash: 3, lang: "fre", count: 10000}, // 1v1 tie: eng wins, group dies
		{barcode: "b10", lang: "eng", count: 77},
	})

	got, err := Duplicates(context.Background(), s, Options{Workers: 4, Logger: quietOpts().Logger})
	if err != nil {
		t.Fatalf("Duplicates failed: %v", err)
	}

	if _, ok := got[3]; ok {
		t.Errorf("group 3 survived with %v, want dropped", barcodes(got[3]))
	}
	wantBarcodes(t, got[1], "b01", "b02")
	wantBarcodes(t, got[2], "b05", "b06", "b07")

	tol := DefaultLengthTolerance
	for hash, members := range got {
		if len(members) < 2 {
			t.Errorf("group %d has %d members, want >= 2", hash, len(members))
		}
		langs := make(map[string]bool)
		for _, m := range members {
			lang := m.DetectedLanguage
			if lang == "" {
				lang = "und"
			}
			langs[lang] = true
		}
		if len(langs) != 1 {
			t.Errorf("group %d spans languages %v", hash, langs)
		}

		med, ok := medianCharCount(members)
		if !ok {
			continue
		}
		for _, m := range members {
			if !m.HasCharCount {
				continue
			}
			if c := float64(m.CharCount); c > med*tol || c < med/tol {
				t.Errorf("group %d member %s count %d outside band around %v", hash, m.Barcode, m.CharCount, med)
			}
		}
	}
}

func TestDuplicatesEmptyResult(t *testing.T) {
	s := seedStore(t, []seedEntry{
		{barcode: "b1", hash: 1, lang: "eng", count: 100},
		{barcode: "b2", hash: 2, lang: "eng", count: 100},
	})

	got, err := Duplicates(context.Background(), s, quietOpts())
	if err != nil {
		t.Fatalf("Duplicates failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no groups", got)
	}
}

func TestDuplicatesCustomTolerance(t *testing.T) {
	s := seedStore(t, []seedEntry{
		{barcode: "A", hash: 42, lang: "eng", count: 10000},
		{barcode: "B", hash: 42, lang: "eng", count: 20000},
	})

	// The same pair the default tolerance rejects survives a band wide
	// enough for the older report variant.
	opts := quietOpts()
	opts.Filter = FilterOptions{LengthTolerance: 1.33, LengthFloor: 200000}
	got, err := Duplicates(context.Background(), s, opts)
	if err != nil {
		t.Fatalf("Duplicates failed: %v", err)
	}
	wantBarcodes(t, got[42], "A", "B")
}
