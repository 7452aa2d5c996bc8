package report

import (
	"context"

	"github.com/jackzampolin/doppel/internal/store"
)

// Summary counts the collection's fingerprint and duplicate footprint.
// The filtered counts describe a Duplicates result; the rest come
// straight from the store.
type Summary struct {
	// BooksWithFingerprint is how many books carry a non-null fingerprint.
	BooksWithFingerprint int64 `json:"books_with_fingerprint" yaml:"books_with_fingerprint"`

	// UniqueFingerprints is how many distinct fingerprint values exist.
	UniqueFingerprints int64 `json:"unique_fingerprints" yaml:"unique_fingerprints"`

	// BooksInDuplicateSets is how many books sit in a filtered duplicate
	// set, every copy counted.
	BooksInDuplicateSets int64 `json:"books_in_duplicate_sets" yaml:"books_in_duplicate_sets"`

	// DuplicateSets is how many filtered duplicate sets exist.
	DuplicateSets int64 `json:"duplicate_sets" yaml:"duplicate_sets"`

	// UniqueBooks is the collection size if every duplicate set collapsed
	// to a single representative.
	UniqueBooks int64 `json:"unique_books" yaml:"unique_books"`
}

// Summarize computes summary counts for a filtered duplicates map.
func Summarize(ctx context.Context, st *store.Store, groups map[uint64][]store.BookRef) (*Summary, error) {
	withFingerprint, err := st.CountFingerprints(ctx)
	if err != nil {
		return nil, err
	}
	unique, err := st.CountDistinctFingerprints(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		BooksWithFingerprint: withFingerprint,
		UniqueFingerprints:   unique,
	}
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		s.DuplicateSets++
		s.BooksInDuplicateSets += int64(len(members))
	}
	s.UniqueBooks = s.BooksWithFingerprint - s.BooksInDuplicateSets + s.DuplicateSets
	return s, nil
}
