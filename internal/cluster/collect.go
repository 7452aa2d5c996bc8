// Package cluster groups books sharing an identical fingerprint and
// strips likely false positives from each group using independent
// signals: the detected main language and the continuous character
// count. Clusters are derived views, recomputed on every call.
package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackzampolin/doppel/internal/store"
)

// ErrMissingCollaboratorData marks a prerequisite dataset (fingerprints,
// text analysis, language detection) as absent or incomplete. Clustering
// over partial collaborator data would silently misreport duplicates, so
// the check runs before any parallel work and is never retried.
var ErrMissingCollaboratorData = errors.New("collaborator data is not available")

// Collect returns every fingerprint shared by more than one book, mapped
// to its members. Books with a null fingerprint never group. Group and
// member ordering follow store iteration order; callers needing
// reproducible sampling must sort or shuffle explicitly.
func Collect(ctx context.Context, st *store.Store) (map[uint64][]store.BookRef, error) {
	if err := checkCollaboratorData(ctx, st); err != nil {
		return nil, err
	}
	groups, err := st.DuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect duplicate groups: %w", err)
	}
	return groups, nil
}

// checkCollaboratorData fails fast when a dataset the filters depend on
// is absent or incomplete.
func checkCollaboratorData(ctx context.Context, st *store.Store) error {
	books, err := st.CountBooks(ctx)
	if err != nil {
		return err
	}
	if books == 0 {
		return fmt.Errorf("%w: no books indexed", ErrMissingCollaboratorData)
	}

	fingerprints, err := st.CountFingerprintRows(ctx)
	if err != nil {
		return err
	}
	if fingerprints != books {
		return fmt.Errorf("%w: fingerprints cover %d of %d books", ErrMissingCollaboratorData, fingerprints, books)
	}

	analyzed, err := st.CountTextAnalysis(ctx)
	if err != nil {
		return err
	}
	if analyzed != books {
		return fmt.Errorf("%w: text analysis covers %d of %d books", ErrMissingCollaboratorData, analyzed, books)
	}

	detected, err := st.CountDetectedLanguages(ctx)
	if err != nil {
		return err
	}
	if detected == 0 {
		return fmt.Errorf("%w: no language detection results", ErrMissingCollaboratorData)
	}

	return nil
}
