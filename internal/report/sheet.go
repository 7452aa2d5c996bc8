// Package report renders duplicate-detection results for human review:
// a sampled evaluation sheet in CSV form plus collection-level summary
// counts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"

	"github.com/jackzampolin/doppel/internal/store"
)

const (
	// DefaultSamples is how many clusters an evaluation sheet samples.
	DefaultSamples = 100

	// maxURLs caps the reference-URL columns per sampled cluster.
	maxURLs = 20

	// oversample multiplies the candidate draw so the viewability filter
	// can reject clusters without starving the sheet.
	oversample = 4
)

// SheetOptions configures an evaluation sheet export.
type SheetOptions struct {
	// Samples is how many clusters to sample; <= 0 means DefaultSamples.
	Samples int

	// URLTemplate builds a reference URL from a barcode via one %s verb.
	// Empty writes the bare barcode.
	URLTemplate string

	// ViewableTranche restricts sampling to clusters whose members all
	// sit in this tranche, so a reviewer can open every referenced scan.
	// Empty disables the restriction.
	ViewableTranche string

	// Rand drives sampling; nil uses the shared source.
	Rand *rand.Rand
}

// WriteEvalSheet samples clusters from groups and writes one CSV row per
// cluster: the fingerprint followed by up to 20 reference URLs, one per
// member. Returns how many clusters were written; fewer than requested
// means the draw ran out of reviewable clusters.
func WriteEvalSheet(w io.Writer, groups map[uint64][]store.BookRef, opts SheetOptions) (int, error) {
	samples := opts.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}

	keys := make([]uint64, 0, len(groups))
	for hash := range groups {
		keys = append(keys, hash)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	shuffle := rand.Shuffle
	if opts.Rand != nil {
		shuffle = opts.Rand.Shuffle
	}
	shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	if limit := samples * oversample; len(keys) > limit {
		keys = keys[:limit]
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, maxURLs+1)
	header = append(header, "fingerprint")
	for i := 1; i <= maxURLs; i++ {
		header = append(header, fmt.Sprintf("url_%d", i))
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write sheet header: %w", err)
	}

	written := 0
	for _, hash := range keys {
		if written >= samples {
			break
		}
		row, ok := sheetRow(hash, groups[hash], opts)
		if !ok {
			continue
		}
		if err := cw.Write(row); err != nil {
			return written, fmt.Errorf("failed to write sheet row: %w", err)
		}
		written++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, fmt.Errorf("failed to flush sheet: %w", err)
	}
	return written, nil
}

// sheetRow renders one cluster, or reports it unusable: too small to
// review, or not fully viewable online.
func sheetRow(hash uint64, members []store.BookRef, opts SheetOptions) ([]string, bool) {
	if len(members) < 2 {
		return nil, false
	}

	row := make([]string, 0, maxURLs+1)
	row = append(row, strconv.FormatUint(hash, 10))
	for _, m := range members {
		if opts.ViewableTranche != "" && m.Tranche != opts.ViewableTranche {
			return nil, false
		}
		if len(row) <= maxURLs {
			row = append(row, opts.url(m.Barcode))
		}
	}
	return row, true
}

// url builds the reference URL for one barcode.
func (o SheetOptions) url(barcode string) string {
	if o.URLTemplate == "" {
		return barcode
	}
	return fmt.Sprintf(o.URLTemplate, barcode)
}
