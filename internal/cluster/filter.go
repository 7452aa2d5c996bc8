package cluster

import (
	"sort"

	"github.com/jackzampolin/doppel/internal/store"
)

const (
	// DefaultLengthTolerance keeps books within ±15% of the group's
	// median continuous character count.
	DefaultLengthTolerance = 1.15

	// undetermined buckets members language detection produced nothing
	// for.
	undetermined = "und"
)

// FilterOptions tunes the false-positive filters.
type FilterOptions struct {
	// LengthTolerance is the multiplicative band around the median
	// continuous character count: members outside
	// [median/tolerance, median*tolerance] are dropped. Must be >= 1;
	// zero means DefaultLengthTolerance.
	LengthTolerance float64

	// LengthFloor, when > 0, widens the band to at least ±floor
	// characters. An older evaluation report ran with tolerance 1.33 and
	// floor 200000.
	LengthFloor int64
}

func (o FilterOptions) withDefaults() FilterOptions {
	if o.LengthTolerance == 0 {
		o.LengthTolerance = DefaultLengthTolerance
	}
	if o.LengthTolerance < 1 {
		o.LengthTolerance = 1
	}
	return o
}

// Filter strips likely false positives from one group of books sharing a
// fingerprint: first everything outside the group's majority detected
// language, then everything whose length is an outlier against the
// survivors' median. The result never grows and may fall below 2
// members, which signals a false-positive cluster to the caller. Pure
// function: safe to run on many groups in parallel.
func Filter(members []store.BookRef, opts FilterOptions) []store.BookRef {
	return filterByLength(filterByLanguage(members), opts.withDefaults())
}

// filterByLanguage keeps only the largest same-detected-language
// partition of the group. Members without a detection result are
// bucketed as "und" and compete like any other partition. Ties between
// equal-sized partitions go to the lexicographically smallest language
// code, never to map iteration order.
func filterByLanguage(members []store.BookRef) []store.BookRef {
	if len(members) == 0 {
		return members
	}

	partitions := make(map[string][]store.BookRef)
	for _, m := range members {
		lang := m.DetectedLanguage
		if lang == "" {
			lang = undetermined
		}
		partitions[lang] = append(partitions[lang], m)
	}

	best := ""
	for lang, part := range partitions {
		if best == "" ||
			len(part) > len(partitions[best]) ||
			(len(part) == len(partitions[best]) && lang < best) {
			best = lang
		}
	}
	return partitions[best]
}

// filterByLength drops members whose continuous character count lies
// outside the tolerance band around the group's median. Members with no
// known count cannot be evaluated and always survive.
func filterByLength(members []store.BookRef, opts FilterOptions) []store.BookRef {
	med, ok := medianCharCount(members)
	if !ok {
		return members
	}

	lo := med / opts.LengthTolerance
	hi := med * opts.LengthTolerance
	if opts.LengthFloor > 0 {
		floor := float64(opts.LengthFloor)
		lo = min(lo, med-floor)
		hi = max(hi, med+floor)
	}

	filtered := make([]store.BookRef, 0, len(members))
	for _, m := range members {
		if m.HasCharCount {
			count := float64(m.CharCount)
			if count > hi || count < lo {
				continue
			}
		}
		filtered = append(filtered, m)
	}
	return filtered
}

// medianCharCount computes the median continuous character count over
// members with a known count. ok is false when no member has one.
func medianCharCount(members []store.BookRef) (med float64, ok bool) {
	counts := make([]int64, 0, len(members))
	for _, m := range members {
		if m.HasCharCount {
			counts = append(counts, m.CharCount)
		}
	}
	if len(counts) == 0 {
		return 0, false
	}

	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
	mid := len(counts) / 2
	if len(counts)%2 == 1 {
		return float64(counts[mid]), true
	}
	return float64(counts[mid-1]+counts[mid]) / 2, true
}
