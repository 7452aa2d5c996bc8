package cluster

import (
	"testing"

	"github.com/jackzampolin/doppel/internal/store"
)

// ref builds a BookRef with a known char count; count 0 means unknown.
func ref(barcode, lang string, count int64) store.BookRef {
	return store.BookRef{
		Barcode:          barcode,
		DetectedLanguage: lang,
		CharCount:        count,
		HasCharCount:     count > 0,
	}
}

func barcodes(members []store.BookRef) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Barcode
	}
	return out
}

func wantBarcodes(t *testing.T, got []store.BookRef, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", barcodes(got), want)
	}
	for i, bc := range want {
		if got[i].Barcode != bc {
			t.Errorf("member %d = %s, want %s", i, got[i].Barcode, bc)
		}
	}
}

func TestFilterByLanguageMajority(t *testing.T) {
	members := []store.BookRef{
		ref("a", "eng", 10000),
		ref("b", "eng", 10000),
		ref("c", "fre", 10000),
	}
	wantBarcodes(t, filterByLanguage(members), "a", "b")
}

func TestFilterByLanguageUndeterminedBucket(t *testing.T) {
	// Books without a detection result compete as their own "und"
	// partition rather than being dropped outright.
	members := []store.BookRef{
		ref("a", "", 0),
		ref("b", "", 0),
		ref("c", "ger", 0),
	}
	wantBarcodes(t, filterByLanguage(members), "a", "b")
}

func TestFilterByLanguageTieBreak(t *testing.T) {
	// Equal-sized partitions resolve to the lexicographically smallest
	// language code, independent of member or map order.
	members := []store.BookRef{
		ref("w", "fre", 0),
		ref("x", "eng", 0),
		ref("y", "fre", 0),
		ref("z", "eng", 0),
	}
	got := filterByLanguage(members)
	wantBarcodes(t, got, "x", "z")

	// Same partition sizes, reversed member order: same winner.
	reversed := []store.BookRef{members[3], members[2], members[1], members[0]}
	got = filterByLanguage(reversed)
	if len(got) != 2 || got[0].DetectedLanguage != "eng" {
		t.Errorf("tie-break depends on member order: got %v", barcodes(got))
	}

	// "und" loses a tie against any real code that sorts before it.
	members = []store.BookRef{
		ref("a", "", 0),
		ref("b", "eng", 0),
	}
	got = filterByLanguage(members)
	if len(got) != 1 || got[0].Barcode != "b" {
		t.Errorf("tie between eng and und = %v, want [b]", barcodes(got))
	}
}

func TestFilterByLengthDropsOutliers(t *testing.T) {
	// Median of 9500/10000/11000/30000 is 10500; the band at 1.15 is
	// [9130.4, 12075], so only the 30000 member falls outside.
	members := []store.BookRef{
		ref("a", "eng", 9500),
		ref("b", "eng", 10000),
		ref("c", "eng", 11000),
		ref("d", "eng", 30000),
	}
	got := filterByLength(members, FilterOptions{}.withDefaults())
	wantBarcodes(t, got, "a", "b", "c")
}

func TestFilterByLengthScenarioBothOutside(t *testing.T) {
	// Two members at 10000 and 20000: the median is 15000, and both fall
	// outside ±15% (17250 ceiling, 13043 floor), so the group empties.
	members := []store.BookRef{
		ref("a", "eng", 10000),
		ref("b", "eng", 20000),
	}
	got := filterByLength(members, FilterOptions{}.withDefaults())
	if len(got) != 0 {
		t.Errorf("got %v, want empty", barcodes(got))
	}
}

func TestFilterByLengthUnknownCountsSurvive(t *testing.T) {
	members := []store.BookRef{
		ref("a", "eng", 10000),
		ref("b", "eng", 10100),
		ref("c", "eng", 0), // no text-analysis count: cannot be evaluated
		ref("d", "eng", 50000),
	}
	got := filterByLength(members, FilterOptions{}.withDefaults())
	wantBarcodes(t, got, "a", "b", "c")
}

func TestFilterByLengthNoKnownCounts(t *testing.T) {
	members := []store.BookRef{
		ref("a", "eng", 0),
		ref("b", "eng", 0),
	}
	got := filterByLength(members, FilterOptions{}.withDefaults())
	wantBarcodes(t, got, "a", "b")
}

func TestFilterByLengthFloorWidensBand(t *testing.T) {
	members := []store.BookRef{
		ref("a", "eng", 100000),
		ref("b", "eng", 150000),
		ref("c", "eng", 200000),
	}

	// Median 150000; at 1.15 the band is [130434, 172500]: a and c drop.
	got := filterByLength(members, FilterOptions{LengthTolerance: 1.15}.withDefaults())
	wantBarcodes(t, got, "b")

	// A 200000 floor widens the band to [<0, 350000]: everyone stays.
	got = filterByLength(members, FilterOptions{LengthTolerance: 1.15, LengthFloor: 200000})
	wantBarcodes(t, got, "a", "b", "c")

	// The older report variant's exact parameters.
	got = filterByLength(members, FilterOptions{LengthTolerance: 1.33, LengthFloor: 200000})
	wantBarcodes(t, got, "a", "b", "c")
}

func TestFilterChainsLanguageThenLength(t *testing.T) {
	// The French members are removed first, so the median comes from the
	// English survivors only (10000) and c is the length outlier. A
	// whole-group median (17000) would instead have kept c and dropped
	// a and b.
	members := []store.BookRef{
		ref("a", "eng", 10000),
		ref("b", "eng", 10000),
		ref("c", "eng", 17000),
		ref("d", "fre", 17000),
		ref("e", "fre", 17000),
	}
	got := Filter(members, FilterOptions{})
	wantBarcodes(t, got, "a", "b")
}

func TestFilterNeverGrows(t *testing.T) {
	groups := [][]store.BookRef{
		nil,
		{ref("a", "eng", 100)},
		{ref("a", "eng", 100), ref("b", "fre", 200)},
		{ref("a", "", 0), ref("b", "", 0), ref("c", "eng", 5000)},
		{ref("a", "eng", 1000), ref("b", "eng", 1000), ref("c", "eng", 9000), ref("d", "deu", 1000)},
	}
	for _, g := range groups {
		if got := Filter(g, FilterOptions{}); len(got) > len(g) {
			t.Errorf("filter grew %v to %v", barcodes(g), barcodes(got))
		}
	}
}

func TestMedianCharCount(t *testing.T) {
	tests := []struct {
		name    string
		members []store.BookRef
		want    float64
		ok      bool
	}{
		{
			name:    "odd count",
			members: []store.BookRef{ref("a", "", 300), ref("b", "", 100), ref("c", "", 200)},
			want:    200,
			ok:      true,
		},
		{
			name:    "even count averages the middle pair",
			members: []store.BookRef{ref("a", "", 10000), ref("b", "", 20000)},
			want:    15000,
			ok:      true,
		},
		{
			name:    "unknown counts are excluded",
			members: []store.BookRef{ref("a", "", 100), ref("b", "", 0), ref("c", "", 300)},
			want:    200,
			ok:      true,
		},
		{
			name:    "no known counts",
			members: []store.BookRef{ref("a", "", 0)},
			want:    0,
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := medianCharCount(tt.members)
			if got != tt.want || ok != tt.ok {
				t.Errorf("medianCharCount = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFilterOptionsDefaults(t *testing.T) {
	if got := (FilterOptions{}).withDefaults().LengthTolerance; got != DefaultLengthTolerance {
		t.Errorf("zero tolerance = %v, want %v", got, DefaultLengthTolerance)
	}
	if got := (FilterOptions{LengthTolerance: 0.5}).withDefaults().LengthTolerance; got != 1 {
		t.Errorf("sub-1 tolerance = %v, want clamped to 1", got)
	}
	if got := (FilterOptions{LengthTolerance: 1.33}).withDefaults().LengthTolerance; got != 1.33 {
		t.Errorf("explicit tolerance = %v, want 1.33", got)
	}
}
