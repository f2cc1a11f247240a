package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesUniqueAndPrefixed(t *testing.T) {
	seenName := map[string]bool{}
	seenID := map[uint16]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "authcore_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q must be authcore_*_total", def.Name)
		}
		if seenName[def.Name] || seenID[uint16(def.ID)] {
			t.Fatalf("duplicate counter definition %q", def.Name)
		}
		seenName[def.Name] = true
		seenID[uint16(def.ID)] = true
	}
}

func TestBoundsMatchBucketCount(t *testing.T) {
	if len(HistogramBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("expected one suffix per finite bound plus +Inf")
	}
	if len(HistogramBoundSuffix) != len(NormalizeBuckets(nil)) {
		t.Fatalf("bucket arrays and suffixes disagree")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}
}
